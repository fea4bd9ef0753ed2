package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/spotiplay/internal/notes"
)

var (
	_ list.Item = buttonItem{}
)

// buttonItem wraps one note block. button is nil for malformed blocks.
type buttonItem struct {
	block  notes.Block
	button *Button
}

func (i buttonItem) FilterValue() string { return i.block.Label }

func (i buttonItem) Title() string {
	if i.button == nil {
		return styles.err.Render(fmt.Sprintf("Line %d", i.block.Line))
	}
	text := i.button.Text()
	switch i.button.State() {
	case StateLoading:
		return styles.warn.Render(text)
	case StateError:
		return styles.err.Render(text)
	default:
		return text
	}
}

// Description holds the inline error paragraph when there is one, the URI otherwise.
func (i buttonItem) Description() string {
	if i.button == nil {
		return styles.err.Render(i.block.ErrorText())
	}
	if msg := i.button.Err(); msg != "" {
		return styles.err.Render(msg)
	}
	return i.block.URI
}
