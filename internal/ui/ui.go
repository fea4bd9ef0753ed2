package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotiplay/internal/notes"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// Model represents the TUI application state: one note rendered as a list of play buttons.
type Model struct {
	ctx        context.Context
	path       string
	dispatcher Dispatcher
	watcher    *NoteWatcher
	buttons    []*Button
	list       list.Model
	status     string
	err        error
	width      int
	height     int
	help       help.Model
	keys       keyMap
}

// NewModel creates a TUI model for the note at path. watcher may be nil.
func NewModel(ctx context.Context, path string, d Dispatcher, watcher *NoteWatcher) *Model {
	l := list.New(nil, list.NewDefaultDelegate(), defaultWidth, defaultHeight-6)
	l.Title = filepath.Base(path)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return &Model{
		ctx:        ctx,
		path:       path,
		dispatcher: d,
		watcher:    watcher,
		list:       l,
		width:      defaultWidth,
		height:     defaultHeight,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init loads the note and, when watching, subscribes to changes.
func (m *Model) Init() tea.Cmd {
	if m.watcher == nil {
		return m.load()
	}
	return tea.Batch(m.load(), m.waitForChange())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.play):
			return m, m.play()
		case key.Matches(msg, m.keys.reload):
			return m, m.load()
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlayed:
		p := msg.data.(played)
		if p.result.OK() {
			m.status = styles.ok.Render(fmt.Sprintf("Playing %s", p.result.Target.URI))
		} else {
			m.status = ""
		}
		return m, nil

	case MsgNoteLoaded:
		loaded := msg.data.(noteLoaded)
		m.err = loaded.err
		if loaded.err == nil {
			m.setBlocks(loaded.blocks)
		}
		return m, nil

	case MsgNoteChanged:
		return m, tea.Batch(m.load(), m.waitForChange())

	case MsgAuthPending:
		m.status = styles.warn.Render(fmt.Sprintf("Authorize in your browser. If it does not open, visit:\n%s", msg.data))
		return m, nil

	case MsgWatchFailed:
		m.status = styles.warn.Render(fmt.Sprintf("watch: %v", msg.data))
		return m, m.waitForChange()
	}
	return m, nil
}

// setBlocks rebuilds the rows. Buttons whose label and URI survive a reload keep their state.
func (m *Model) setBlocks(blocks []notes.Block) {
	existing := make(map[[2]string]*Button, len(m.buttons))
	for _, b := range m.buttons {
		existing[[2]string{b.Label(), b.URI()}] = b
	}

	m.buttons = make([]*Button, 0, len(blocks))
	items := make([]list.Item, 0, len(blocks))
	for _, block := range blocks {
		item := buttonItem{block: block}
		if block.Valid() {
			b, ok := existing[[2]string{block.Label, block.URI}]
			if !ok {
				b = NewButton(block.Label, block.URI, m.dispatcher)
			}
			item.button = b
			m.buttons = append(m.buttons, b)
		}
		items = append(items, item)
	}
	m.list.SetItems(items)
}

// Buttons returns the buttons of the current note in document order.
func (m *Model) Buttons() []*Button {
	return m.buttons
}

// play clicks the selected button. A click on a loading button is dropped.
func (m *Model) play() tea.Cmd {
	item, ok := m.list.SelectedItem().(buttonItem)
	if !ok {
		return nil
	}
	if item.button == nil {
		m.status = styles.err.Render(item.block.ErrorText())
		return nil
	}
	if !item.button.Press() {
		return nil
	}

	index := m.list.Index()
	button := item.button
	m.status = ""
	return func() tea.Msg {
		return playedMsg(index, button.Run(m.ctx))
	}
}

func (m *Model) load() tea.Cmd {
	path := m.path
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return noteLoadedMsg(nil, fmt.Errorf("failed to read note: %w", err))
		}
		return noteLoadedMsg(notes.Extract(data), nil)
	}
}

func (m *Model) waitForChange() tea.Cmd {
	w := m.watcher
	return func() tea.Msg {
		select {
		case _, ok := <-w.Changes():
			if !ok {
				return nil
			}
			return noteChangedMsg()
		case err := <-w.Errors():
			return watchFailedMsg(err)
		case <-m.ctx.Done():
			return nil
		}
	}
}

// View renders the note's buttons, the status line and key help.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to reload, q to quit", m.err))
	}

	body := m.list.View()
	if len(m.list.Items()) == 0 {
		body = styles.title.Render(filepath.Base(m.path)) + "\n" + styles.help.Render("No spotiplayer blocks in this note.")
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	if m.status == "" {
		return fmt.Sprintf("%s\n\n%s", body, helpView)
	}
	return fmt.Sprintf("%s\n%s\n\n%s", body, m.status, helpView)
}
