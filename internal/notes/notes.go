// Package notes finds spotiplayer blocks in Markdown notes.
//
// A block is a fenced code block with the info string "spotiplayer" whose body holds "key: value" lines:
//
//	```spotiplayer
//	label: Morning Mix
//	uri: spotify:playlist:37i9dQZF1DXcBWIGoYBM5M
//	```
//
// Both label and uri are required. Other keys are ignored, as are lines without a colon.
package notes

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Language is the info string that marks a play button block.
const Language = "spotiplayer"

var ErrMissingFields = errors.New("missing label or uri in spotiplayer block")

var keyValuePattern = regexp.MustCompile(`^([^:]+):\s*(.+)$`)

var markdown = goldmark.New()

// Block is one spotiplayer block found in a note.
type Block struct {
	Label string
	URI   string
	// Line is the 1-based line of the opening fence.
	Line int
	// Err is set when the block is malformed; Label and URI may then be empty.
	Err error
}

// Valid reports whether the block can be rendered as a button.
func (b Block) Valid() bool {
	return b.Err == nil
}

// ErrorText is the inline message shown in place of a malformed block.
func (b Block) ErrorText() string {
	if b.Err == nil {
		return ""
	}
	if errors.Is(b.Err, ErrMissingFields) {
		return "Error: Missing label or uri in spotiplayer block."
	}
	return "Error: " + b.Err.Error()
}

// ParseBlock reads "key: value" lines. Keys and values are trimmed; lines that don't match are skipped.
func ParseBlock(source string) map[string]string {
	data := map[string]string{}
	for line := range strings.SplitSeq(source, "\n") {
		m := keyValuePattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		data[strings.TrimSpace(m[1])] = strings.TrimSpace(m[2])
	}
	return data
}

// Extract returns the spotiplayer blocks of a Markdown document in document order.
//
// Malformed blocks are returned with [Block.Err] set rather than failing the whole document.
func Extract(source []byte) []Block {
	doc := markdown.Parser().Parse(text.NewReader(source))

	blocks := []Block{}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok || string(fenced.Language(source)) != Language {
			return ast.WalkContinue, nil
		}

		blocks = append(blocks, newBlock(source, fenced))
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

func newBlock(source []byte, fenced *ast.FencedCodeBlock) Block {
	var body bytes.Buffer
	lines := fenced.Lines()
	for i := range lines.Len() {
		seg := lines.At(i)
		body.Write(seg.Value(source))
	}

	data := ParseBlock(body.String())
	b := Block{Label: data["label"], URI: data["uri"], Line: lineOf(source, fenced)}
	if b.Label == "" || b.URI == "" {
		b.Err = ErrMissingFields
	}
	return b
}

func lineOf(source []byte, fenced *ast.FencedCodeBlock) int {
	if fenced.Info == nil {
		return 0
	}
	return bytes.Count(source[:fenced.Info.Segment.Start], []byte("\n")) + 1
}
