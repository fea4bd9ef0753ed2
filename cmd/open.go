package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotiplay/internal/notes"
	"github.com/desertthunder/spotiplay/internal/shared"
	"github.com/desertthunder/spotiplay/internal/ui"
	"github.com/urfave/cli/v3"
)

// Open launches the interactive terminal UI for the spotiplayer blocks in a note.
func (r *Runner) Open(ctx context.Context, cmd *cli.Command) error {
	path, err := notePath(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)
	r.output = io.Discard

	d, err := r.Dispatcher(path)
	if err != nil {
		return err
	}

	var watcher *ui.NoteWatcher
	if cmd.Bool("watch") {
		if watcher, err = ui.WatchNote(path); err != nil {
			return fmt.Errorf("failed to watch note: %w", err)
		}
		defer watcher.Close()
	}

	model := ui.NewModel(ctx, path, d, watcher)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	r.authNotice = func(url string) { p.Send(ui.AuthPendingMsg(url)) }
	defer func() { r.authNotice = nil }()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

type blockJSON struct {
	Label string `json:"label"`
	URI   string `json:"uri"`
	Line  int    `json:"line"`
	Error string `json:"error,omitempty"`
}

// Blocks lists the spotiplayer blocks of a note without playing anything.
func (r *Runner) Blocks(ctx context.Context, cmd *cli.Command) error {
	path, err := notePath(cmd)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read note: %w", err)
	}

	blocks := notes.Extract(source)

	if cmd.Bool("json") {
		out := make([]blockJSON, 0, len(blocks))
		for _, b := range blocks {
			item := blockJSON{Label: b.Label, URI: b.URI, Line: b.Line}
			if !b.Valid() {
				item.Error = b.ErrorText()
			}
			out = append(out, item)
		}
		return r.writeJSON(out, true)
	}

	if len(blocks) == 0 {
		return r.writePlain("No %s blocks in %s\n", notes.Language, path)
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d blocks)", path, len(blocks)))
	for _, b := range blocks {
		if !b.Valid() {
			r.writePlain("line %d: %s\n", b.Line, b.ErrorText())
			continue
		}
		r.writePlain("line %d: %s → %s\n", b.Line, b.Label, b.URI)
	}
	return nil
}

func notePath(cmd *cli.Command) (string, error) {
	path := cmd.StringArg("path")
	if path == "" {
		return "", fmt.Errorf("%w: note path", shared.ErrMissingArgument)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return path, nil
}
