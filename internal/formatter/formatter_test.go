package formatter

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotiplay/internal/models"
	"github.com/desertthunder/spotiplay/internal/shared"
	th "github.com/desertthunder/spotiplay/internal/testing"
)

func samplePlays() []*models.Play {
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

	ok := models.NewPlay("spotify:track:1", "track", "dev-1", models.OutcomeOK, "", "cli")
	ok.SetSequence(2)
	ok.SetCreatedAt(at)

	failed := models.NewPlay("not-a-uri", "", "dev-1", "invalid_uri", "Unable to play track: Invalid | URI", "notes/today.md")
	failed.SetSequence(1)
	failed.SetCreatedAt(at.Add(-time.Minute))

	return []*models.Play{ok, failed}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(samplePlays())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "Sequence,Time,URI,Resource,Device,Outcome,Message,Source\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "2,2025-03-01 09:30:00,spotify:track:1,track,dev-1,ok,,cli") {
			t.Errorf("CSV missing successful play, got: %s", output)
		}
		if !strings.Contains(output, "invalid_uri") {
			t.Errorf("CSV missing failed play")
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(samplePlays())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "# Play History") {
			t.Error("Markdown missing heading")
		}
		if !strings.Contains(output, "**Plays**: 2") {
			t.Error("Markdown missing count")
		}
		if !strings.Contains(output, "| 2 | 2025-03-01 09:30:00 | `spotify:track:1` | dev-1 | ok |") {
			t.Errorf("Markdown missing row, got:\n%s", output)
		}
		if !strings.Contains(output, `Invalid \| URI`) {
			t.Errorf("expected pipes escaped, got:\n%s", output)
		}
	})

	t.Run("ExportToMarkdown empty", func(t *testing.T) {
		data, _ := ExportToMarkdown(nil)
		if strings.Contains(string(data), "|") {
			t.Error("expected no table for empty history")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(samplePlays())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Plays: 2") {
			t.Error("text missing count")
		}
		if !strings.Contains(output, "✓ 2025-03-01 09:30:00 spotify:track:1 on dev-1") {
			t.Errorf("text missing successful play, got:\n%s", output)
		}
		if !strings.Contains(output, "✗ 2025-03-01 09:29:00 not-a-uri on dev-1 (Unable to play track: Invalid | URI)") {
			t.Errorf("text missing failed play, got:\n%s", output)
		}
	})
}

func TestWrite(t *testing.T) {
	t.Run("formats", func(t *testing.T) {
		for _, format := range []string{FormatPlain, FormatCSV, FormatMarkdown, "markdown", ""} {
			var buf bytes.Buffer
			if err := Write(&buf, format, samplePlays()); err != nil {
				t.Errorf("format %q: unexpected error %v", format, err)
			}
			if buf.Len() == 0 {
				t.Errorf("format %q: expected output", format)
			}
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		err := Write(&bytes.Buffer{}, "xml", samplePlays())
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("writer failure", func(t *testing.T) {
		if err := Write(&th.FWriter{}, FormatCSV, samplePlays()); err == nil {
			t.Error("expected error from failing writer")
		}
	})

	t.Run("WriteFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.csv")
		if err := WriteFile(path, FormatCSV, samplePlays()); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		th.AssertFileExists(t, path)
		if !strings.Contains(th.MustReadFile(t, path), "spotify:track:1") {
			t.Error("history file missing play")
		}
	})

	t.Run("WriteFile bad path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "history.csv")
		if err := WriteFile(path, FormatCSV, samplePlays()); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}
