// package formatter renders play history in various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotiplay/internal/models"
	"github.com/desertthunder/spotiplay/internal/shared"
)

// Format names accepted by [Write].
const (
	FormatPlain    = "plain"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

const timeLayout = time.DateTime

// ExportToCSV converts plays to CSV with columns: Sequence, Time, URI, Resource, Device, Outcome, Message, Source
func ExportToCSV(plays []*models.Play) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "Time", "URI", "Resource", "Device", "Outcome", "Message", "Source"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, play := range plays {
		record := []string{
			strconv.Itoa(play.Sequence()),
			play.CreatedAt().UTC().Format(timeLayout),
			play.URI,
			play.Resource,
			play.DeviceID,
			play.Outcome,
			play.Message,
			play.Source,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts plays to a Markdown table under a heading
func ExportToMarkdown(plays []*models.Play) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Play History\n\n")
	fmt.Fprintf(&buf, "**Plays**: %d\n\n", len(plays))

	if len(plays) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Time | URI | Device | Outcome |\n")
	buf.WriteString("|---|------|-----|--------|---------|\n")
	for _, play := range plays {
		outcome := play.Outcome
		if play.Message != "" {
			outcome = fmt.Sprintf("%s: %s", outcome, play.Message)
		}
		fmt.Fprintf(&buf, "| %d | %s | `%s` | %s | %s |\n",
			play.Sequence(),
			play.CreatedAt().UTC().Format(timeLayout),
			play.URI,
			cell(play.DeviceID),
			cell(outcome),
		)
	}

	return buf.Bytes(), nil
}

// ExportToText converts plays to plain text, one line per play
func ExportToText(plays []*models.Play) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Plays: %d\n\n", len(plays))
	for _, play := range plays {
		status := "✓"
		if !play.Succeeded() {
			status = "✗"
		}
		fmt.Fprintf(&buf, "%s %s %s", status, play.CreatedAt().UTC().Format(timeLayout), play.URI)
		if play.DeviceID != "" {
			fmt.Fprintf(&buf, " on %s", play.DeviceID)
		}
		if play.Message != "" {
			fmt.Fprintf(&buf, " (%s)", play.Message)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// Export renders plays in the named format.
func Export(format string, plays []*models.Play) ([]byte, error) {
	switch format {
	case FormatPlain, "":
		return ExportToText(plays)
	case FormatCSV:
		return ExportToCSV(plays)
	case FormatMarkdown, "markdown":
		return ExportToMarkdown(plays)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (want plain, csv or md)", shared.ErrInvalidArgument, format)
	}
}

// Write renders plays in the named format to w.
func Write(w io.Writer, format string, plays []*models.Play) error {
	data, err := Export(format, plays)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// WriteFile renders plays in the named format to path.
func WriteFile(path, format string, plays []*models.Play) error {
	data, err := Export(format, plays)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// cell escapes pipes so a value stays inside its Markdown table cell
func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}
