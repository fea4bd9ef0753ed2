package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotiplay/internal/formatter"
	"github.com/desertthunder/spotiplay/internal/repositories"
	"github.com/urfave/cli/v3"
)

// History prints recorded plays, newest first, in the requested format.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.Database()
	if err != nil {
		return err
	}

	plays, err := repositories.NewPlayRepository(db).List(map[string]any{
		"outcome": cmd.String("outcome"),
		"limit":   int(cmd.Int("limit")),
	})
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	format := cmd.String("format")
	if output := cmd.String("output"); output != "" {
		if err := formatter.WriteFile(output, format, plays); err != nil {
			return err
		}
		r.logger.Info("history exported", "path", output, "plays", len(plays))
		return r.writePlain("✓ Exported %d plays to %s\n", len(plays), output)
	}

	return formatter.Write(r.output, format, plays)
}
