package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotiplay/internal/shared"
	"github.com/urfave/cli/v3"
)

// Play dispatches a single URI, logging in first when the stored token is missing or expired.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	uri := cmd.StringArg("uri")
	if uri == "" {
		return fmt.Errorf("%w: uri", shared.ErrMissingArgument)
	}

	d, err := r.Dispatcher("cli")
	if err != nil {
		return err
	}

	res := d.Play(ctx, uri)
	if !res.OK() {
		return res.Err()
	}
	return r.writePlain("✓ Playing %s (%s) on %s\n", res.Target.URI, res.Target.Resource, res.DeviceID)
}
