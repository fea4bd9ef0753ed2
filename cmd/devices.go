package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotiplay/internal/services"
	"github.com/urfave/cli/v3"
)

// DevicesList prints the available playback devices, marking the selected one.
func (r *Runner) DevicesList(ctx context.Context, cmd *cli.Command) error {
	d, err := r.Dispatcher("cli")
	if err != nil {
		return err
	}

	devices, err := d.Devices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(devices, true)
	}

	if len(devices) == 0 {
		return r.writePlain("No devices available. Open Spotify on a phone, desktop or web player.\n")
	}

	selected := r.store.Settings().DeviceID
	r.writePlainHeader(fmt.Sprintf("Devices (%d)", len(devices)))
	for _, device := range devices {
		r.writePlain("%s\n", deviceLine(device, selected))
	}
	return nil
}

// DevicesSelect replaces the persisted playback device.
func (r *Runner) DevicesSelect(ctx context.Context, cmd *cli.Command) error {
	d, err := r.Dispatcher("cli")
	if err != nil {
		return err
	}

	device, err := d.SelectDevice(ctx, cmd.StringArg("id"))
	if err != nil {
		return fmt.Errorf("failed to select device: %w", err)
	}
	return r.writePlain("✓ Selected %s (%s)\n", device.Name, device.ID)
}

func deviceLine(device services.Device, selected string) string {
	prefix := "  "
	if device.ID == selected {
		prefix = "* "
	}

	line := fmt.Sprintf("%s%s [%s] %s", prefix, device.Name, device.Type, device.ID)
	if device.Active {
		line += " (active)"
	}
	if device.Restricted {
		line += " (restricted)"
	}
	return line
}
