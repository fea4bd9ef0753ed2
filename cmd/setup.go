package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spotiplay/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the template when missing and initializes the history database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.store.Path()

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("using existing config file", "path", configPath)
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("✓ Config file created at %s\n", configPath)
	}

	config := r.store.Config()
	r.logger.Info("initializing database", "path", config.Database.Path)

	if _, err := r.Database(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)

	r.writePlain("✓ Play history database ready at %s\n", config.Database.Path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret in %s\n", configPath)
	r.writePlain("2. Add %s as a redirect URI in the Spotify developer dashboard\n", config.Credentials.Spotify.RedirectURI)
	r.writePlain("3. Run 'spotiplay auth login'\n")
	return nil
}
