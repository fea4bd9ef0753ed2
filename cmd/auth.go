package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotiplay/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the browser authorization flow and stores the resulting tokens.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	authorizer, err := r.Authorizer()
	if err != nil {
		return err
	}

	if err := authorizer.Authenticate(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if authorizer.AccessToken() == "" {
		return fmt.Errorf("%w: token exchange failed, see logs", shared.ErrAuthFailed)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n", r.store.Path())
	if !r.store.Config().Auth.PersistRefreshToken {
		r.writePlain("Refresh token not persisted; you will be asked to log in again after it expires.\n")
	}
	return nil
}

// AuthStatus reports the stored session. With --check the access token is verified against the API.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	config := r.store.Config()
	creds := config.Credentials.Spotify

	r.writePlainHeader("Spotify session")
	r.writePlain("Config:        %s\n", r.store.Path())
	r.writePlain("Credentials:   %s\n", mark(creds.ClientID != "" && creds.ClientSecret != ""))
	r.writePlain("Access token:  %s\n", mark(creds.AccessToken != ""))
	r.writePlain("Refresh token: %s (persist_refresh_token = %t)\n", mark(creds.RefreshToken != ""), config.Auth.PersistRefreshToken)

	device := config.Playback.DeviceID
	if device == "" {
		device = "auto (first available)"
	}
	r.writePlain("Device:        %s\n", device)

	if !cmd.Bool("check") || creds.AccessToken == "" {
		return nil
	}

	r.player.SetAccessToken(creds.AccessToken)
	if _, err := r.player.Devices(ctx); err != nil {
		r.logger.Debug("token check failed", "error", err)
		return r.writePlain("Token check:   ✗ expired or revoked, run 'spotiplay auth login'\n")
	}
	return r.writePlain("Token check:   ✓ valid\n")
}

// AuthLogout removes the stored tokens.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.store.SaveTokens("", ""); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	r.logger.Info("tokens cleared", "path", r.store.Path())
	return r.writePlain("✓ Logged out\n")
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
