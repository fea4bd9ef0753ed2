// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// app is the root command. --config and --verbose are inherited by every subcommand.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "spotiplay",
		Usage:   "Play Spotify tracks, playlists and albums from buttons in your notes",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.Before,
		Commands: r.register(),
	}
}

// setupCommand creates the config file and history database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the play history database",
		Action: r.Setup,
	}
}

// authCommand handles the Spotify session
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify in the browser",
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show whether a valid session is stored",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Verify the access token against the Spotify API",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget stored tokens",
				Action: r.AuthLogout,
			},
		},
	}
}

// devicesCommand lists and selects playback devices
func devicesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "devices",
		Aliases: []string{"dev"},
		Usage:   "Spotify Connect devices",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List available playback devices",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.DevicesList,
			},
			{
				Name:  "select",
				Usage: "Select the playback device (first available when no id is given)",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Action: r.DevicesSelect,
			},
		},
	}
}

// playCommand plays a single URI or link
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play a spotify: URI or open.spotify.com link",
		ArgsUsage: "<uri>",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "uri",
			},
		},
		Action: r.Play,
	}
}

// openCommand renders a note as play buttons
func openCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Open a note and play its spotiplayer blocks interactively",
		ArgsUsage: "<note.md>",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "path",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Reload the note when it changes on disk",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs here while the interface is running",
				Value: "./tmp/spotiplay-tui.log",
			},
		},
		Action: r.Open,
	}
}

// blocksCommand prints the blocks found in a note
func blocksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "blocks",
		Usage:     "List the spotiplayer blocks in a note",
		ArgsUsage: "<note.md>",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "path",
			},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Blocks,
	}
}

// historyCommand exports recorded plays
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded plays",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: plain, csv or md",
				Value:   "plain",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of plays to show",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "outcome",
				Usage: "Only show plays with this outcome (ok, not_authenticated, no_device, invalid_uri, playback_failed)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to this file instead of stdout",
			},
		},
		Action: r.History,
	}
}
