// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}
}

func prettyFlag() cli.Flag {
	return &cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output", Value: true}
}

// ownerFlag identifies the requester for owner-only actions.
func ownerFlag() cli.Flag {
	return &cli.StringFlag{Name: "owner", Aliases: []string{"o"}, Usage: "Requesting user ID", Sources: cli.EnvVars(envUserID)}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending migrations",
				Action: r.SetupStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand links playback accounts to events and users.
func authCommand(r *Runner) *cli.Command {
	principalFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{Name: "event", Usage: "Event ID whose shared credentials to set"},
			&cli.StringFlag{Name: "user", Usage: "User email whose personal credentials to set"},
		}
	}

	return &cli.Command{
		Name:  "auth",
		Usage: "Manage playback authorization",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize playback for an event or a user using OAuth2",
				Flags: append(principalFlags(),
					&cli.StringFlag{Name: "name", Usage: "Display name when creating the user"},
					&cli.DurationFlag{Name: "timeout", Usage: "How long to wait for the browser callback", Value: defaultAuthTimeout},
				),
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show whether an event or a user has stored credentials",
				Flags:  principalFlags(),
				Action: r.AuthStatus,
			},
		},
	}
}

// eventCommand manages events.
func eventCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "event",
		Usage: "Create and manage events",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Start a new event",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.StringFlag{Name: "mode", Usage: "queue or playlist", Value: "queue"},
					jsonFlag(),
				},
				Action: r.EventCreate,
			},
			{
				Name:   "list",
				Usage:  "List active events",
				Flags:  []cli.Flag{ownerFlag(), jsonFlag(), prettyFlag()},
				Action: r.EventList,
			},
			{
				Name:      "deactivate",
				Usage:     "End an event",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{ownerFlag()},
				Action:    r.EventDeactivate,
			},
			{
				Name:      "host",
				Usage:     "Hand playback to another user, or back to the event with an empty email",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					ownerFlag(),
					&cli.StringFlag{Name: "email", Usage: "Email of the new host"},
				},
				Action: r.EventHost,
			},
			{
				Name:      "playlist",
				Usage:     "Create the playlist of a playlist-mode event",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{ownerFlag()},
				Action:    r.EventPlaylist,
			},
		},
	}
}

// queueCommand reads and changes what plays next.
func queueCommand(r *Runner) *cli.Command {
	viewFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "view", Usage: "tv, guest, or manager", Value: "guest"}
	}

	return &cli.Command{
		Name:  "queue",
		Usage: "Show and change an event's queue",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Print the current queue",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{viewFlag(), jsonFlag(), prettyFlag()},
				Action:    r.QueueShow,
			},
			{
				Name:      "watch",
				Usage:     "Follow the queue in a live terminal view",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{viewFlag(), ownerFlag()},
				Action:    r.QueueWatch,
			},
			{
				Name:      "add",
				Usage:     "Request a track by Spotify URI",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}, &cli.StringArg{Name: "uri"}},
				Action:    r.QueueAdd,
			},
			{
				Name:      "skip",
				Usage:     "Skip the current track",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{ownerFlag()},
				Action:    r.QueueSkip,
			},
			{
				Name:      "export",
				Usage:     "Write the queue to a file",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "view", Usage: "tv, guest, or manager", Value: "manager"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "csv, md, or txt", Value: "md"},
					&cli.StringFlag{Name: "output", Usage: "Output file path (default: {event id}_queue.{format})"},
				},
				Action: r.QueueExport,
			},
		},
	}
}

// searchCommand searches the catalog with an event's credentials.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search tracks for an event",
		Arguments: []cli.Argument{&cli.StringArg{Name: "id"}, &cli.StringArg{Name: "query"}},
		Flags:     []cli.Flag{jsonFlag(), prettyFlag()},
		Action:    r.Search,
	}
}

// playlistCommand handles playlist operations on a user's own account.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:      "follow",
				Usage:     "Follow an event playlist with your own account",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "Your email", Required: true},
				},
				Action: r.PlaylistFollow,
			},
		},
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the queue API server",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on (overrides config)"},
		},
		Action: r.Serve,
	}
}

// cacheCommand manages the search cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the Redis search cache",
		Commands: []*cli.Command{
			{
				Name:   "clear",
				Usage:  "Delete all cached search results",
				Action: r.CacheClear,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for browsing and following events.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive TUI",
		Flags:   []cli.Flag{ownerFlag()},
		Action:  r.TUI,
	}
}
