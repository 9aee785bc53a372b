package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/partyq/internal/formatter"
	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/server"
	"github.com/desertthunder/partyq/internal/shared"
	"github.com/urfave/cli/v3"
)

// requiredArg returns a positional argument or an error naming it.
func requiredArg(cmd *cli.Command, name string) (string, error) {
	v := strings.TrimSpace(cmd.StringArg(name))
	if v == "" {
		return "", fmt.Errorf("%w: <%s>", shared.ErrMissingArgument, name)
	}
	return v, nil
}

// requiredOwner returns --owner or an error.
func requiredOwner(cmd *cli.Command) (string, error) {
	owner := strings.TrimSpace(cmd.String("owner"))
	if owner == "" {
		return "", fmt.Errorf("%w: --owner (or %s)", shared.ErrMissingArgument, envUserID)
	}
	return owner, nil
}

// EventCreate starts a new event.
func (r *Runner) EventCreate(ctx context.Context, cmd *cli.Command) error {
	name, err := requiredArg(cmd, "name")
	if err != nil {
		return err
	}
	owner, err := requiredOwner(cmd)
	if err != nil {
		return err
	}
	mode, err := models.ParseMode(cmd.String("mode"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	if err := r.open(ctx); err != nil {
		return err
	}

	event, err := r.engine.CreateEvent(ctx, name, owner, mode)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(server.NewEventResponse(event), false)
	}

	r.writePlain("✓ Event created: %s (%s)\n", event.Name(), event.ID())
	r.writePlain("Link playback with: partyq auth login --event %s\n", event.ID())
	if mode == models.ModePlaylist {
		r.writePlain("Then create its playlist: partyq event playlist %s --owner %s\n", event.ID(), owner)
	}
	return nil
}

// EventList lists active events, optionally only those of --owner.
func (r *Runner) EventList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	events, err := r.engine.ListEvents(ctx, cmd.String("owner"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		resp := make([]server.EventResponse, len(events))
		for i, e := range events {
			resp[i] = server.NewEventResponse(e)
		}
		return r.writeJSON(resp, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.EventsToText(events))
}

// EventDeactivate ends an event.
func (r *Runner) EventDeactivate(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	owner, err := requiredOwner(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	if err := r.engine.DeactivateEvent(ctx, id, owner); err != nil {
		return err
	}
	return r.writePlain("✓ Event %s deactivated\n", id)
}

// EventHost hands playback to another user.
func (r *Runner) EventHost(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	owner, err := requiredOwner(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	event, err := r.engine.ChangeHost(ctx, id, owner, cmd.String("email"))
	if err != nil {
		return err
	}

	if event.ActiveHostEmail() == "" {
		return r.writePlain("✓ Playback for %s uses the event's own account\n", event.Name())
	}
	return r.writePlain("✓ %s is now hosting %s\n", event.ActiveHostEmail(), event.Name())
}

// EventPlaylist creates the playlist of a playlist-mode event.
func (r *Runner) EventPlaylist(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	owner, err := requiredOwner(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	event, err := r.engine.ProvisionPlaylist(ctx, id, owner)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Event %s plays from playlist %s\n", event.Name(), event.PlaylistID())
}
