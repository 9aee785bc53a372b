package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/partyq/internal/formatter"
	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/shared"
	"github.com/urfave/cli/v3"
)

func parseView(cmd *cli.Command) (models.View, error) {
	view, err := models.ParseView(cmd.String("view"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return view, nil
}

// QueueShow prints what is playing and what comes next.
func (r *Runner) QueueShow(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	view, err := parseView(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	qv, err := r.engine.GetQueueView(ctx, id, view)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(qv, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.QueueToText(qv))
}

// QueueAdd requests a track.
func (r *Runner) QueueAdd(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	uri, err := requiredArg(cmd, "uri")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	if err := r.engine.EnqueueTrack(ctx, id, uri); err != nil {
		return err
	}
	return r.writePlain("✓ Requested %s\n", uri)
}

// QueueSkip skips the current track.
func (r *Runner) QueueSkip(ctx context.Context, cmd *cli.Command) error {
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

	if err := r.engine.SkipTrack(ctx, id, owner); err != nil {
		return err
	}
	return r.writePlain("✓ Skipped\n")
}

// QueueExport writes the queue to a file as CSV, Markdown, or text.
func (r *Runner) QueueExport(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	view, err := parseView(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	event, err := r.engine.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	qv, err := r.engine.GetQueueView(ctx, id, view)
	if err != nil {
		return err
	}

	format := cmd.String("format")
	path := cmd.String("output")
	if path == "" {
		path = fmt.Sprintf("%s_queue.%s", event.ID(), format)
	}

	if err := formatter.WriteQueueExport(event.Name(), qv, format, path); err != nil {
		return err
	}
	r.logger.Info("queue exported", "event", event.ID(), "format", format, "path", path)
	return r.writePlain("✓ Queue written to %s\n", path)
}

// Search lists catalog matches for an event.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	query, err := requiredArg(cmd, "query")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	tracks, err := r.engine.SearchTracks(ctx, id, query)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if tracks == nil {
			tracks = []models.Track{}
		}
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.TracksToText(tracks))
}

// PlaylistFollow follows a playlist with the user's own account.
func (r *Runner) PlaylistFollow(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	if err := r.engine.FollowPlaylist(ctx, cmd.String("email"), id); err != nil {
		return err
	}
	return r.writePlain("✓ Following playlist %s\n", id)
}
