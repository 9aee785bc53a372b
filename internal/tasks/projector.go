package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/services"
	"github.com/desertthunder/partyq/internal/shared"
)

// OfflineMessage is shown when the host has no active playback device.
const OfflineMessage = "DJ is currently offline or no active device found"

// Playback executes playback API calls with an explicitly threaded token. [*services.Gateway] implements it.
type Playback interface {
	AccessToken(ctx context.Context, ref models.PrincipalRef) (string, error)
	Do(ctx context.Context, ref models.PrincipalRef, token string, req services.Request, out any) (string, error)
}

// Projector builds a [models.QueueView] for an event from live playback state.
//
// Each projection is independent. The only state carried between projections is the persisted token.
type Projector struct {
	playback Playback
	logger   *log.Logger
}

// NewProjector creates a [Projector].
func NewProjector(playback Playback, logger *log.Logger) *Projector {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Projector{playback: playback, logger: logger}
}

// Project returns what is playing for event and the next view.Window() tracks.
//
// The device check runs first in both modes, and a host without an active device yields an offline view
// with no error. Queue mode lists the player queue in upstream order. Playlist mode lists the tracks after
// the current one in the event playlist, or the first tracks of the playlist when the current one is not in it.
func (p *Projector) Project(ctx context.Context, event *models.Event, view models.View) (*models.QueueView, error) {
	if event.Mode() == models.ModePlaylist && event.PlaylistID() == "" {
		return nil, fmt.Errorf("%w: event %s has no playlist", shared.ErrNotConfigured, event.ID())
	}

	ref := event.Principal()
	logger := p.logger.With("event", event.ID(), "view", view)

	token, err := p.playback.AccessToken(ctx, ref)
	if err != nil {
		return nil, err
	}

	var player services.PlayerState
	token, err = p.playback.Do(ctx, ref, token, services.PlayerStateRequest(), &player)
	if errors.Is(err, shared.ErrHostOffline) || (err == nil && !player.HasActiveDevice()) {
		logger.Info("no active device")
		return offlineView(event.Mode()), nil
	}
	if err != nil {
		return nil, err
	}

	qv := &models.QueueView{
		Mode:       event.Mode(),
		IsPlaying:  player.IsPlaying,
		ProgressMS: player.ProgressMS,
		Upcoming:   []models.Track{},
	}

	var current *services.SpotifyTrack
	var upcoming []services.SpotifyTrack

	switch event.Mode() {
	case models.ModePlaylist:
		current, upcoming, err = p.projectPlaylist(ctx, ref, token, event.PlaylistID(), view.Window(), logger)
	default:
		current, upcoming, err = p.projectQueue(ctx, ref, token, view.Window())
	}
	if errors.Is(err, shared.ErrHostOffline) {
		logger.Info("host went offline during projection")
		return offlineView(event.Mode()), nil
	}
	if err != nil {
		return nil, err
	}

	if current == nil {
		current = player.Item
	}
	if current != nil {
		track := current.Normalize()
		qv.Current = &track
		qv.DurationMS = current.DurationMS
	}
	qv.Upcoming = services.NormalizeTracks(upcoming)

	logger.Debug("projected queue", "current", qv.Current != nil, "upcoming", len(qv.Upcoming))
	return qv, nil
}

func (p *Projector) projectQueue(ctx context.Context, ref models.PrincipalRef, token string, k int) (*services.SpotifyTrack, []services.SpotifyTrack, error) {
	var queue services.PlayerQueue
	if _, err := p.playback.Do(ctx, ref, token, services.PlayerQueueRequest(), &queue); err != nil {
		return nil, nil, err
	}
	return queue.CurrentlyPlaying, firstN(queue.Queue, k), nil
}

func (p *Projector) projectPlaylist(
	ctx context.Context,
	ref models.PrincipalRef,
	token, playlistID string,
	k int,
	logger *log.Logger,
) (*services.SpotifyTrack, []services.SpotifyTrack, error) {
	var playing services.CurrentlyPlaying
	token, err := p.playback.Do(ctx, ref, token, services.CurrentlyPlayingRequest(), &playing)
	if err != nil {
		if errors.Is(err, shared.ErrAuthExpired) || errors.Is(err, shared.ErrRateLimited) {
			return nil, nil, err
		}
		logger.Debug("currently playing unavailable", "error", err)
	}

	var page services.PlaylistTracksPage
	if _, err := p.playback.Do(ctx, ref, token, services.PlaylistTracksRequest(playlistID, services.PlaylistFetchLimit), &page); err != nil {
		return nil, nil, err
	}

	currentID := ""
	if playing.Item != nil {
		currentID = playing.Item.ID
	}
	return playing.Item, Window(page.Tracks(), currentID, k), nil
}

// Window returns the k tracks following currentID, or the first k tracks when currentID is absent.
//
// The fallback can show tracks that already played; the playlist carries no play history.
func Window(tracks []services.SpotifyTrack, currentID string, k int) []services.SpotifyTrack {
	if currentID != "" {
		for i, t := range tracks {
			if t.ID == currentID {
				return firstN(tracks[i+1:], k)
			}
		}
	}
	return firstN(tracks, k)
}

func firstN(tracks []services.SpotifyTrack, k int) []services.SpotifyTrack {
	if k < 0 {
		k = 0
	}
	if len(tracks) > k {
		return tracks[:k]
	}
	return tracks
}

func offlineView(mode models.Mode) *models.QueueView {
	return &models.QueueView{Mode: mode, Upcoming: []models.Track{}, Message: OfflineMessage}
}
