package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/services"
	"github.com/desertthunder/partyq/internal/shared"
)

// MaxActiveEvents is how many events one owner may run at the same time.
const MaxActiveEvents = 2

// EventStore persists events. [*repositories.EventRepository] implements it.
type EventStore interface {
	Create(event *models.Event) error
	Get(id string) (*models.Event, error)
	Update(event *models.Event) error
	Delete(id string) error
	List(criteria map[string]any) ([]*models.Event, error)
	CountActiveByOwner(ownerID string) (int, error)
}

// UserStore looks up users. [*repositories.UserRepository] implements it.
type UserStore interface {
	GetByEmail(email string) (*models.User, error)
}

// CredentialReader reads stored tokens. [*repositories.CredentialRepository] implements it.
type CredentialReader interface {
	GetByPrincipal(ctx context.Context, ref models.PrincipalRef) (*models.Credentials, error)
}

// SearchCache stores search results by normalized query.
type SearchCache interface {
	Get(ctx context.Context, query string) ([]models.Track, bool, error)
	Set(ctx context.Context, query string, tracks []models.Track) error
}

// Engine exposes the party queue operations to the HTTP and CLI layers.
type Engine struct {
	events      EventStore
	users       UserStore
	credentials CredentialReader
	playback    Playback
	projector   *Projector
	cache       SearchCache
	logger      *log.Logger
}

// NewEngine creates an [Engine]. cache may be nil to search upstream every time.
func NewEngine(
	events EventStore,
	users UserStore,
	credentials CredentialReader,
	playback Playback,
	cache SearchCache,
	logger *log.Logger,
) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{
		events:      events,
		users:       users,
		credentials: credentials,
		playback:    playback,
		projector:   NewProjector(playback, logger),
		cache:       cache,
		logger:      logger,
	}
}

// GetQueueView projects the current queue of an active event for view.
func (e *Engine) GetQueueView(ctx context.Context, eventID string, view models.View) (*models.QueueView, error) {
	event, err := e.events.Get(eventID)
	if err != nil {
		return nil, err
	}
	return e.projector.Project(ctx, event, view)
}

// EnqueueTrack adds uri to the player queue, or appends it to the event playlist in playlist mode.
func (e *Engine) EnqueueTrack(ctx context.Context, eventID, uri string) error {
	uri = strings.TrimSpace(uri)
	if !strings.HasPrefix(uri, "spotify:track:") {
		return fmt.Errorf("%w: track uri %q", shared.ErrInvalidInput, uri)
	}

	event, err := e.events.Get(eventID)
	if err != nil {
		return err
	}

	var req services.Request
	switch event.Mode() {
	case models.ModePlaylist:
		if event.PlaylistID() == "" {
			return fmt.Errorf("%w: event %s has no playlist", shared.ErrNotConfigured, event.ID())
		}
		req = services.AddToPlaylistRequest(event.PlaylistID(), uri)
	default:
		req = services.AddToQueueRequest(uri)
	}

	if err := e.do(ctx, event.Principal(), req, nil); err != nil {
		return err
	}

	e.logger.Info("track requested", "event", event.ID(), "mode", event.Mode(), "uri", uri)
	return nil
}

// SearchTracks returns up to [services.SearchLimit] tracks matching query.
func (e *Engine) SearchTracks(ctx context.Context, eventID, query string) ([]models.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	event, err := e.events.Get(eventID)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		tracks, ok, err := e.cache.Get(ctx, query)
		if err != nil {
			e.logger.Warn("search cache read failed", "error", err)
		} else if ok {
			return tracks, nil
		}
	}

	var resp services.SearchResponse
	if err := e.do(ctx, event.Principal(), services.SearchRequest(query, services.SearchLimit), &resp); err != nil {
		return nil, err
	}

	tracks := services.NormalizeTracks(resp.Tracks.Items)
	if e.cache != nil {
		if err := e.cache.Set(ctx, query, tracks); err != nil {
			e.logger.Warn("search cache write failed", "error", err)
		}
	}
	return tracks, nil
}

// SkipTrack skips to the next track. Only the event owner may skip.
func (e *Engine) SkipTrack(ctx context.Context, eventID, requesterID string) error {
	event, err := e.ownedEvent(eventID, requesterID)
	if err != nil {
		return err
	}
	return e.do(ctx, event.Principal(), services.SkipNextRequest(), nil)
}

// FollowPlaylist follows playlistID with the user's own credentials.
func (e *Engine) FollowPlaylist(ctx context.Context, email, playlistID string) error {
	if strings.TrimSpace(playlistID) == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	user, err := e.users.GetByEmail(email)
	if err != nil {
		return err
	}
	return e.do(ctx, user.Principal(), services.FollowPlaylistRequest(playlistID), nil)
}

// ProvisionPlaylist creates the playlist of a playlist-mode event. An event that already has one keeps it.
func (e *Engine) ProvisionPlaylist(ctx context.Context, eventID, requesterID string) (*models.Event, error) {
	event, err := e.ownedEvent(eventID, requesterID)
	if err != nil {
		return nil, err
	}
	if event.Mode() != models.ModePlaylist {
		return nil, fmt.Errorf("%w: event %s is in %s mode", shared.ErrInvalidInput, event.ID(), event.Mode())
	}
	if event.PlaylistID() != "" {
		return event, nil
	}

	ref := event.Principal()
	token, err := e.playback.AccessToken(ctx, ref)
	if err != nil {
		return nil, err
	}

	var me services.SpotifyUser
	if token, err = e.playback.Do(ctx, ref, token, services.CurrentUserRequest(), &me); err != nil {
		return nil, err
	}

	var playlist services.SpotifyPlaylist
	req := services.CreatePlaylistRequest(me.ID, event.Name(), "Requests for "+event.Name(), true)
	if _, err := e.playback.Do(ctx, ref, token, req, &playlist); err != nil {
		return nil, err
	}
	if playlist.ID == "" {
		return nil, fmt.Errorf("%w: created playlist has no id", shared.ErrUpstream)
	}

	if err := event.SetPlaylistID(playlist.ID); err != nil {
		return nil, err
	}
	if err := e.events.Update(event); err != nil {
		return nil, err
	}

	e.logger.Info("playlist provisioned", "event", event.ID(), "playlist", playlist.ID)
	return event, nil
}

// ChangeHost hands playback to the user with email. An empty email hands it back to the event's own credentials.
func (e *Engine) ChangeHost(ctx context.Context, eventID, requesterID, email string) (*models.Event, error) {
	event, err := e.ownedEvent(eventID, requesterID)
	if err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	if email == "" {
		event.SetActiveHostEmail("")
	} else {
		user, err := e.users.GetByEmail(email)
		if err != nil {
			return nil, err
		}
		creds, err := e.credentials.GetByPrincipal(ctx, user.Principal())
		if err != nil {
			return nil, err
		}
		if creds.AccessToken == "" && !creds.CanRefresh() {
			return nil, fmt.Errorf("%w: %s has not authorized playback", shared.ErrInvalidInput, user.Email())
		}
		event.SetActiveHostEmail(user.Email())
	}

	if err := e.events.Update(event); err != nil {
		return nil, err
	}

	e.logger.Info("host changed", "event", event.ID(), "host", event.Principal())
	return event, nil
}

// CreateEvent starts a new event for ownerID, who may hold at most [MaxActiveEvents] active events.
func (e *Engine) CreateEvent(ctx context.Context, name, ownerID string, mode models.Mode) (*models.Event, error) {
	count, err := e.events.CountActiveByOwner(ownerID)
	if err != nil {
		return nil, err
	}
	if count >= MaxActiveEvents {
		return nil, fmt.Errorf("%w: %s already has %d active events", shared.ErrEventLimit, ownerID, count)
	}

	event := models.NewEvent(0, strings.TrimSpace(name), ownerID, mode)
	if err := e.events.Create(event); err != nil {
		return nil, err
	}

	e.logger.Info("event created", "event", event.ID(), "mode", mode)
	return event, nil
}

// DeactivateEvent ends an event. Only the owner may deactivate it.
func (e *Engine) DeactivateEvent(ctx context.Context, eventID, requesterID string) error {
	event, err := e.ownedEvent(eventID, requesterID)
	if err != nil {
		return err
	}
	if err := e.events.Delete(event.ID()); err != nil {
		return err
	}

	e.logger.Info("event deactivated", "event", event.ID())
	return nil
}

// ListEvents returns active events, all of them when ownerID is empty.
func (e *Engine) ListEvents(ctx context.Context, ownerID string) ([]*models.Event, error) {
	return e.events.List(map[string]any{"owner_id": ownerID})
}

// GetEvent returns an active event.
func (e *Engine) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	return e.events.Get(eventID)
}

func (e *Engine) ownedEvent(eventID, requesterID string) (*models.Event, error) {
	event, err := e.events.Get(eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsOwner(requesterID) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotOwner, event.ID())
	}
	return event, nil
}

func (e *Engine) do(ctx context.Context, ref models.PrincipalRef, req services.Request, out any) error {
	token, err := e.playback.AccessToken(ctx, ref)
	if err != nil {
		return err
	}
	_, err = e.playback.Do(ctx, ref, token, req, out)
	return err
}
