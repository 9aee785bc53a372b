package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/services"
	"github.com/desertthunder/partyq/internal/shared"
)

// Request headers identifying the caller. Authentication of the party's guests is handled in front of this API.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
)

const maxBodyBytes = 64 << 10

// Engine is the set of queue operations exposed over HTTP.
type Engine interface {
	GetQueueView(ctx context.Context, eventID string, view models.View) (*models.QueueView, error)
	EnqueueTrack(ctx context.Context, eventID, uri string) error
	SearchTracks(ctx context.Context, eventID, query string) ([]models.Track, error)
	SkipTrack(ctx context.Context, eventID, requesterID string) error
	FollowPlaylist(ctx context.Context, email, playlistID string) error
	ProvisionPlaylist(ctx context.Context, eventID, requesterID string) (*models.Event, error)
	ChangeHost(ctx context.Context, eventID, requesterID, email string) (*models.Event, error)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// EventResponse is the public representation of an [models.Event].
type EventResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Mode            string `json:"mode"`
	PlaylistID      string `json:"playlist_id,omitempty"`
	ActiveHostEmail string `json:"active_host_email,omitempty"`
}

// NewEventResponse converts an event for output.
func NewEventResponse(e *models.Event) EventResponse {
	return EventResponse{
		ID:              e.ID(),
		Name:            e.Name(),
		Mode:            string(e.Mode()),
		PlaylistID:      e.PlaylistID(),
		ActiveHostEmail: e.ActiveHostEmail(),
	}
}

// HealthHandler answers liveness probes.
type HealthHandler struct{}

func (HealthHandler) Routes() []string { return []string{"GET /health"} }

func (HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// EventHandler serves the per-event queue routes.
type EventHandler struct {
	engine Engine
	logger *log.Logger
}

// NewEventHandler creates an [EventHandler] backed by engine.
func NewEventHandler(engine Engine, logger *log.Logger) *EventHandler {
	return &EventHandler{engine: engine, logger: logger}
}

// Register mounts the event routes on r.
func (h *EventHandler) Register(r Router) {
	r.Handle(http.MethodGet, "/events/{id}/queue", http.HandlerFunc(h.queue))
	r.Handle(http.MethodPost, "/events/{id}/queue", http.HandlerFunc(h.enqueue))
	r.Handle(http.MethodGet, "/events/{id}/search", http.HandlerFunc(h.search))
	r.Handle(http.MethodPost, "/events/{id}/skip", http.HandlerFunc(h.skip))
	r.Handle(http.MethodPost, "/events/{id}/host", http.HandlerFunc(h.host))
	r.Handle(http.MethodPost, "/events/{id}/playlist", http.HandlerFunc(h.playlist))
	r.Handle(http.MethodPost, "/playlists/{id}/follow", http.HandlerFunc(h.follow))
}

func (h *EventHandler) queue(w http.ResponseWriter, r *http.Request) {
	view, err := models.ParseView(r.URL.Query().Get("view"))
	if err != nil {
		h.fail(w, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err))
		return
	}

	qv, err := h.engine.GetQueueView(r.Context(), r.PathValue("id"), view)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qv)
}

func (h *EventHandler) enqueue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URI string `json:"uri"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, err)
		return
	}

	if err := h.engine.EnqueueTrack(r.Context(), r.PathValue("id"), body.URI); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"uri": body.URI})
}

func (h *EventHandler) search(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.engine.SearchTracks(r.Context(), r.PathValue("id"), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

func (h *EventHandler) skip(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.SkipTrack(r.Context(), r.PathValue("id"), r.Header.Get(HeaderUserID)); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) host(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, err)
		return
	}

	event, err := h.engine.ChangeHost(r.Context(), r.PathValue("id"), r.Header.Get(HeaderUserID), body.Email)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewEventResponse(event))
}

func (h *EventHandler) playlist(w http.ResponseWriter, r *http.Request) {
	event, err := h.engine.ProvisionPlaylist(r.Context(), r.PathValue("id"), r.Header.Get(HeaderUserID))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewEventResponse(event))
}

func (h *EventHandler) follow(w http.ResponseWriter, r *http.Request) {
	email := r.Header.Get(HeaderUserEmail)
	if email == "" {
		h.fail(w, fmt.Errorf("%w: %s header", shared.ErrMissingArgument, HeaderUserEmail))
		return
	}

	if err := h.engine.FollowPlaylist(r.Context(), email, r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) fail(w http.ResponseWriter, err error) {
	kind := shared.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "kind", kind, "error", err)
	} else {
		h.logger.Debug("request rejected", "kind", kind, "error", err)
	}

	var apiErr *services.APIError
	if kind == shared.KindRateLimited && errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(apiErr.RetryAfter.Round(time.Second)/time.Second)))
	}

	writeJSON(w, status, ErrorResponse{Error: kind, Message: err.Error()})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind string) int {
	switch kind {
	case shared.KindHostOffline, shared.KindNotConfigured, shared.KindInvalidInput:
		return http.StatusBadRequest
	case shared.KindAuthExpired:
		return http.StatusUnauthorized
	case shared.KindForbidden:
		return http.StatusForbidden
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindRateLimited:
		return http.StatusTooManyRequests
	case shared.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
