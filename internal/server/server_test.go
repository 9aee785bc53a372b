package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/services"
	"github.com/desertthunder/partyq/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) GetQueueView(ctx context.Context, eventID string, view models.View) (*models.QueueView, error) {
	args := m.Called(ctx, eventID, view)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueueView), args.Error(1)
}

func (m *MockEngine) EnqueueTrack(ctx context.Context, eventID, uri string) error {
	return m.Called(ctx, eventID, uri).Error(0)
}

func (m *MockEngine) SearchTracks(ctx context.Context, eventID, query string) ([]models.Track, error) {
	args := m.Called(ctx, eventID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Track), args.Error(1)
}

func (m *MockEngine) SkipTrack(ctx context.Context, eventID, requesterID string) error {
	return m.Called(ctx, eventID, requesterID).Error(0)
}

func (m *MockEngine) FollowPlaylist(ctx context.Context, email, playlistID string) error {
	return m.Called(ctx, email, playlistID).Error(0)
}

func (m *MockEngine) ProvisionPlaylist(ctx context.Context, eventID, requesterID string) (*models.Event, error) {
	args := m.Called(ctx, eventID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEngine) ChangeHost(ctx context.Context, eventID, requesterID, email string) (*models.Event, error) {
	args := m.Called(ctx, eventID, requesterID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestRouter(engine Engine) *BasicRouter {
	return New(engine, shared.ServerConfig{RequestTimeout: shared.Duration{Duration: time.Second}}, quietLogger())
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func testEvent(id string) *models.Event {
	e := models.NewEvent(1, "Friday", "owner-1", models.ModePlaylist)
	e.SetID(id)
	_ = e.SetPlaylistID("pl-1")
	return e
}

func TestBasicRouter(t *testing.T) {
	t.Run("applies middleware in order", func(t *testing.T) {
		var order []string
		trace := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(trace("first"), trace("second"))
		router.HandleFunc(http.MethodGet, "/ping", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})

		rr := do(t, router, http.MethodGet, "/ping", "", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"first", "second", "handler"}, order)
	})

	t.Run("rejects other methods", func(t *testing.T) {
		router := NewBasicRouter()
		router.HandleFunc(http.MethodGet, "/ping", func(w http.ResponseWriter, r *http.Request) {})

		rr := do(t, router, http.MethodDelete, "/ping", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("shares a path across methods", func(t *testing.T) {
		router := NewBasicRouter()
		router.HandleFunc(http.MethodGet, "/things/{id}", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "get "+r.PathValue("id"))
		})
		router.HandleFunc(http.MethodPost, "/things/{id}", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "post "+r.PathValue("id"))
		})

		assert.Equal(t, "get 7", do(t, router, http.MethodGet, "/things/7", "", nil).Body.String())
		assert.Equal(t, "post 7", do(t, router, http.MethodPost, "/things/7", "", nil).Body.String())
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("recover", func(t *testing.T) {
		h := Recover(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rr := do(t, h, http.MethodGet, "/", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("timeout sets a deadline", func(t *testing.T) {
		var deadline bool
		h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, deadline = r.Context().Deadline()
		}))
		do(t, h, http.MethodGet, "/", "", nil)
		assert.True(t, deadline)
	})

	t.Run("zero timeout passes through", func(t *testing.T) {
		var deadline bool
		h := Timeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, deadline = r.Context().Deadline()
		}))
		do(t, h, http.MethodGet, "/", "", nil)
		assert.False(t, deadline)
	})

	t.Run("logging records status", func(t *testing.T) {
		var buf strings.Builder
		h := Logging(log.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		do(t, h, http.MethodGet, "/brew", "", nil)
		assert.Contains(t, buf.String(), "418")
		assert.Contains(t, buf.String(), "/brew")
	})
}

func TestHealth(t *testing.T) {
	rr := do(t, newTestRouter(new(MockEngine)), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestQueueRoute(t *testing.T) {
	t.Run("defaults to the guest view", func(t *testing.T) {
		engine := new(MockEngine)
		view := &models.QueueView{
			Mode:     models.ModeQueue,
			Current:  &models.Track{ID: "t0", Title: "Track t0"},
			Upcoming: []models.Track{{ID: "t1"}, {ID: "t2"}},
		}
		engine.On("GetQueueView", mock.Anything, "ev-1", models.ViewGuest).Return(view, nil)

		rr := do(t, newTestRouter(engine), http.MethodGet, "/events/ev-1/queue", "", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var got models.QueueView
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "t0", got.Current.ID)
		assert.Len(t, got.Upcoming, 2)
		engine.AssertExpectations(t)
	})

	t.Run("passes the requested view", func(t *testing.T) {
		engine := new(MockEngine)
		engine.On("GetQueueView", mock.Anything, "ev-1", models.ViewTV).Return(&models.QueueView{}, nil)

		rr := do(t, newTestRouter(engine), http.MethodGet, "/events/ev-1/queue?view=tv", "", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		engine.AssertExpectations(t)
	})

	t.Run("unknown view", func(t *testing.T) {
		engine := new(MockEngine)
		rr := do(t, newTestRouter(engine), http.MethodGet, "/events/ev-1/queue?view=stage", "", nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, shared.KindInvalidInput, decodeError(t, rr).Error)
		engine.AssertNotCalled(t, "GetQueueView", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"host offline", &services.APIError{Kind: shared.ErrHostOffline, Status: 404}, http.StatusBadRequest, shared.KindHostOffline},
		{"auth expired", &services.AuthFailure{Reason: services.ReasonInvalidGrant}, http.StatusUnauthorized, shared.KindAuthExpired},
		{"forbidden", &services.APIError{Kind: shared.ErrForbidden, Status: 403}, http.StatusForbidden, shared.KindForbidden},
		{"not owner", shared.ErrNotOwner, http.StatusForbidden, shared.KindForbidden},
		{"not configured", shared.ErrNotConfigured, http.StatusBadRequest, shared.KindNotConfigured},
		{"upstream", &services.APIError{Kind: shared.ErrUpstream, Status: 500}, http.StatusBadGateway, shared.KindUpstream},
		{"not found", shared.ErrEventNotFound, http.StatusNotFound, shared.KindNotFound},
		{"invalid", shared.ErrInvalidInput, http.StatusBadRequest, shared.KindInvalidInput},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, shared.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(MockEngine)
			engine.On("SkipTrack", mock.Anything, "ev-1", "owner-1").Return(tt.err)

			rr := do(t, newTestRouter(engine), http.MethodPost, "/events/ev-1/skip", "", map[string]string{HeaderUserID: "owner-1"})

			assert.Equal(t, tt.status, rr.Code)
			resp := decodeError(t, rr)
			assert.Equal(t, tt.kind, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}

	t.Run("rate limited carries retry-after", func(t *testing.T) {
		engine := new(MockEngine)
		engine.On("SkipTrack", mock.Anything, "ev-1", "owner-1").
			Return(&services.APIError{Kind: shared.ErrRateLimited, Status: 429, RetryAfter: 3 * time.Second})

		rr := do(t, newTestRouter(engine), http.MethodPost, "/events/ev-1/skip", "", map[string]string{HeaderUserID: "owner-1"})

		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "3", rr.Header().Get("Retry-After"))
		assert.Equal(t, shared.KindRateLimited, decodeError(t, rr).Error)
	})
}

func TestEnqueueRoute(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		engine := new(MockEngine)
		engine.On("EnqueueTrack", mock.Anything, "ev-1", "spotify:track:abc").Return(nil)

		rr := do(t, newTestRouter(engine), http.MethodPost, "/events/ev-1/queue", `{"uri":"spotify:track:abc"}`, nil)

		assert.Equal(t, http.StatusAccepted, rr.Code)
		engine.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		engine := new(MockEngine)
		rr := do(t, newTestRouter(engine), http.MethodPost, "/events/ev-1/queue", `{"uri":`, nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, shared.KindInvalidInput, decodeError(t, rr).Error)
	})
}

func TestSearchRoute(t *testing.T) {
	t.Run("returns tracks", func(t *testing.T) {
		engine := new(MockEngine)
		engine.On("SearchTracks", mock.Anything, "ev-1", "daft punk").
			Return([]models.Track{{ID: "t1", Title: "One More Time"}}, nil)

		rr := do(t, newTestRouter(engine), http.MethodGet, "/events/ev-1/search?q=daft+punk", "", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Tracks []models.Track `json:"tracks"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Tracks, 1)
		assert.Equal(t, "One More Time", resp.Tracks[0].Title)
	})

	t.Run("empty result is an empty list", func(t *testing.T) {
		engine := new(MockEngine)
		engine.On("SearchTracks", mock.Anything, "ev-1", "zzz").Return(nil, nil)

		rr := do(t, newTestRouter(engine), http.MethodGet, "/events/ev-1/search?q=zzz", "", nil)
		assert.JSONEq(t, `{"tracks":[]}`, rr.Body.String())
	})
}

func TestHostAndPlaylistRoutes(t *testing.T) {
	t.Run("change host", func(t *testing.T) {
		engine := new(MockEngine)
		event := testEvent("ev-1")
		event.SetActiveHostEmail("dj@example.com")
		engine.On("ChangeHost", mock.Anything, "ev-1", "owner-1", "dj@example.com").Return(event, nil)

		rr := do(t, newTestRouter(engine), http.MethodPost, "/events/ev-1/host",
			`{"email":"dj@example.com"}`, map[string]string{HeaderUserID: "owner-1"})

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp EventResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "dj@example.com", resp.ActiveHostEmail)
	})

	t.Run("provision playlist", func(t *testing.T) {
		engine := new(MockEngine)
		engine.On("ProvisionPlaylist", mock.Anything, "ev-1", "owner-1").Return(testEvent("ev-1"), nil)

		rr := do(t, newTestRouter(engine), http.MethodPost, "/events/ev-1/playlist", "", map[string]string{HeaderUserID: "owner-1"})

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp EventResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "pl-1", resp.PlaylistID)
		assert.Equal(t, "playlist", resp.Mode)
	})

	t.Run("follow requires an email", func(t *testing.T) {
		engine := new(MockEngine)
		rr := do(t, newTestRouter(engine), http.MethodPost, "/playlists/pl-1/follow", "", nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		engine.AssertNotCalled(t, "FollowPlaylist", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("follow", func(t *testing.T) {
		engine := new(MockEngine)
		engine.On("FollowPlaylist", mock.Anything, "guest@example.com", "pl-1").Return(nil)

		rr := do(t, newTestRouter(engine), http.MethodPost, "/playlists/pl-1/follow", "",
			map[string]string{HeaderUserEmail: "guest@example.com"})

		assert.Equal(t, http.StatusNoContent, rr.Code)
		engine.AssertExpectations(t)
	})
}
