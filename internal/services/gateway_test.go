package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/partyq/internal/shared"
	tu "github.com/desertthunder/partyq/internal/testing"
)

func TestGateway(t *testing.T) {
	ctx := context.Background()

	t.Run("Uses Stored Token", func(t *testing.T) {
		h := newHarness(t, "good", "refresh-1")
		h.upstream.RequireToken("good")
		h.upstream.Reply(http.MethodGet, "/me/player", http.StatusOK, tu.PlayerJSON(true))

		var state PlayerState
		token, err := h.gateway.Do(ctx, h.ref, "good", PlayerStateRequest(), &state)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if token != "good" {
			t.Errorf("expected token good, got %s", token)
		}
		if !state.HasActiveDevice() {
			t.Error("expected active device")
		}
		if h.upstream.TokenCalls() != 0 {
			t.Errorf("expected no refresh, got %d", h.upstream.TokenCalls())
		}
	})

	t.Run("Refreshes Once On 401", func(t *testing.T) {
		h := newHarness(t, "expired", "refresh-1")
		h.upstream.RequireToken("not-yet-issued")
		h.upstream.AllowRefresh("refresh-1")
		h.upstream.Reply(http.MethodGet, "/me/player/queue", http.StatusOK, tu.QueueJSON("a", "b"))

		var queue PlayerQueue
		token, err := h.gateway.Do(ctx, h.ref, "expired", PlayerQueueRequest(), &queue)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if token != "access-1" {
			t.Errorf("expected refreshed token access-1, got %s", token)
		}
		if len(queue.Queue) != 1 || queue.Queue[0].ID != "b" {
			t.Errorf("unexpected queue %+v", queue.Queue)
		}
		if calls := h.upstream.Calls(http.MethodGet, "/me/player/queue"); calls != 2 {
			t.Errorf("expected 2 upstream calls, got %d", calls)
		}
		if h.upstream.TokenCalls() != 1 {
			t.Errorf("expected 1 refresh, got %d", h.upstream.TokenCalls())
		}

		creds := h.stored(t)
		if creds.AccessToken != "access-1" {
			t.Errorf("expected refreshed token persisted, got %s", creds.AccessToken)
		}
		if creds.RefreshToken != "refresh-1" {
			t.Errorf("refresh token should be kept when not rotated, got %s", creds.RefreshToken)
		}
		if creds.ExpiresAt == nil {
			t.Error("expected expiry to be persisted")
		}
	})

	t.Run("Second 401 Is Auth Expired", func(t *testing.T) {
		h := newHarness(t, "expired", "refresh-1")
		h.upstream.AllowRefresh("refresh-1")
		h.upstream.Reply(http.MethodGet, "/me/player", http.StatusUnauthorized, tu.ErrorBody(401, "Invalid access token"))

		_, err := h.gateway.Do(ctx, h.ref, "expired", PlayerStateRequest(), nil)
		if !errors.Is(err, shared.ErrAuthExpired) {
			t.Fatalf("expected ErrAuthExpired, got %v", err)
		}
		if calls := h.upstream.Calls(http.MethodGet, "/me/player"); calls != 2 {
			t.Errorf("expected exactly one retry, got %d calls", calls)
		}
		if h.upstream.TokenCalls() != 1 {
			t.Errorf("expected 1 refresh, got %d", h.upstream.TokenCalls())
		}
	})

	t.Run("Empty Token Refreshes First", func(t *testing.T) {
		h := newHarness(t, "", "refresh-1")
		h.upstream.AllowRefresh("refresh-1")
		h.upstream.Reply(http.MethodGet, "/me/player", http.StatusOK, tu.PlayerJSON(true))

		token, err := h.gateway.Do(ctx, h.ref, "", PlayerStateRequest(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "access-1" {
			t.Errorf("expected access-1, got %s", token)
		}
		if calls := h.upstream.Calls(http.MethodGet, "/me/player"); calls != 1 {
			t.Errorf("expected 1 upstream call, got %d", calls)
		}
	})

	t.Run("Invalid Refresh Token", func(t *testing.T) {
		h := newHarness(t, "expired", "revoked")
		h.upstream.RequireToken("something-else")

		for i := range 2 {
			_, err := h.gateway.Do(ctx, h.ref, "expired", PlayerStateRequest(), nil)
			if !errors.Is(err, shared.ErrAuthExpired) {
				t.Fatalf("call %d: expected ErrAuthExpired, got %v", i, err)
			}

			var af *AuthFailure
			if !errors.As(err, &af) {
				t.Fatalf("call %d: expected *AuthFailure, got %T", i, err)
			}
			if af.Reason != ReasonInvalidGrant {
				t.Errorf("call %d: expected reason invalid_grant, got %s", i, af.Reason)
			}
			if af.Detail != "invalid_grant: Refresh token revoked" {
				t.Errorf("call %d: expected upstream description, got %q", i, af.Detail)
			}
			if af.Principal != h.ref {
				t.Errorf("call %d: expected principal %s, got %s", i, h.ref, af.Principal)
			}
		}

		creds := h.stored(t)
		if creds.AccessToken != "expired" || creds.RefreshToken != "revoked" {
			t.Errorf("stored credentials should not change, got %+v", creds)
		}
		if h.upstream.TokenCalls() != 2 {
			t.Errorf("expected one exchange per call, got %d", h.upstream.TokenCalls())
		}
	})

	t.Run("No Refresh Token", func(t *testing.T) {
		h := newHarness(t, "expired", "")
		h.upstream.RequireToken("something-else")

		_, err := h.gateway.Do(ctx, h.ref, "expired", PlayerStateRequest(), nil)

		var af *AuthFailure
		if !errors.As(err, &af) || af.Reason != ReasonNoRefreshToken {
			t.Fatalf("expected no_refresh_token failure, got %v", err)
		}
		if h.upstream.TokenCalls() != 0 {
			t.Errorf("expected no exchange, got %d", h.upstream.TokenCalls())
		}
	})

	t.Run("Rotated Refresh Token Is Persisted", func(t *testing.T) {
		h := newHarness(t, "expired", "refresh-1")
		h.upstream.RequireToken("x")
		h.upstream.AllowRefresh("refresh-1")
		h.upstream.RotateRefreshTokens(true)
		h.upstream.Reply(http.MethodGet, "/me/player", http.StatusOK, tu.PlayerJSON(true))

		if _, err := h.gateway.Do(ctx, h.ref, "expired", PlayerStateRequest(), nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if creds := h.stored(t); creds.RefreshToken != "refresh-rotated-1" {
			t.Errorf("expected rotated refresh token, got %s", creds.RefreshToken)
		}
	})

	t.Run("Concurrent Refresh Exchanges Once", func(t *testing.T) {
		h := newHarness(t, "expired", "refresh-1")
		h.upstream.RequireToken("x")
		h.upstream.AllowRefresh("refresh-1")
		h.upstream.SetTokenDelay(50 * time.Millisecond)
		h.upstream.Reply(http.MethodGet, "/me/player", http.StatusOK, tu.PlayerJSON(true))

		const callers = 8
		var wg sync.WaitGroup
		tokens := make([]string, callers)
		errs := make([]error, callers)

		for i := range callers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tokens[i], errs[i] = h.gateway.Do(ctx, h.ref, "expired", PlayerStateRequest(), nil)
			}(i)
		}
		wg.Wait()

		for i := range callers {
			if errs[i] != nil {
				t.Errorf("caller %d: unexpected error: %v", i, errs[i])
			}
			if tokens[i] != "access-1" {
				t.Errorf("caller %d: expected access-1, got %s", i, tokens[i])
			}
		}
		if h.upstream.TokenCalls() != 1 {
			t.Errorf("expected exactly one exchange, got %d", h.upstream.TokenCalls())
		}
	})

	t.Run("Cancelled Caller Does Not Fail Shared Refresh", func(t *testing.T) {
		h := newHarness(t, "expired", "refresh-1")
		h.upstream.AllowRefresh("refresh-1")
		h.upstream.SetTokenDelay(200 * time.Millisecond)

		shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		firstErr := make(chan error, 1)
		go func() {
			_, err := h.sessions.Refresh(shortCtx, h.ref, "expired")
			firstErr <- err
		}()

		deadline := time.Now().Add(time.Second)
		for h.upstream.TokenCalls() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		token, err := h.sessions.Refresh(ctx, h.ref, "expired")
		if err != nil {
			t.Fatalf("live caller: unexpected error: %v", err)
		}
		if token != "access-1" {
			t.Errorf("expected access-1, got %s", token)
		}

		err = <-firstErr
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected the cancelled caller to see its own deadline, got %v", err)
		}
		if errors.Is(err, shared.ErrAuthExpired) {
			t.Errorf("cancellation must not report auth expired, got %v", err)
		}

		if creds := h.stored(t); creds.AccessToken != "access-1" {
			t.Errorf("expected refreshed token persisted, got %s", creds.AccessToken)
		}
		if h.upstream.TokenCalls() != 1 {
			t.Errorf("expected exactly one exchange, got %d", h.upstream.TokenCalls())
		}
	})

	t.Run("Status Classification", func(t *testing.T) {
		tc := []struct {
			name      string
			responder tu.Responder
			want      error
			check     func(t *testing.T, e *APIError)
		}{
			{
				name:      "404 host offline",
				responder: tu.Respond(http.StatusNotFound, tu.ErrorBody(404, "No active device found")),
				want:      shared.ErrHostOffline,
			},
			{
				name:      "403 forbidden",
				responder: tu.Respond(http.StatusForbidden, tu.ErrorBody(403, "Premium required")),
				want:      shared.ErrForbidden,
				check: func(t *testing.T, e *APIError) {
					if e.Message != "Premium required" {
						t.Errorf("expected upstream message, got %q", e.Message)
					}
				},
			},
			{
				name: "429 rate limited",
				responder: func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Retry-After", "7")
					tu.Respond(http.StatusTooManyRequests, tu.ErrorBody(429, "API rate limit exceeded"))(w, r)
				},
				want: shared.ErrRateLimited,
				check: func(t *testing.T, e *APIError) {
					if e.RetryAfter != 7*time.Second {
						t.Errorf("expected retry after 7s, got %s", e.RetryAfter)
					}
				},
			},
			{
				name:      "500 upstream",
				responder: tu.Respond(http.StatusInternalServerError, tu.ErrorBody(500, "boom")),
				want:      shared.ErrUpstream,
				check: func(t *testing.T, e *APIError) {
					if e.Message != "boom" || len(e.Body) == 0 {
						t.Errorf("expected message boom and raw body, got %q / %q", e.Message, e.Body)
					}
				},
			},
			{
				name:      "502 without envelope",
				responder: tu.Respond(http.StatusBadGateway, "<html>bad gateway</html>"),
				want:      shared.ErrUpstream,
				check: func(t *testing.T, e *APIError) {
					if e.Message != "unexpected status 502" {
						t.Errorf("expected generic message, got %q", e.Message)
					}
				},
			},
			{
				name:      "malformed success body",
				responder: tu.Respond(http.StatusOK, "<html>surprise</html>"),
				want:      shared.ErrUpstream,
				check: func(t *testing.T, e *APIError) {
					if !e.Malformed || string(e.Body) != "<html>surprise</html>" {
						t.Errorf("expected malformed with raw body, got %+v", e)
					}
				},
			},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				h := newHarness(t, "good", "refresh-1")
				h.upstream.On(http.MethodGet, "/me/player", tt.responder)

				var state PlayerState
				_, err := h.gateway.Do(ctx, h.ref, "good", PlayerStateRequest(), &state)
				if !errors.Is(err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, err)
				}

				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("expected *APIError, got %T", err)
				}
				if tt.check != nil {
					tt.check(t, apiErr)
				}
				if calls := h.upstream.Calls(http.MethodGet, "/me/player"); calls != 1 {
					t.Errorf("expected no retry, got %d calls", calls)
				}
				if h.upstream.TokenCalls() != 0 {
					t.Errorf("expected no refresh, got %d", h.upstream.TokenCalls())
				}
			})
		}
	})

	t.Run("Empty Bodies Are Success", func(t *testing.T) {
		for _, status := range []int{http.StatusOK, http.StatusNoContent} {
			h := newHarness(t, "good", "refresh-1")
			h.upstream.Reply(http.MethodGet, "/me/player/currently-playing", status, nil)

			var current CurrentlyPlaying
			if _, err := h.gateway.Do(ctx, h.ref, "good", CurrentlyPlayingRequest(), &current); err != nil {
				t.Errorf("status %d: unexpected error: %v", status, err)
			}
			if current.Item != nil {
				t.Errorf("status %d: expected nothing playing", status)
			}
		}
	})

	t.Run("Sends JSON Body", func(t *testing.T) {
		h := newHarness(t, "good", "refresh-1")
		h.upstream.Reply(http.MethodPost, "/playlists/pl-1/tracks", http.StatusCreated, map[string]string{"snapshot_id": "s1"})

		var snap SnapshotResponse
		if _, err := h.gateway.Do(ctx, h.ref, "good", AddToPlaylistRequest("pl-1", "spotify:track:a"), &snap); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		req, ok := h.upstream.LastRequest(http.MethodPost, "/playlists/pl-1/tracks")
		if !ok {
			t.Fatal("expected request to be recorded")
		}
		if string(req.Body) != `{"uris":["spotify:track:a"]}` {
			t.Errorf("unexpected body %s", req.Body)
		}
		if snap.SnapshotID != "s1" {
			t.Errorf("expected snapshot s1, got %s", snap.SnapshotID)
		}
	})

	t.Run("Transport Failure", func(t *testing.T) {
		h := newHarness(t, "good", "refresh-1")
		cause := errors.New("connection reset")
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, cause)}
		gateway := NewGateway(h.upstream.UpstreamConfig(), client, h.sessions, nil)

		_, err := gateway.Do(ctx, h.ref, "good", PlayerStateRequest(), nil)
		if !errors.Is(err, shared.ErrUpstream) {
			t.Fatalf("expected ErrUpstream, got %v", err)
		}
		if !errors.Is(err, cause) {
			t.Errorf("expected cause to be wrapped, got %v", err)
		}
	})

	t.Run("Body Read Failure", func(t *testing.T) {
		h := newHarness(t, "good", "refresh-1")
		resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: &tu.FCloser{}}
		client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
		gateway := NewGateway(h.upstream.UpstreamConfig(), client, h.sessions, nil)

		_, err := gateway.Do(ctx, h.ref, "good", PlayerStateRequest(), nil)
		if !errors.Is(err, shared.ErrUpstream) {
			t.Fatalf("expected ErrUpstream, got %v", err)
		}
	})
}
