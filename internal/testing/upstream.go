package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/partyq/internal/shared"
)

const (
	FakeClientID     = "fake-client-id"
	FakeClientSecret = "fake-client-secret"
	FakeAuthCode     = "valid-code"
)

// Responder writes a canned upstream response.
type Responder func(w http.ResponseWriter, r *http.Request)

// RecordedRequest is what the fake upstream saw for a route.
type RecordedRequest struct {
	Query url.Values
	Body  []byte
	Token string
}

// FakeUpstream serves the playback API under /v1 and the token endpoint at /api/token.
//
// API calls must carry the most recently issued access token once one is required.
// Unregistered API routes answer 404 like the real API does without an active device.
type FakeUpstream struct {
	Server *httptest.Server

	mu            sync.Mutex
	accessToken   string
	refreshTokens map[string]bool
	rotate        bool
	issued        int
	tokenCalls    int
	tokenDelay    time.Duration
	routes        map[string]Responder
	calls         map[string]int
	last          map[string]RecordedRequest
}

// NewFakeUpstream starts a [FakeUpstream] that is closed when the test ends.
func NewFakeUpstream(t *testing.T) *FakeUpstream {
	t.Helper()
	f := &FakeUpstream{
		refreshTokens: make(map[string]bool),
		routes:        make(map[string]Responder),
		calls:         make(map[string]int),
		last:          make(map[string]RecordedRequest),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeUpstream) APIURL() string   { return f.Server.URL + "/v1" }
func (f *FakeUpstream) TokenURL() string { return f.Server.URL + "/api/token" }

// UpstreamConfig points the client at the fake server without pacing.
func (f *FakeUpstream) UpstreamConfig() shared.UpstreamConfig {
	return shared.UpstreamConfig{
		APIURL:   f.APIURL(),
		AuthURL:  f.Server.URL + "/authorize",
		TokenURL: f.TokenURL(),
		Timeout:  shared.Duration{Duration: 5 * time.Second},
	}
}

// SpotifyConfig returns client credentials the fake token endpoint accepts.
func (f *FakeUpstream) SpotifyConfig() shared.SpotifyConfig {
	return shared.SpotifyConfig{
		ClientID:     FakeClientID,
		ClientSecret: FakeClientSecret,
		RedirectURI:  "http://127.0.0.1:3000/callback",
	}
}

// RequireToken makes every API call other than with token fail with 401.
func (f *FakeUpstream) RequireToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessToken = token
}

// AllowRefresh registers a refresh token the token endpoint will honor.
func (f *FakeUpstream) AllowRefresh(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshTokens[token] = true
}

// RotateRefreshTokens makes each grant return a new refresh token.
func (f *FakeUpstream) RotateRefreshTokens(rotate bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotate = rotate
}

// SetTokenDelay slows down the token endpoint so concurrent refreshes overlap.
func (f *FakeUpstream) SetTokenDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenDelay = d
}

// On registers r for method and path, relative to the API base (e.g. "GET", "/me/player").
func (f *FakeUpstream) On(method, path string, r Responder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = r
}

// Reply registers a fixed response. Strings and byte slices are written raw, nil writes no body, anything else is JSON.
func (f *FakeUpstream) Reply(method, path string, status int, body any) {
	f.On(method, path, Respond(status, body))
}

// Calls returns how many API requests reached method and path.
func (f *FakeUpstream) Calls(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+" "+path]
}

// LastRequest returns the most recent request for method and path.
func (f *FakeUpstream) LastRequest(method, path string) (RecordedRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.last[method+" "+path]
	return r, ok
}

// TokenCalls returns how many grants hit the token endpoint.
func (f *FakeUpstream) TokenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls
}

// Respond builds a [Responder] with a fixed status and body.
func Respond(status int, body any) Responder {
	return func(w http.ResponseWriter, r *http.Request) {
		switch b := body.(type) {
		case nil:
			w.WriteHeader(status)
		case string:
			w.WriteHeader(status)
			io.WriteString(w, b)
		case []byte:
			w.WriteHeader(status)
			w.Write(b)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(b)
		}
	}
}

// ErrorBody is the Spotify error envelope.
func ErrorBody(status int, message string) map[string]any {
	return map[string]any{"error": map[string]any{"status": status, "message": message}}
}

func (f *FakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/token":
		f.token(w, r)
	case strings.HasPrefix(r.URL.Path, "/v1/"):
		f.api(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeUpstream) api(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1")
	key := r.Method + " " + path
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	required := f.accessToken
	f.calls[key]++
	f.last[key] = RecordedRequest{Query: r.URL.Query(), Body: body, Token: bearer}
	handler, ok := f.routes[key]
	f.mu.Unlock()

	if required != "" && bearer != required {
		Respond(http.StatusUnauthorized, ErrorBody(401, "The access token expired"))(w, r)
		return
	}
	if !ok {
		Respond(http.StatusNotFound, ErrorBody(404, "Player command failed: No active device found"))(w, r)
		return
	}
	handler(w, r)
}

func (f *FakeUpstream) token(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.tokenCalls++
	delay := f.tokenDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	id, secret, ok := r.BasicAuth()
	if !ok || id != FakeClientID || secret != FakeClientSecret {
		Respond(http.StatusUnauthorized, map[string]string{
			"error": "invalid_client", "error_description": "Invalid client",
		})(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		Respond(http.StatusBadRequest, map[string]string{"error": "invalid_request"})(w, r)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var refresh string
	switch r.PostForm.Get("grant_type") {
	case "refresh_token":
		if !f.refreshTokens[r.PostForm.Get("refresh_token")] {
			Respond(http.StatusBadRequest, map[string]string{
				"error": "invalid_grant", "error_description": "Refresh token revoked",
			})(w, r)
			return
		}
		if f.rotate {
			refresh = fmt.Sprintf("refresh-rotated-%d", f.issued+1)
			f.refreshTokens[refresh] = true
		}
	case "authorization_code":
		if r.PostForm.Get("code") != FakeAuthCode {
			Respond(http.StatusBadRequest, map[string]string{
				"error": "invalid_grant", "error_description": "Invalid authorization code",
			})(w, r)
			return
		}
		refresh = "refresh-from-code"
		f.refreshTokens[refresh] = true
	default:
		Respond(http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})(w, r)
		return
	}

	f.issued++
	f.accessToken = fmt.Sprintf("access-%d", f.issued)

	payload := map[string]any{
		"access_token": f.accessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
		"scope":        "user-read-playback-state user-modify-playback-state",
	}
	if refresh != "" {
		payload["refresh_token"] = refresh
	}
	Respond(http.StatusOK, payload)(w, r)
}
