package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/shared"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

// Sessions supplies and renews access tokens for a principal.
type Sessions interface {
	AccessToken(ctx context.Context, ref models.PrincipalRef) (string, error)
	Refresh(ctx context.Context, ref models.PrincipalRef, stale string) (string, error)
}

// Gateway executes playback API calls on behalf of a principal.
//
// Every failure is classified into an [*APIError] or [*AuthFailure]. A 401 triggers one refresh and one retry;
// nothing else is retried.
type Gateway struct {
	baseURL  string
	client   *http.Client
	sessions Sessions
	limiter  *rate.Limiter
	logger   *log.Logger
}

// NewGateway creates a [Gateway] against the API at cfg.APIURL.
//
// Requests are paced by a token bucket of cfg.RequestsPerSecond with cfg.Burst; a non-positive rate disables pacing.
func NewGateway(cfg shared.UpstreamConfig, client *http.Client, sessions Sessions, logger *log.Logger) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout.Duration}
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Gateway{
		baseURL:  strings.TrimRight(cfg.APIURL, "/"),
		client:   client,
		sessions: sessions,
		limiter:  limiter,
		logger:   logger,
	}
}

// AccessToken returns the stored token for ref so a caller can thread it through several calls.
func (g *Gateway) AccessToken(ctx context.Context, ref models.PrincipalRef) (string, error) {
	return g.sessions.AccessToken(ctx, ref)
}

// Do executes req with token and decodes a JSON response into out, which may be nil.
//
// An empty token is refreshed before the first attempt, and that refresh is the only one allowed.
// The token actually used is returned so the caller can reuse it for the next call in the same cycle.
// An empty or 204 response is success and leaves out untouched.
func (g *Gateway) Do(ctx context.Context, ref models.PrincipalRef, token string, req Request, out any) (string, error) {
	refreshed := false
	if token == "" {
		t, err := g.sessions.Refresh(ctx, ref, "")
		if err != nil {
			return "", err
		}
		token, refreshed = t, true
	}

	resp, err := g.send(ctx, token, req)
	if err != nil {
		return token, err
	}

	if resp.status == http.StatusUnauthorized && !refreshed {
		g.logger.Debug("access token rejected, refreshing", "principal", ref, "request", req)

		t, err := g.sessions.Refresh(ctx, ref, token)
		if err != nil {
			return token, err
		}
		token = t

		if resp, err = g.send(ctx, token, req); err != nil {
			return token, err
		}
	}

	if err := g.decode(resp, out); err != nil {
		if errors.Is(err, shared.ErrHostOffline) {
			g.logger.Info("host offline", "principal", ref, "request", req)
		} else {
			g.logger.Warn("playback request failed", "principal", ref, "request", req, "error", err)
		}
		return token, err
	}
	return token, nil
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (g *Gateway) send(ctx context.Context, token string, req Request) (*response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, &APIError{Kind: shared.ErrUpstream, Message: "request cancelled", Err: err}
		}
	}

	endpoint := g.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &APIError{Kind: shared.ErrUpstream, Message: "request failed", Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &APIError{Kind: shared.ErrUpstream, Status: httpResp.StatusCode, Message: "failed to read response", Err: err}
	}

	return &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}, nil
}

func (g *Gateway) decode(resp *response, out any) error {
	if resp.status < 200 || resp.status >= 300 {
		return classify(resp.status, resp.header, resp.body)
	}

	if resp.status == http.StatusNoContent || len(bytes.TrimSpace(resp.body)) == 0 || out == nil {
		return nil
	}

	if err := json.Unmarshal(resp.body, out); err != nil {
		return &APIError{
			Kind:      shared.ErrUpstream,
			Status:    resp.status,
			Message:   "malformed response body",
			Body:      resp.body,
			Malformed: true,
			Err:       err,
		}
	}
	return nil
}
