package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/shared"
)

// APIError is a classified failure of a playback API call.
//
// Kind is one of [shared.ErrHostOffline], [shared.ErrAuthExpired], [shared.ErrForbidden],
// [shared.ErrRateLimited] or [shared.ErrUpstream], so callers match with [errors.Is].
type APIError struct {
	Kind       error
	Status     int
	Message    string
	Body       []byte
	Malformed  bool
	RetryAfter time.Duration
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.RetryAfter > 0 {
		fmt.Fprintf(&b, "; retry after %s", e.RetryAfter)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *APIError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// AuthFailureReason names why a refresh could not produce a token.
type AuthFailureReason string

const (
	ReasonNoRefreshToken AuthFailureReason = "no_refresh_token"
	ReasonInvalidGrant   AuthFailureReason = "invalid_grant"
	ReasonRejected       AuthFailureReason = "rejected"
	ReasonTransport      AuthFailureReason = "transport"
	ReasonNotConfigured  AuthFailureReason = "not_configured"
)

// AuthFailure is returned when a principal's access token cannot be renewed.
//
// It unwraps to [shared.ErrAuthExpired], or to [shared.ErrNotConfigured] when client credentials are missing.
type AuthFailure struct {
	Principal models.PrincipalRef
	Reason    AuthFailureReason
	Detail    string
	Err       error
}

func (e *AuthFailure) Error() string {
	msg := fmt.Sprintf("%v for %s (%s)", e.kind(), e.Principal, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *AuthFailure) kind() error {
	if e.Reason == ReasonNotConfigured {
		return shared.ErrNotConfigured
	}
	return shared.ErrAuthExpired
}

func (e *AuthFailure) Unwrap() []error {
	errs := []error{e.kind()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// upstreamMessage extracts error.message from a Spotify error body: {"error": {"status": 404, "message": "..."}}.
func upstreamMessage(body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return ""
	}

	var detail struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &detail); err == nil && detail.Message != "" {
		return detail.Message
	}

	var plain string
	if err := json.Unmarshal(payload.Error, &plain); err == nil {
		return plain
	}
	return ""
}

// parseRetryAfter reads a Retry-After header given either in seconds or as an HTTP date.
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// classify maps a non-success status to an [APIError].
func classify(status int, header http.Header, body []byte) *APIError {
	msg := upstreamMessage(body)
	e := &APIError{Status: status, Message: msg, Body: body}

	switch status {
	case http.StatusUnauthorized:
		e.Kind = shared.ErrAuthExpired
	case http.StatusNotFound:
		e.Kind = shared.ErrHostOffline
		if e.Message == "" {
			e.Message = "no active device"
		}
	case http.StatusForbidden:
		e.Kind = shared.ErrForbidden
	case http.StatusTooManyRequests:
		e.Kind = shared.ErrRateLimited
		e.RetryAfter = parseRetryAfter(header, time.Now())
	default:
		e.Kind = shared.ErrUpstream
		if e.Message == "" {
			e.Message = fmt.Sprintf("unexpected status %d", status)
		}
	}
	return e
}
