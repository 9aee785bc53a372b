package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Upstream error kinds. Everything returned from the playback layer
	// unwraps to exactly one of these.
	ErrHostOffline   = fmt.Errorf("host offline")
	ErrAuthExpired   = fmt.Errorf("authorization expired")
	ErrForbidden     = fmt.Errorf("forbidden")
	ErrRateLimited   = fmt.Errorf("rate limited")
	ErrNotConfigured = fmt.Errorf("not configured")
	ErrUpstream      = fmt.Errorf("upstream error")

	// Event errors
	ErrEventNotFound = fmt.Errorf("event not found")
	ErrUserNotFound  = fmt.Errorf("user not found")
	ErrEventLimit    = fmt.Errorf("active event limit reached")
	ErrNotOwner      = fmt.Errorf("not the event owner")

	ErrTimeout = fmt.Errorf("operation timed out")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// Kind names used in API responses and CLI output.
const (
	KindHostOffline   = "host_offline"
	KindAuthExpired   = "auth_expired"
	KindForbidden     = "forbidden"
	KindRateLimited   = "rate_limited"
	KindNotConfigured = "not_configured"
	KindUpstream      = "upstream_error"
	KindNotFound      = "not_found"
	KindInvalidInput  = "invalid_input"
	KindInternal      = "internal_error"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrHostOffline, KindHostOffline},
	{ErrAuthExpired, KindAuthExpired},
	{ErrForbidden, KindForbidden},
	{ErrNotOwner, KindForbidden},
	{ErrRateLimited, KindRateLimited},
	{ErrNotConfigured, KindNotConfigured},
	{ErrMissingConfig, KindNotConfigured},
	{ErrUpstream, KindUpstream},
	{ErrEventNotFound, KindNotFound},
	{ErrUserNotFound, KindNotFound},
	{ErrEventLimit, KindInvalidInput},
	{ErrInvalidInput, KindInvalidInput},
	{ErrMissingArgument, KindInvalidInput},
	{ErrInvalidArgument, KindInvalidInput},
}

// KindOf maps an error to the fixed vocabulary presented to callers.
//
// Order matters: an error that wraps several sentinels reports the first match.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
