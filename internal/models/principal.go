package models

import (
	"fmt"
	"time"
)

// PrincipalKind distinguishes the two holders of playback credentials.
type PrincipalKind string

const (
	PrincipalEvent PrincipalKind = "event"
	PrincipalUser  PrincipalKind = "user"
)

// PrincipalRef identifies a credential holder. Event principals are keyed by event ID and user principals by email.
type PrincipalRef struct {
	Kind PrincipalKind
	ID   string
}

// EventPrincipal returns the ref for an event's shared credentials.
func EventPrincipal(eventID string) PrincipalRef {
	return PrincipalRef{Kind: PrincipalEvent, ID: eventID}
}

// UserPrincipal returns the ref for a user's own credentials.
func UserPrincipal(email string) PrincipalRef {
	return PrincipalRef{Kind: PrincipalUser, ID: email}
}

func (p PrincipalRef) String() string {
	return fmt.Sprintf("%s:%s", p.Kind, p.ID)
}

// Credentials is the durable token state of a principal.
//
// A principal with a non-empty refresh token can always be recovered to a valid access token
// unless the authorization server rejects the refresh token.
type Credentials struct {
	Principal    PrincipalRef
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// CanRefresh reports whether a refresh token is on file.
func (c *Credentials) CanRefresh() bool {
	return c != nil && c.RefreshToken != ""
}
