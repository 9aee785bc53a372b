package models

import (
	"fmt"
	"strings"
)

// Mode selects where requested tracks go and what the upcoming list is built from.
type Mode string

const (
	ModeQueue    Mode = "queue"
	ModePlaylist Mode = "playlist"
)

// ParseMode validates a mode name, defaulting to [ModeQueue] when empty.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeQueue:
		return ModeQueue, nil
	case ModePlaylist:
		return ModePlaylist, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// Event is a party session whose shared credentials drive one host's playback device.
type Event struct {
	base
	name            string
	ownerID         string
	mode            Mode
	playlistID      string
	activeHostEmail string
}

// NewEvent creates an [Event]. Mode is fixed for the event's lifetime.
func NewEvent(sequence int, name, ownerID string, mode Mode) *Event {
	return &Event{base: newBase(sequence), name: name, ownerID: ownerID, mode: mode}
}

func (e *Event) Name() string { return e.name }
func (e *Event) OwnerID() string { return e.ownerID }
func (e *Event) Mode() Mode { return e.mode }
func (e *Event) PlaylistID() string { return e.playlistID }
func (e *Event) ActiveHostEmail() string { return e.activeHostEmail }
func (e *Event) IsActive() bool { return !e.IsDeleted() }

func (e *Event) SetName(name string) { e.name = name }
func (e *Event) SetActiveHostEmail(email string) { e.activeHostEmail = email }

// SetPlaylistID records the provisioned playlist. It can only be set once.
func (e *Event) SetPlaylistID(id string) error {
	if e.playlistID != "" && e.playlistID != id {
		return fmt.Errorf("event %s already has playlist %s", e.ID(), e.playlistID)
	}
	e.playlistID = id
	return nil
}

// IsOwner reports whether userID created the event.
func (e *Event) IsOwner(userID string) bool {
	return userID != "" && e.ownerID == userID
}

// Principal returns whose credentials act on playback: the active host when one is set, else the event itself.
func (e *Event) Principal() PrincipalRef {
	if e.activeHostEmail != "" {
		return UserPrincipal(e.activeHostEmail)
	}
	return EventPrincipal(e.ID())
}

// Validate checks required fields.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.name) == "" {
		return fmt.Errorf("event name is required")
	}
	if e.ownerID == "" {
		return fmt.Errorf("event owner is required")
	}
	if e.mode != ModeQueue && e.mode != ModePlaylist {
		return fmt.Errorf("invalid event mode %q", e.mode)
	}
	return nil
}
