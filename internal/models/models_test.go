package models

import (
	"testing"
	"time"
)

func TestEvent(t *testing.T) {
	t.Run("Principal", func(t *testing.T) {
		event := NewEvent(1, "Friday", "owner-1", ModeQueue)
		event.SetID("evt-1")

		if got := event.Principal(); got != EventPrincipal("evt-1") {
			t.Errorf("expected event principal, got %s", got)
		}

		event.SetActiveHostEmail("dj@example.com")
		if got := event.Principal(); got != UserPrincipal("dj@example.com") {
			t.Errorf("expected user principal, got %s", got)
		}
	})

	t.Run("PlaylistID Is Immutable", func(t *testing.T) {
		event := NewEvent(1, "Friday", "owner-1", ModePlaylist)
		if err := event.SetPlaylistID("pl-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := event.SetPlaylistID("pl-1"); err != nil {
			t.Errorf("setting the same playlist again should succeed: %v", err)
		}
		if err := event.SetPlaylistID("pl-2"); err == nil {
			t.Error("expected error replacing playlist")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name  string
			event *Event
			ok    bool
		}{
			{"valid", NewEvent(0, "Friday", "owner", ModeQueue), true},
			{"missing name", NewEvent(0, " ", "owner", ModeQueue), false},
			{"missing owner", NewEvent(0, "Friday", "", ModeQueue), false},
			{"bad mode", NewEvent(0, "Friday", "owner", Mode("radio")), false},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.event.Validate(); (err == nil) != tt.ok {
					t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
				}
			})
		}
	})

	t.Run("IsActive", func(t *testing.T) {
		event := NewEvent(0, "Friday", "owner", ModeQueue)
		if !event.IsActive() {
			t.Error("new event should be active")
		}
		now := time.Now()
		event.SetDeletedAt(&now)
		if event.IsActive() {
			t.Error("deleted event should be inactive")
		}
	})
}

func TestUser(t *testing.T) {
	user := NewUser(0, "  DJ@Example.com ", "DJ")
	if user.Email() != "dj@example.com" {
		t.Errorf("expected normalized email, got %q", user.Email())
	}
	if err := user.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
	if err := NewUser(0, "not-an-email", "x").Validate(); err == nil {
		t.Error("expected validation error")
	}
}

func TestView(t *testing.T) {
	tc := map[string]int{"tv": 2, "guest": 5, "manager": 10, "": 5}
	for name, want := range tc {
		v, err := ParseView(name)
		if err != nil {
			t.Fatalf("ParseView(%q): %v", name, err)
		}
		if v.Window() != want {
			t.Errorf("%q window = %d, want %d", name, v.Window(), want)
		}
	}

	if _, err := ParseView("stage"); err == nil {
		t.Error("expected error for unknown view")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("Playlist"); err != nil || m != ModePlaylist {
		t.Errorf("ParseMode(Playlist) = %v, %v", m, err)
	}
	if m, err := ParseMode(""); err != nil || m != ModeQueue {
		t.Errorf("ParseMode(\"\") = %v, %v", m, err)
	}
	if _, err := ParseMode("radio"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestTrackArtistLine(t *testing.T) {
	track := Track{Artists: []string{"Daft Punk", "Pharrell Williams"}}
	if got := track.ArtistLine(); got != "Daft Punk, Pharrell Williams" {
		t.Errorf("unexpected artist line %q", got)
	}
}
