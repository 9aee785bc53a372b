package models

import (
	"fmt"
	"strings"
)

// Image is one album art variant, passed through as returned upstream.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Track is the normalized view of an upstream track. It is never persisted.
type Track struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Images     []Image  `json:"images"`
	URI        string   `json:"uri"`
	DurationMS int      `json:"duration_ms"`
}

// ArtistLine joins artist names for display.
func (t Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// QueueView is one projection of what is playing and what comes next.
type QueueView struct {
	Mode       Mode    `json:"mode"`
	Current    *Track  `json:"current"`
	ProgressMS int     `json:"progress_ms"`
	DurationMS int     `json:"duration_ms"`
	IsPlaying  bool    `json:"is_playing"`
	Upcoming   []Track `json:"upcoming"`
	Message    string  `json:"message,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// View names a consumer of the queue and decides how many upcoming tracks it gets.
type View string

const (
	ViewTV      View = "tv"
	ViewGuest   View = "guest"
	ViewManager View = "manager"
)

// Window returns the number of upcoming tracks shown for v.
func (v View) Window() int {
	switch v {
	case ViewTV:
		return 2
	case ViewManager:
		return 10
	default:
		return 5
	}
}

// ParseView validates a view name, defaulting to [ViewGuest] when empty.
func ParseView(s string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case "", ViewGuest:
		return ViewGuest, nil
	case ViewTV:
		return ViewTV, nil
	case ViewManager:
		return ViewManager, nil
	default:
		return "", fmt.Errorf("unknown view %q", s)
	}
}
