package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/shared"
)

var (
	_ list.Item = eventItem{}
	_ list.Item = trackItem{}
)

// eventItem wraps [models.Event] to implement [list.Item].
type eventItem struct {
	event *models.Event
}

func (i eventItem) FilterValue() string { return i.event.Name() }
func (i eventItem) Title() string { return i.event.Name() }
func (i eventItem) Description() string {
	desc := string(i.event.Mode())
	if host := i.event.ActiveHostEmail(); host != "" {
		desc = fmt.Sprintf("%s • host %s", desc, host)
	}
	return desc
}

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track models.Track
}

func (i trackItem) FilterValue() string { return i.track.Title }
func (i trackItem) Title() string { return i.track.Title }
func (i trackItem) Description() string {
	return fmt.Sprintf("%s • %s", i.track.ArtistLine(), shared.FormatDuration(i.track.DurationMS))
}
