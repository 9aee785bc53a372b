package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/partyq/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgEventsFetched MsgKind = iota
	MsgQueueFetched
	MsgSearchDone
	MsgTrackRequested
	MsgSkipped
	MsgTick
)

type eventsResult struct {
	events []*models.Event
	err    error
}

type queueResult struct {
	view *models.QueueView
	err  error
}

type searchResult struct {
	tracks []models.Track
	err    error
}

type actionResult struct {
	label string
	err   error
}

// eventsFetchedMsg is the constructor for [MsgEventsFetched]
func eventsFetchedMsg(events []*models.Event, err error) Msg {
	return Msg{kind: MsgEventsFetched, data: eventsResult{events, err}}
}

// queueFetchedMsg is the constructor for [MsgQueueFetched]
func queueFetchedMsg(view *models.QueueView, err error) Msg {
	return Msg{kind: MsgQueueFetched, data: queueResult{view, err}}
}

// searchDoneMsg is the constructor for [MsgSearchDone]
func searchDoneMsg(tracks []models.Track, err error) Msg {
	return Msg{kind: MsgSearchDone, data: searchResult{tracks, err}}
}

// trackRequestedMsg is the constructor for [MsgTrackRequested]
func trackRequestedMsg(title string, err error) Msg {
	return Msg{kind: MsgTrackRequested, data: actionResult{title, err}}
}

// skippedMsg is the constructor for [MsgSkipped]
func skippedMsg(err error) Msg {
	return Msg{kind: MsgSkipped, data: actionResult{"skipped", err}}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}
