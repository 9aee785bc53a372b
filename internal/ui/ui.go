package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	EventListView ViewState = iota
	QueueView
	SearchView
)

const defaultPollInterval = 5 * time.Second

// Engine is the subset of queue operations the TUI drives.
type Engine interface {
	ListEvents(ctx context.Context, ownerID string) ([]*models.Event, error)
	GetQueueView(ctx context.Context, eventID string, view models.View) (*models.QueueView, error)
	SearchTracks(ctx context.Context, eventID, query string) ([]models.Track, error)
	EnqueueTrack(ctx context.Context, eventID, uri string) error
	SkipTrack(ctx context.Context, eventID, requesterID string) error
}

// Options configures a [Model].
type Options struct {
	UserID       string        // requester for owner-only actions and the event list filter
	Event        *models.Event // start watching this event instead of showing the list
	View         models.View
	PollInterval time.Duration
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	engine    Engine
	opts      Options
	view      ViewState
	width     int
	height    int
	eventList list.Model
	event     *models.Event
	queue     *models.QueueView
	polling   bool
	input     textinput.Model
	results   list.Model
	status    string
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, engine Engine, opts Options) *Model {
	if opts.View == "" {
		opts.View = models.ViewManager
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	input := textinput.New()
	input.Placeholder = "artist, title..."
	input.CharLimit = 100

	m := &Model{
		ctx:       ctx,
		engine:    engine,
		opts:      opts,
		view:      EventListView,
		eventList: newList("Active Events", nil),
		results:   newList("Results", nil),
		input:     input,
		help:      help.New(),
		keys:      newKeyMap(),
	}
	if opts.Event != nil {
		m.event = opts.Event
		m.view = QueueView
	}
	return m
}

// Init fetches the event list, or starts polling when an event was given.
func (m *Model) Init() tea.Cmd {
	if m.view == QueueView {
		return m.watch()
	}
	return m.fetchEvents()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.eventList.SetSize(msg.Width-4, msg.Height-8)
		m.results.SetSize(msg.Width-4, msg.Height-10)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case EventListView:
			return m.handleEventListKeys(msg)
		case QueueView:
			return m.handleQueueKeys(msg)
		case SearchView:
			return m.handleSearchKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgEventsFetched:
		res := msg.data.(eventsResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		items := make([]list.Item, len(res.events))
		for i, e := range res.events {
			items[i] = eventItem{event: e}
		}
		m.eventList = newList("Active Events", items)
		m.eventList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgQueueFetched:
		res := msg.data.(queueResult)
		if res.err != nil {
			m.queue = &models.QueueView{Mode: m.event.Mode(), Error: shared.KindOf(res.err)}
			m.status = res.err.Error()
			return m, nil
		}
		m.queue = res.view
		return m, nil

	case MsgTick:
		if m.view == EventListView || m.event == nil {
			m.polling = false
			return m, nil
		}
		return m, tea.Batch(m.fetchQueue(), m.tick())

	case MsgSearchDone:
		res := msg.data.(searchResult)
		if res.err != nil {
			m.status = res.err.Error()
			return m, nil
		}
		items := make([]list.Item, len(res.tracks))
		for i, t := range res.tracks {
			items[i] = trackItem{track: t}
		}
		m.results = newList(fmt.Sprintf("Results for %q", m.input.Value()), items)
		m.results.SetSize(m.width-4, m.height-10)
		m.input.Blur()
		m.status = ""
		return m, nil

	case MsgTrackRequested:
		res := msg.data.(actionResult)
		if res.err != nil {
			m.status = fmt.Sprintf("request failed: %v", res.err)
			return m, nil
		}
		m.status = fmt.Sprintf("requested %s", res.label)
		m.view = QueueView
		return m, m.fetchQueue()

	case MsgSkipped:
		res := msg.data.(actionResult)
		if res.err != nil {
			m.status = fmt.Sprintf("skip failed: %v", res.err)
			return m, nil
		}
		m.status = res.label
		return m, m.fetchQueue()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case EventListView:
		return m.renderEventList()
	case QueueView:
		return m.renderQueue()
	case SearchView:
		return m.renderSearch()
	default:
		return ""
	}
}

func (m *Model) handleEventListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.eventList.SettingFilter() {
		var cmd tea.Cmd
		m.eventList, cmd = m.eventList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.eventList.SelectedItem().(eventItem); ok {
			m.event = item.event
			m.queue = nil
			m.status = ""
			m.view = QueueView
			return m, m.watch()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.eventList, cmd = m.eventList.Update(msg)
	return m, cmd
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		if m.opts.Event != nil {
			return m, nil
		}
		m.view = EventListView
		return m, m.fetchEvents()
	case key.Matches(msg, m.keys.search):
		m.view = SearchView
		m.input.SetValue("")
		m.results = newList("Results", nil)
		m.status = ""
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.skip):
		return m, m.skip()
	case key.Matches(msg, m.keys.view):
		m.opts.View = nextView(m.opts.View)
		return m, m.fetchQueue()
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchQueue()
	}
	return m, nil
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.input.Focused() {
		switch msg.Type {
		case tea.KeyEsc:
			m.view = QueueView
			return m, nil
		case tea.KeyEnter:
			return m, m.search(m.input.Value())
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.back):
		m.results = newList("Results", nil)
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.results.SelectedItem().(trackItem); ok {
			return m, m.request(item.track)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

// watch starts the poll loop unless one is already running.
func (m *Model) watch() tea.Cmd {
	if m.polling {
		return m.fetchQueue()
	}
	m.polling = true
	return tea.Batch(m.fetchQueue(), m.tick())
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) fetchEvents() tea.Cmd {
	return func() tea.Msg {
		events, err := m.engine.ListEvents(m.ctx, m.opts.UserID)
		return eventsFetchedMsg(events, err)
	}
}

func (m *Model) fetchQueue() tea.Cmd {
	eventID, view := m.event.ID(), m.opts.View
	return func() tea.Msg {
		qv, err := m.engine.GetQueueView(m.ctx, eventID, view)
		return queueFetchedMsg(qv, err)
	}
}

func (m *Model) search(query string) tea.Cmd {
	eventID := m.event.ID()
	return func() tea.Msg {
		tracks, err := m.engine.SearchTracks(m.ctx, eventID, query)
		return searchDoneMsg(tracks, err)
	}
}

func (m *Model) request(track models.Track) tea.Cmd {
	eventID := m.event.ID()
	return func() tea.Msg {
		err := m.engine.EnqueueTrack(m.ctx, eventID, track.URI)
		return trackRequestedMsg(track.Title, err)
	}
}

func (m *Model) skip() tea.Cmd {
	eventID := m.event.ID()
	return func() tea.Msg {
		return skippedMsg(m.engine.SkipTrack(m.ctx, eventID, m.opts.UserID))
	}
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

func nextView(v models.View) models.View {
	switch v {
	case models.ViewTV:
		return models.ViewGuest
	case models.ViewGuest:
		return models.ViewManager
	default:
		return models.ViewTV
	}
}

func (m *Model) renderEventList() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.eventList.View(), helpView)
}

func (m *Model) renderQueue() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("%s · %s view", m.event.Name(), m.opts.View)))
	b.WriteString("\n")

	switch {
	case m.queue == nil:
		b.WriteString(styles.muted.Render("Loading..."))
	case m.queue.Error != "":
		b.WriteString(styles.err.Render("Playback unavailable: " + m.queue.Error))
	case m.queue.Current == nil && m.queue.Message != "":
		b.WriteString(styles.warn.Render(m.queue.Message))
	default:
		b.WriteString(m.renderPlaying())
		b.WriteString("\n\n")
		b.WriteString(m.renderUpcoming())
	}

	if m.status != "" {
		b.WriteString("\n\n")
		b.WriteString(styles.ok.Render(m.status))
	}

	keys := []key.Binding{m.keys.search, m.keys.skip, m.keys.view, m.keys.refresh}
	if m.opts.Event == nil {
		keys = append(keys, m.keys.back)
	}
	keys = append(keys, m.keys.quit)

	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView(keys))
	return b.String()
}

func (m *Model) renderPlaying() string {
	if m.queue.Current == nil {
		return styles.muted.Render("Nothing playing")
	}

	state := "▶"
	if !m.queue.IsPlaying {
		state = "❚❚"
	}
	line := fmt.Sprintf("%s %s\n%s  %s / %s", state, m.queue.Current.Title, m.queue.Current.ArtistLine(),
		shared.FormatDuration(m.queue.ProgressMS), shared.FormatDuration(m.queue.DurationMS))
	return styles.playing.Render(line)
}

func (m *Model) renderUpcoming() string {
	if len(m.queue.Upcoming) == 0 {
		return styles.muted.Render("Up next: nothing queued")
	}

	var b strings.Builder
	b.WriteString("Up next\n")
	for i, t := range m.queue.Upcoming {
		fmt.Fprintf(&b, "%2d. %s %s\n", i+1, t.Title, styles.muted.Render("· "+t.ArtistLine()))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderSearch() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Request a track"))
	b.WriteString("\n")
	b.WriteString(m.input.View())

	if !m.input.Focused() {
		b.WriteString("\n\n")
		b.WriteString(m.results.View())
	}

	if m.status != "" {
		b.WriteString("\n\n")
		b.WriteString(styles.err.Render(m.status))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back}))
	return b.String()
}
