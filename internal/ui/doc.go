// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI follows one event through three views:
//  1. [EventListView] : Browse active events and pick one
//  2. [QueueView] : Watch what is playing and what comes next, refreshed on a poll interval
//  3. [SearchView] : Search the catalog and request a track
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Polling is driven by tick messages, so a slow upstream never blocks rendering.
//
// Keyboard navigation uses single-key bindings (enter, esc, /, n, v, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
