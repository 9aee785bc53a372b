// Package models defines the domain entities of the party queue.
//
// Persistent entities:
//   - [Event] : a party session with its own credential pair, mode, and optional playlist
//   - [User] : an account that can follow playlists or act as the active host
//
// Derived values, never stored:
//   - [Track] : normalized upstream track metadata
//   - [QueueView] : the current track plus a window of upcoming tracks, sized by [View]
//
// [PrincipalRef] and [Credentials] describe who holds a token pair; the durable fields are owned by the credential store.
package models
