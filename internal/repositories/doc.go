// Package repositories persists events, users, and their OAuth credentials in SQLite.
//
// Reads skip soft-deleted rows, so a deactivated event behaves as if it no longer exists.
package repositories
