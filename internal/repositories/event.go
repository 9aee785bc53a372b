package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/shared"
)

const eventColumns = "id, sequence, name, owner_id, mode, playlist_id, active_host_email, created_at, updated_at, deleted_at"

// EventRepository implements [models.Repository] for [models.Event] persistence.
//
// Credential columns on the events table are only touched through [CredentialRepository].
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new [EventRepository] with the given database connection
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event with generated ID and sequence
func (r *EventRepository) Create(event *models.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "events")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	event.SetID(shared.GenerateID())
	event.SetSequence(sequence)

	query := `
		INSERT INTO events (id, sequence, name, owner_id, mode, playlist_id, active_host_email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		event.ID(), sequence, event.Name(), event.OwnerID(), string(event.Mode()),
		nullString(event.PlaylistID()), nullString(event.ActiveHostEmail()),
		event.CreatedAt(), event.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// Get retrieves an active event by ID
func (r *EventRepository) Get(id string) (*models.Event, error) {
	row := r.db.QueryRow("SELECT "+eventColumns+" FROM events WHERE id = ? AND deleted_at IS NULL", id)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrEventNotFound, id)
	}
	return event, err
}

// Update persists name, playlist and active host changes. Mode and owner never change.
func (r *EventRepository) Update(event *models.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now()
	event.SetUpdatedAt(now)

	query := `
		UPDATE events
		SET name = ?, playlist_id = ?, active_host_email = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		event.Name(), nullString(event.PlaylistID()), nullString(event.ActiveHostEmail()), now, event.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	return expectOneRow(result, fmt.Errorf("%w: %s", shared.ErrEventNotFound, event.ID()))
}

// Delete deactivates an event. Deactivated events keep their row but are invisible to every read.
func (r *EventRepository) Delete(id string) error {
	query := `
		UPDATE events
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate event: %w", err)
	}

	return expectOneRow(result, fmt.Errorf("%w: %s", shared.ErrEventNotFound, id))
}

// List retrieves active events, optionally filtered by "owner_id" or "active_host_email".
func (r *EventRepository) List(criteria map[string]any) ([]*models.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE deleted_at IS NULL"
	args := []any{}

	if owner, ok := criteria["owner_id"].(string); ok && owner != "" {
		query += " AND owner_id = ?"
		args = append(args, owner)
	}
	if host, ok := criteria["active_host_email"].(string); ok && host != "" {
		query += " AND active_host_email = ?"
		args = append(args, host)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

// CountActiveByOwner returns how many active events ownerID holds.
func (r *EventRepository) CountActiveByOwner(ownerID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM events WHERE owner_id = ? AND deleted_at IS NULL", ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func scanEvent(s scanner) (*models.Event, error) {
	var (
		id         string
		sequence   int
		name       string
		ownerID    string
		mode       string
		playlistID sql.NullString
		hostEmail  sql.NullString
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := s.Scan(&id, &sequence, &name, &ownerID, &mode, &playlistID, &hostEmail, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	event := models.NewEvent(sequence, name, ownerID, models.Mode(mode))
	event.SetID(id)
	event.SetCreatedAt(createdAt)
	event.SetUpdatedAt(updatedAt)
	event.SetDeletedAt(timePtr(deletedAt))
	event.SetActiveHostEmail(hostEmail.String)
	if err := event.SetPlaylistID(playlistID.String); err != nil {
		return nil, err
	}
	return event, nil
}
