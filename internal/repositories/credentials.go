package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/shared"
)

// CredentialRepository stores token pairs for event and user principals.
//
// Event credentials live on the events row keyed by id; user credentials live on the users row keyed by email.
// Only active rows are read or written.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// target resolves the table and key column for a principal.
func target(ref models.PrincipalRef) (table, key string, notFound error, err error) {
	switch ref.Kind {
	case models.PrincipalEvent:
		return "events", "id", fmt.Errorf("%w: %s", shared.ErrEventNotFound, ref.ID), nil
	case models.PrincipalUser:
		return "users", "email", fmt.Errorf("%w: %s", shared.ErrUserNotFound, ref.ID), nil
	default:
		return "", "", nil, fmt.Errorf("%w: principal kind %q", shared.ErrInvalidArgument, ref.Kind)
	}
}

// GetByPrincipal returns the stored credentials for ref.
func (r *CredentialRepository) GetByPrincipal(ctx context.Context, ref models.PrincipalRef) (*models.Credentials, error) {
	table, key, notFound, err := target(ref)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT access_token, refresh_token, token_expires_at FROM %s WHERE %s = ? AND deleted_at IS NULL", table, key,
	)

	var (
		access    string
		refresh   string
		expiresAt sql.NullTime
	)
	err = r.db.QueryRowContext(ctx, query, ref.ID).Scan(&access, &refresh, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	return &models.Credentials{
		Principal:    ref,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    timePtr(expiresAt),
	}, nil
}

// UpdateAccessToken replaces the access token and its expiry. The refresh token is left untouched.
func (r *CredentialRepository) UpdateAccessToken(ctx context.Context, ref models.PrincipalRef, token string, expiresAt *time.Time) error {
	table, key, notFound, err := target(ref)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"UPDATE %s SET access_token = ?, token_expires_at = ?, updated_at = ? WHERE %s = ? AND deleted_at IS NULL", table, key,
	)
	result, err := r.db.ExecContext(ctx, query, token, nullTime(expiresAt), time.Now(), ref.ID)
	if err != nil {
		return fmt.Errorf("failed to update access token: %w", err)
	}
	return expectOneRow(result, notFound)
}

// RotateRefreshToken replaces the refresh token after the authorization server issued a new one.
func (r *CredentialRepository) RotateRefreshToken(ctx context.Context, ref models.PrincipalRef, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty refresh token", shared.ErrInvalidArgument)
	}

	table, key, notFound, err := target(ref)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"UPDATE %s SET refresh_token = ?, updated_at = ? WHERE %s = ? AND deleted_at IS NULL", table, key,
	)
	result, err := r.db.ExecContext(ctx, query, token, time.Now(), ref.ID)
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return expectOneRow(result, notFound)
}

// Save stores a full credential pair, as issued by an authorization code exchange.
func (r *CredentialRepository) Save(ctx context.Context, creds *models.Credentials) error {
	table, key, notFound, err := target(creds.Principal)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"UPDATE %s SET access_token = ?, refresh_token = ?, token_expires_at = ?, updated_at = ? WHERE %s = ? AND deleted_at IS NULL",
		table, key,
	)
	result, err := r.db.ExecContext(ctx, query,
		creds.AccessToken, creds.RefreshToken, nullTime(creds.ExpiresAt), time.Now(), creds.Principal.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return expectOneRow(result, notFound)
}
