package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/repositories"
	"github.com/desertthunder/partyq/internal/shared"
	tu "github.com/desertthunder/partyq/internal/testing"
)

type harness struct {
	upstream *tu.FakeUpstream
	db       *sql.DB
	store    *repositories.CredentialRepository
	sessions *SessionManager
	gateway  *Gateway
	ref      models.PrincipalRef
}

// newHarness wires a gateway to a fake upstream and an event holding access and refresh tokens.
func newHarness(t *testing.T, access, refresh string) *harness {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	event := models.NewEvent(0, "Test Party", "owner-1", models.ModeQueue)
	if err := repositories.NewEventRepository(db).Create(event); err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	store := repositories.NewCredentialRepository(db)
	ref := models.EventPrincipal(event.ID())
	if err := store.Save(context.Background(), &models.Credentials{
		Principal: ref, AccessToken: access, RefreshToken: refresh,
	}); err != nil {
		t.Fatalf("failed to save credentials: %v", err)
	}

	upstream := tu.NewFakeUpstream(t)
	logger := shared.NewLogger(&discard{})
	refresher := NewTokenRefresher(NewOAuthConfig(upstream.SpotifyConfig(), upstream.UpstreamConfig()), nil)
	sessions := NewSessionManager(store, refresher, logger)

	return &harness{
		upstream: upstream,
		db:       db,
		store:    store,
		sessions: sessions,
		gateway:  NewGateway(upstream.UpstreamConfig(), nil, sessions, logger),
		ref:      ref,
	}
}

func (h *harness) stored(t *testing.T) *models.Credentials {
	t.Helper()
	creds, err := h.store.GetByPrincipal(context.Background(), h.ref)
	if err != nil {
		t.Fatalf("failed to read credentials: %v", err)
	}
	return creds
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
