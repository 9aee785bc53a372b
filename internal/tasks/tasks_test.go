package tasks

import (
	"context"
	"database/sql"
	"io"
	"testing"

	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/repositories"
	"github.com/desertthunder/partyq/internal/services"
	"github.com/desertthunder/partyq/internal/shared"
	tu "github.com/desertthunder/partyq/internal/testing"
)

type env struct {
	upstream *tu.FakeUpstream
	db       *sql.DB
	events   *repositories.EventRepository
	users    *repositories.UserRepository
	creds    *repositories.CredentialRepository
	gateway  *services.Gateway
	engine   *Engine
}

type memoryCache struct {
	entries map[string][]models.Track
	gets    int
}

func (c *memoryCache) Get(ctx context.Context, query string) ([]models.Track, bool, error) {
	c.gets++
	tracks, ok := c.entries[query]
	return tracks, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, query string, tracks []models.Track) error {
	c.entries[query] = tracks
	return nil
}

func newEnv(t *testing.T, cache SearchCache) *env {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	upstream := tu.NewFakeUpstream(t)
	logger := shared.NewLogger(io.Discard)

	creds := repositories.NewCredentialRepository(db)
	refresher := services.NewTokenRefresher(services.NewOAuthConfig(upstream.SpotifyConfig(), upstream.UpstreamConfig()), nil)
	sessions := services.NewSessionManager(creds, refresher, logger)
	gateway := services.NewGateway(upstream.UpstreamConfig(), nil, sessions, logger)

	e := &env{
		upstream: upstream,
		db:       db,
		events:   repositories.NewEventRepository(db),
		users:    repositories.NewUserRepository(db),
		creds:    creds,
		gateway:  gateway,
	}
	e.engine = NewEngine(e.events, e.users, creds, gateway, cache, logger)
	return e
}

// event creates an event for owner-1 holding the given tokens.
func (e *env) event(t *testing.T, mode models.Mode, playlistID, access, refresh string) *models.Event {
	t.Helper()

	event := models.NewEvent(0, "Test Party", "owner-1", mode)
	if playlistID != "" {
		if err := event.SetPlaylistID(playlistID); err != nil {
			t.Fatalf("failed to set playlist: %v", err)
		}
	}
	if err := e.events.Create(event); err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	if err := e.creds.Save(context.Background(), &models.Credentials{
		Principal: models.EventPrincipal(event.ID()), AccessToken: access, RefreshToken: refresh,
	}); err != nil {
		t.Fatalf("failed to save credentials: %v", err)
	}
	return event
}

func (e *env) user(t *testing.T, email, access, refresh string) *models.User {
	t.Helper()

	user := models.NewUser(0, email, "Guest")
	if err := e.users.Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if err := e.creds.Save(context.Background(), &models.Credentials{
		Principal: user.Principal(), AccessToken: access, RefreshToken: refresh,
	}); err != nil {
		t.Fatalf("failed to save credentials: %v", err)
	}
	return user
}

func ids(tracks []models.Track) []string {
	out := make([]string, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.ID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
