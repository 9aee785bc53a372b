package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds one shared token exchange.
const refreshTimeout = 30 * time.Second

// CredentialStore is the durable home of principal tokens.
type CredentialStore interface {
	GetByPrincipal(ctx context.Context, ref models.PrincipalRef) (*models.Credentials, error)
	UpdateAccessToken(ctx context.Context, ref models.PrincipalRef, token string, expiresAt *time.Time) error
	RotateRefreshToken(ctx context.Context, ref models.PrincipalRef, token string) error
}

// Exchanger trades a refresh token for a new token.
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// SessionManager hands out access tokens and renews them on demand.
//
// Tokens are read lazily; an upstream 401 is the only expiry signal. Nothing is cached between calls.
type SessionManager struct {
	store     CredentialStore
	refresher Exchanger
	logger    *log.Logger
	flights   singleflight.Group
}

// NewSessionManager creates a [SessionManager].
func NewSessionManager(store CredentialStore, refresher Exchanger, logger *log.Logger) *SessionManager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SessionManager{store: store, refresher: refresher, logger: logger}
}

// AccessToken returns the stored access token for ref, which may be empty or expired.
func (m *SessionManager) AccessToken(ctx context.Context, ref models.PrincipalRef) (string, error) {
	creds, err := m.store.GetByPrincipal(ctx, ref)
	if err != nil {
		return "", err
	}
	return creds.AccessToken, nil
}

// Refresh renews the access token for ref after stale was rejected.
//
// Concurrent refreshes of one principal share a single exchange. When the stored token no longer equals stale,
// someone else already refreshed and the stored token is returned as is.
// On failure an [*AuthFailure] is returned and stored state is unchanged.
//
// The shared exchange is detached from any one caller's cancellation and bounded by refreshTimeout.
// A caller whose ctx ends first gets ctx.Err() while the exchange continues for the others.
func (m *SessionManager) Refresh(ctx context.Context, ref models.PrincipalRef, stale string) (string, error) {
	ch := m.flights.DoChan(ref.String(), func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refresh(flightCtx, ref, stale)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			m.logger.Debug("shared in-flight refresh", "principal", ref)
		}
		return res.Val.(string), nil
	}
}

func (m *SessionManager) refresh(ctx context.Context, ref models.PrincipalRef, stale string) (string, error) {
	creds, err := m.store.GetByPrincipal(ctx, ref)
	if err != nil {
		return "", err
	}

	if creds.AccessToken != "" && creds.AccessToken != stale {
		return creds.AccessToken, nil
	}

	if !creds.CanRefresh() {
		return "", &AuthFailure{Principal: ref, Reason: ReasonNoRefreshToken, Detail: "host must sign in again"}
	}

	token, err := m.refresher.Exchange(ctx, creds.RefreshToken)
	if err != nil {
		var af *AuthFailure
		if errors.As(err, &af) {
			af.Principal = ref
			m.logger.Warn("token refresh failed", "principal", ref, "reason", af.Reason, "detail", af.Detail)
			return "", af
		}
		return "", &AuthFailure{Principal: ref, Reason: ReasonTransport, Detail: err.Error(), Err: err}
	}

	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		expiresAt = &token.Expiry
	}

	if err := m.store.UpdateAccessToken(ctx, ref, token.AccessToken, expiresAt); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	if token.RefreshToken != "" && token.RefreshToken != creds.RefreshToken {
		if err := m.store.RotateRefreshToken(ctx, ref, token.RefreshToken); err != nil {
			return "", fmt.Errorf("failed to persist rotated refresh token: %w", err)
		}
		m.logger.Info("refresh token rotated", "principal", ref)
	}

	m.logger.Info("access token refreshed", "principal", ref, "token", shared.MaskToken(token.AccessToken))
	return token.AccessToken, nil
}
