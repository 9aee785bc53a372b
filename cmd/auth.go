package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/server"
	"github.com/desertthunder/partyq/internal/services"
	"github.com/desertthunder/partyq/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultAuthTimeout = 2 * time.Minute

// principalFromFlags reads --event or --user. Exactly one must be set.
func principalFromFlags(cmd *cli.Command) (models.PrincipalRef, error) {
	eventID, email := cmd.String("event"), cmd.String("user")
	switch {
	case eventID == "" && email == "":
		return models.PrincipalRef{}, fmt.Errorf("%w: either --event or --user must be provided", shared.ErrMissingArgument)
	case eventID != "" && email != "":
		return models.PrincipalRef{}, fmt.Errorf("%w: cannot specify both --event and --user", shared.ErrInvalidArgument)
	case eventID != "":
		return models.EventPrincipal(eventID), nil
	default:
		return models.UserPrincipal(models.NewUser(0, email, "").Email()), nil
	}
}

// AuthLogin performs the OAuth2 authorization code flow for an event or a user.
//
// Starts a local HTTP server on the redirect URI's address, opens the browser for consent,
// and stores the issued tokens on the principal. A user that does not exist yet is created.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if !r.config.Credentials.Spotify.Configured() {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrNotConfigured)
	}

	ref, err := principalFromFlags(cmd)
	if err != nil {
		return err
	}

	if err := r.open(ctx); err != nil {
		return err
	}
	if err := r.ensurePrincipal(ref, cmd.String("name")); err != nil {
		return err
	}

	if err := r.doOAuth(ctx, ref, cmd.Duration("timeout")); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved for %s\n", ref)
	return nil
}

// ensurePrincipal checks that the event exists, or creates the user on first login.
func (r *Runner) ensurePrincipal(ref models.PrincipalRef, name string) error {
	switch ref.Kind {
	case models.PrincipalEvent:
		_, err := r.events.Get(ref.ID)
		return err
	default:
		_, err := r.users.GetByEmail(ref.ID)
		if !errors.Is(err, shared.ErrUserNotFound) {
			return err
		}
		user := models.NewUser(0, ref.ID, name)
		if err := r.users.Create(user); err != nil {
			return err
		}
		r.logger.Info("user created", "email", user.Email())
		return nil
	}
}

// callbackAddr is the listen address for the redirect URI, falling back to the server config.
func callbackAddr(redirectURI string, fallback shared.ServerConfig) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return fallback.Addr()
	}
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		return net.JoinHostPort(u.Hostname(), "80")
	}
	return u.Host
}

func (r *Runner) doOAuth(ctx context.Context, ref models.PrincipalRef, timeout time.Duration) error {
	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthConfig := services.NewOAuthConfig(r.config.Credentials.Spotify, r.config.Upstream)
	oauthHandler := server.NewOAuthHandler(oauthConfig, state, ref, r.credentials)
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(oauthHandler)

	serverAddr := callbackAddr(oauthConfig.RedirectURL, r.config.Server)
	listener, err := net.Listen("tcp", serverAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", serverAddr, err)
	}
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", ref, serverAddr)
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := oauthHandler.AuthURL()
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	if timeout <= 0 {
		timeout = defaultAuthTimeout
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Error() != nil {
		return fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return fmt.Errorf("no token received")
	}
	return nil
}

// AuthStatus reports whether a principal has stored credentials, masking the tokens.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	ref, err := principalFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	creds, err := r.credentials.GetByPrincipal(ctx, ref)
	if err != nil {
		return err
	}

	r.writePlainHeader(ref.String())
	r.writePlain("Access token:  %s\n", shared.MaskToken(creds.AccessToken))
	r.writePlain("Refresh token: %s\n", shared.MaskToken(creds.RefreshToken))
	if creds.ExpiresAt != nil {
		r.writePlain("Expires:       %s\n", creds.ExpiresAt.Local().Format(time.RFC1123))
	}
	if creds.CanRefresh() {
		r.writePlain("✓ Playback can be authorized\n")
	} else {
		r.writePlain("✗ Not authorized, run 'partyq auth login'\n")
	}
	return nil
}
