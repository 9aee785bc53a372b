package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// TokenRefresher performs refresh-token grants against the token endpoint.
type TokenRefresher struct {
	config *oauth2.Config
	client *http.Client
}

// NewTokenRefresher creates a [TokenRefresher]. A nil client uses [http.DefaultClient].
func NewTokenRefresher(config *oauth2.Config, client *http.Client) *TokenRefresher {
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenRefresher{config: config, client: client}
}

// Exchange trades refreshToken for a new access token in one request.
//
// The returned token always carries a refresh token: the rotated one when the server issued one, otherwise the input.
// Failures are returned as [*AuthFailure] without a principal.
func (r *TokenRefresher) Exchange(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if r.config == nil || r.config.ClientID == "" || r.config.ClientSecret == "" {
		return nil, &AuthFailure{Reason: ReasonNotConfigured, Detail: "client id and secret are required"}
	}
	if refreshToken == "" {
		return nil, &AuthFailure{Reason: ReasonNoRefreshToken}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	token, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, refreshFailure(err)
	}

	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}

func refreshFailure(err error) *AuthFailure {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return &AuthFailure{Reason: ReasonTransport, Detail: err.Error(), Err: err}
	}

	detail := re.ErrorCode
	switch {
	case detail != "" && re.ErrorDescription != "":
		detail += ": " + re.ErrorDescription
	case detail == "":
		detail = re.ErrorDescription
	}
	if detail == "" && re.Response != nil {
		detail = fmt.Sprintf("token endpoint returned %s", re.Response.Status)
	}

	switch {
	case re.ErrorCode == "invalid_grant":
		return &AuthFailure{Reason: ReasonInvalidGrant, Detail: detail, Err: err}
	case re.ErrorCode != "":
		return &AuthFailure{Reason: ReasonRejected, Detail: detail, Err: err}
	case re.Response != nil && re.Response.StatusCode >= 500:
		return &AuthFailure{Reason: ReasonTransport, Detail: detail, Err: err}
	default:
		return &AuthFailure{Reason: ReasonRejected, Detail: detail, Err: err}
	}
}
