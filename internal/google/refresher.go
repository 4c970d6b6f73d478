package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/mwain/inboxpilot/internal/auth"
)

// TokenRefresher exchanges a stale credential for a fresh one against
// Google's token endpoint. It implements auth.Refresher.
type TokenRefresher struct {
	conf *oauth2.Config
}

// NewTokenRefresher creates a refresher bound to the OAuth configuration.
func NewTokenRefresher(conf *oauth2.Config) *TokenRefresher {
	return &TokenRefresher{conf: conf}
}

// Refresh forces a token refresh using the credential's refresh token.
// A rejected refresh token surfaces as auth.ErrExpired; anything else is
// left for the manager's retry policy.
func (r *TokenRefresher) Refresh(ctx context.Context, cred auth.Credential) (auth.Credential, error) {
	// Backdate the expiry so the token source performs a refresh rather
	// than returning the cached access token.
	stale := &oauth2.Token{
		RefreshToken: cred.RefreshToken,
		Expiry:       time.Unix(1, 0),
	}

	t, err := r.conf.TokenSource(ctx, stale).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// invalid_grant means the refresh token was revoked or has
			// itself expired; retrying cannot help.
			if retrieveErr.ErrorCode == "invalid_grant" ||
				retrieveErr.Response != nil && (retrieveErr.Response.StatusCode == 400 || retrieveErr.Response.StatusCode == 401) {
				return auth.Credential{}, fmt.Errorf("%w: %v", auth.ErrExpired, err)
			}
		}
		return auth.Credential{}, err
	}

	return auth.FromToken(cred.SourceID, t, cred), nil
}
