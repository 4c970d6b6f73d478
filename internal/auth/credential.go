package auth

import (
	"time"

	"golang.org/x/oauth2"
)

// Credential holds the tokens for one source. It is owned exclusively by
// the Manager; callers receive copies.
type Credential struct {
	SourceID     string    `json:"sourceId"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	Expiry       time.Time `json:"expiry"`
}

// ValidFor reports whether the access token is still usable for at least
// the given margin.
func (c Credential) ValidFor(margin time.Duration) bool {
	if c.AccessToken == "" {
		return false
	}
	if c.Expiry.IsZero() {
		return true
	}
	return time.Until(c.Expiry) > margin
}

// Token converts the credential to an oauth2 token for use with Google
// API clients.
func (c Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.Expiry,
	}
}

// FromToken builds a Credential from an oauth2 token. If the token has no
// refresh token (Google omits it on re-issue), the previous one is kept.
func FromToken(sourceID string, t *oauth2.Token, previous Credential) Credential {
	cred := Credential{
		SourceID:     sourceID,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = previous.RefreshToken
	}
	return cred
}
