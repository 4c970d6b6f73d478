package google

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/mwain/inboxpilot/internal/auth"
)

// DefaultScopes are the Google OAuth scopes the assistant requires.
//
// The scopes provide access to:
//   - Gmail: read-only
//   - Google Calendar: full access (event creation)
var DefaultScopes = []string{
	gmail.GmailReadonlyScope,
	calendar.CalendarScope,
}

// OOB is the out-of-band redirect URI for the manual copy/paste flow.
const OOB = "urn:ietf:wg:oauth:2.0:oob"

// OAuthConfig returns the OAuth2 configuration for all Google services.
// Client credentials come from the environment so they never live in the
// binary.
func OAuthConfig() (*oauth2.Config, error) {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     googleoauth.Endpoint,
		RedirectURL:  OOB,
		Scopes:       DefaultScopes,
	}, nil
}

// AuthURL returns the URL the user visits to authorize the application.
func AuthURL(conf *oauth2.Config) string {
	return conf.AuthCodeURL("state", oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a credential.
func Exchange(ctx context.Context, conf *oauth2.Config, sourceID, code string) (auth.Credential, error) {
	t, err := conf.Exchange(ctx, code)
	if err != nil {
		return auth.Credential{}, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return auth.FromToken(sourceID, t, auth.Credential{}), nil
}

// NewHTTPClient returns an HTTP client that asks the token source for a
// valid credential on every request. The transport deliberately skips
// oauth2.NewClient, which would wrap the source in its own ReuseTokenSource
// cache and stop consulting the credential manager once a token is held.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol
// errors against Google APIs.
func NewHTTPClient(ts oauth2.TokenSource) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			// Force HTTP/1.1 by disabling HTTP/2
			Base: &http.Transport{
				ForceAttemptHTTP2: false,
			},
		},
	}
}

// CacheDir returns the directory where credentials are stored.
func CacheDir() string {
	return filepath.Join(userCacheDir(), "inboxpilot")
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
