package google

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type countingTokenSource struct {
	mu    sync.Mutex
	calls int
	token string
}

func (ts *countingTokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.calls++
	return &oauth2.Token{
		AccessToken: ts.token,
		Expiry:      time.Now().Add(time.Hour),
	}, nil
}

func (ts *countingTokenSource) callCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.calls
}

func TestNewHTTPClientConsultsTokenSourcePerRequest(t *testing.T) {
	var headers []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = append(headers, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	ts := &countingTokenSource{token: "managed"}
	client := NewHTTPClient(ts)

	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}

	// The credential manager behind the token source is the single
	// authority on token freshness. A client-side token cache would let
	// a revoked credential keep riding on stale copies, so every request
	// must go back to the source even while the token is unexpired.
	assert.Equal(t, 2, ts.callCount())
	assert.Equal(t, []string{"Bearer managed", "Bearer managed"}, headers)
}
