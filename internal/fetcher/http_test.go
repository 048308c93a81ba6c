package fetcher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestFetcher(t *testing.T, baseURL string) *HTTPFetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Source.Region = baseURL
	f, err := NewHTTPFetcher(cfg, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func get(t *testing.T, f *HTTPFetcher, rawURL string) (*types.Response, error) {
	t.Helper()
	req, err := types.NewRequest(rawURL)
	require.NoError(t, err)
	return f.Fetch(context.Background(), req)
}

func TestFetchFollowsSignInRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/notebook", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ap/signin?openid.return_to=notebook", http.StatusFound)
	})
	mux.HandleFunc("/ap/signin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>sign in</html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher(t, srv.URL)
	resp, err := get(t, f, srv.URL+"/notebook")
	require.NoError(t, err)

	assert.True(t, resp.Redirected)
	assert.Contains(t, resp.FinalURL, "/ap/signin")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFetchDecodesBrotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, err := bw.Write([]byte(`<span id="highlight">compressed</span>`))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	resp, err := get(t, newTestFetcher(t, srv.URL), srv.URL)
	require.NoError(t, err)
	assert.False(t, resp.Redirected)
	assert.Equal(t, `<span id="highlight">compressed</span>`, string(resp.Body))
}

func TestFetchStatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", "3")
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := get(t, newTestFetcher(t, srv.URL), srv.URL)
			var fe *types.FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Equal(t, tt.retryable, fe.IsRetryable())
			if tt.status == http.StatusTooManyRequests {
				assert.Equal(t, 3*time.Second, fe.RetryAfter)
			}
		})
	}
}

func TestFetchSendsImportedCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session-id")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(c.Value))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"session-id","value":"abc-123","path":"/"}]`), 0o600))

	cfg := config.DefaultConfig()
	cfg.Source.Region = srv.URL
	cfg.Fetcher.CookiesFile = path
	f, err := NewHTTPFetcher(cfg, testLogger)
	require.NoError(t, err)
	defer f.Close()

	resp, err := get(t, f, srv.URL+"/notebook")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", string(resp.Body))
}

func TestReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	f := newTestFetcher(t, srv.URL)

	// a status code still proves reachability
	require.NoError(t, f.Reachable(context.Background(), srv.URL, time.Second))

	srv.Close()
	err := f.Reachable(context.Background(), srv.URL, time.Second)
	assert.ErrorIs(t, err, types.ErrNetworkUnavailable)
}

func TestNextUserAgentRotates(t *testing.T) {
	f := &HTTPFetcher{userAgents: []string{"a", "b"}}
	first, second, third := f.nextUserAgent(), f.nextUserAgent(), f.nextUserAgent()
	assert.NotEqual(t, first, second)
	assert.Equal(t, first, third)

	empty := &HTTPFetcher{}
	assert.Contains(t, empty.nextUserAgent(), "KindleGoat/")
}

func TestRandomDelay(t *testing.T) {
	assert.Zero(t, RandomDelay(0))
	for i := 0; i < 20; i++ {
		d := RandomDelay(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestProxyRotationSkipsFailed(t *testing.T) {
	pm := NewProxyManager(&config.ProxyConfig{
		Rotation: "round_robin",
		URLs:     []string{"http://p1:8080", "http://p2:8080"},
	}, testLogger)
	require.Equal(t, 2, pm.Count())

	assert.Equal(t, "p1:8080", pm.Next().Host)
	assert.Equal(t, "p2:8080", pm.Next().Host)

	pm.MarkFailed(&url.URL{Scheme: "http", Host: "p1:8080"}, errors.New("reset"))
	assert.Equal(t, 1, pm.HealthyCount())
	for i := 0; i < 3; i++ {
		assert.Equal(t, "p2:8080", pm.Next().Host)
	}

	pm.MarkFailed(&url.URL{Scheme: "http", Host: "p2:8080"}, errors.New("reset"))
	assert.Nil(t, pm.Next())
}
