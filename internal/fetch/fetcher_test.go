package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Contains(t, r.Header.Get("User-Agent"), "planet-sync")
			_, _ = w.Write([]byte("<rss/>"))
		case "/big":
			_, _ = w.Write(make([]byte, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(WithMaxBytes(32))

	body, status, err := f.Get(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<rss/>", string(body))

	body, status, err = f.Get(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Nil(t, body)
	assert.Equal(t, http.StatusNotFound, status)
	var fe *apperr.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)

	_, _, err = f.Get(context.Background(), srv.URL+"/big")
	assert.True(t, apperr.IsFetchFailure(err))
}

func TestHTTPFetcher_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, status, err := NewHTTPFetcher(WithTimeout(time.Second)).Get(context.Background(), url)
	assert.Equal(t, 0, status)
	assert.True(t, apperr.IsFetchFailure(err))
}

func TestHostRateLimiter_WaitForHost(t *testing.T) {
	tests := []struct {
		name    string
		urlStr  string
		wantErr bool
	}{
		{name: "valid https URL", urlStr: "https://example.com/feed.xml"},
		{name: "missing host", urlStr: "/feed.xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewHostRateLimiter(10 * time.Millisecond)
			err := limiter.WaitForHost(context.Background(), tt.urlStr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHostRateLimiter_SharesLimiterPerHost(t *testing.T) {
	limiter := NewHostRateLimiter(time.Hour)

	require.NoError(t, limiter.WaitForHost(context.Background(), "https://a.example.com/1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.WaitForHost(ctx, "https://a.example.com/2"))

	assert.NoError(t, limiter.WaitForHost(context.Background(), "https://b.example.com/1"))
}
