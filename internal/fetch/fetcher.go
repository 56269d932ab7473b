package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/DjordjeVuckovic/planet-sync/internal/apperr"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 32 << 20
	userAgent       = "planet-sync/1.0 (+https://github.com/DjordjeVuckovic/planet-sync)"
)

// Fetcher performs GET requests. Only a 200 response counts as success; any other status
// comes back as an *apperr.FetchError together with the status code.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, int, error)
}

type HTTPFetcher struct {
	client   *http.Client
	limiter  *HostRateLimiter
	maxBytes int64
}

type Option func(*HTTPFetcher)

func WithClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.client.Timeout = d
	}
}

// WithHostInterval paces requests so each host sees at most one request per interval.
func WithHostInterval(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.limiter = NewHostRateLimiter(d)
		}
	}
}

func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		f.maxBytes = n
	}
}

func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:   newHTTPClient(defaultTimeout),
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *HTTPFetcher) Get(ctx context.Context, url string) ([]byte, int, error) {
	if f.limiter != nil {
		if err := f.limiter.WaitForHost(ctx, url); err != nil {
			return nil, 0, apperr.NewFetchWrap(url, fmt.Errorf("rate limiting: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, apperr.NewFetchWrap(url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, apperr.NewFetchWrap(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		slog.Debug("Fetch returned non-OK status", "url", url, "status", resp.StatusCode)
		return nil, resp.StatusCode, apperr.NewFetchStatus(url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, resp.StatusCode, apperr.NewFetchWrap(url, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, resp.StatusCode, apperr.NewFetchWrap(url, fmt.Errorf("response larger than %d bytes", f.maxBytes))
	}

	slog.Debug("Fetched", "url", url, "bytes", len(body), "duration", time.Since(start))
	return body, resp.StatusCode, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
