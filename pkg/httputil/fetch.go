package httputil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sebas5384/now-php-extra/pkg/buildinfo"
	"github.com/sebas5384/now-php-extra/pkg/cache"
	"github.com/sebas5384/now-php-extra/pkg/errors"
	"github.com/sebas5384/now-php-extra/pkg/observability"
)

// DefaultFileMode is the mode a fetched file is created with unless the
// caller asks for another one.
const DefaultFileMode os.FileMode = 0o644

// StatusError reports a response whose status indicates failure.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Failed to download %s. Status code is %d", e.URL, e.StatusCode)
}

// Fetcher downloads remote files to the local filesystem.
// A Fetcher is safe for concurrent use if its cache is.
type Fetcher struct {
	client     *http.Client
	cache      cache.Cache
	cacheTTL   time.Duration
	attempts   int
	retryDelay time.Duration
	logger     *log.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithCache stores successful downloads in c for ttl (0 = no expiry).
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithAttempts sets how many times a transient failure is attempted, and
// the delay before the first retry.
func WithAttempts(n int, delay time.Duration) Option {
	return func(f *Fetcher) {
		f.attempts = n
		f.retryDelay = delay
	}
}

// WithLogger sets the logger for download progress.
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a Fetcher. Without options it makes a single attempt,
// has no cache and logs nothing.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:     &http.Client{Timeout: 5 * time.Minute},
		cache:      cache.NewNullCache(),
		attempts:   1,
		retryDelay: time.Second,
		logger:     log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads source to dest, creating dest with mode, and returns dest.
//
// Returns:
//   - TRANSPORT_ERROR when the request cannot be sent or the connection fails
//   - HTTP_STATUS wrapping a [*StatusError] for non-2xx responses
//   - the underlying I/O error if writing dest fails mid-stream
func (f *Fetcher) Fetch(ctx context.Context, source, dest string, mode os.FileMode) (string, error) {
	if err := errors.ValidateURL(source); err != nil {
		return "", err
	}
	if mode == 0 {
		mode = DefaultFileMode
	}

	key := "download:" + source
	if data, ok, err := f.cache.Get(ctx, key); err == nil && ok {
		observability.Cache().OnCacheHit(ctx, "download")
		if err := writeAll(dest, bytes.NewReader(data), mode); err != nil {
			return "", err
		}
		f.logger.Debug("Using cached download", "url", source, "dest", dest)
		return dest, nil
	}
	observability.Cache().OnCacheMiss(ctx, "download")

	var body []byte
	err := Retry(ctx, f.attempts, f.retryDelay, func() error {
		var err error
		body, err = f.download(ctx, source, dest, mode)
		return err
	})
	if err != nil {
		return "", err
	}

	if body != nil {
		if err := f.cache.Set(ctx, key, body, f.cacheTTL); err != nil {
			f.logger.Warn("Could not cache download", "url", source, "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "download", len(body))
		}
	}

	f.logger.Infof("Downloaded file at: %s", dest)
	return dest, nil
}

// download performs one attempt. When caching is enabled it also returns
// the body it wrote.
func (f *Fetcher) download(ctx context.Context, source, dest string, mode os.FileMode) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransport, err, "failed to download %s", source)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RetryableError{Err: errors.Wrap(errors.ErrCodeTransport, err, "failed to download %s", source)}
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(source, resp.StatusCode); err != nil {
		return nil, err
	}

	var src io.Reader = resp.Body
	var buf *bytes.Buffer
	if _, null := f.cache.(*cache.NullCache); !null {
		buf = new(bytes.Buffer)
		src = io.TeeReader(resp.Body, buf)
	}

	if err := writeAll(dest, src, mode); err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, nil
	}
	return buf.Bytes(), nil
}

func checkStatus(source string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	err := errors.Wrap(errors.ErrCodeHTTPStatus, &StatusError{URL: source, StatusCode: code}, "unexpected response")
	if code >= 500 || code == http.StatusTooManyRequests {
		return &RetryableError{Err: err}
	}
	return err
}

func writeAll(dest string, src io.Reader, mode os.FileMode) error {
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dest, mode)
}
