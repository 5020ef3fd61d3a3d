package repo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/healthdash/healthfeeds/internal/cache"
	"github.com/healthdash/healthfeeds/internal/metrics"
)

// maxBodyBytes bounds a single upstream response; PLACES pages are the largest.
const maxBodyBytes = 64 << 20

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Source string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Source, e.Code)
}

// IsStatus reports whether err carries an upstream status error.
func IsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	Timeout   time.Duration
	UserAgent string
	AppToken  string
	RateLimit float64
	RateBurst int
	Cache     cache.Provider
	Logger    *slog.Logger
}

// Fetcher performs GET requests against open-data APIs behind a read-through response cache.
type Fetcher struct {
	httpClient *http.Client
	cache      cache.Provider
	limiter    *rate.Limiter
	userAgent  string
	appToken   string
	logger     *slog.Logger
}

// NewFetcher constructs a Fetcher sharing one HTTP client across every source.
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	f := &Fetcher{
		httpClient: &http.Client{Timeout: opts.Timeout},
		cache:      opts.Cache,
		userAgent:  opts.UserAgent,
		appToken:   opts.AppToken,
		logger:     opts.Logger,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return f
}

// GetJSON decodes the body at url into out, serving it from cache while the entry is younger than ttl.
// Only successful, decodable responses are cached.
func (f *Fetcher) GetJSON(ctx context.Context, source, url string, ttl time.Duration, out any) error {
	if f == nil {
		return fmt.Errorf("fetcher not initialised")
	}
	if url == "" {
		return fmt.Errorf("%s: empty url", source)
	}

	key := CacheKey(url)
	if ttl > 0 {
		if data, err := f.cache.Get(ctx, key); err == nil {
			if err := json.Unmarshal(data, out); err == nil {
				metrics.ObserveCacheLookup(true)
				return nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			f.logger.Debug("response cache read failed", slog.String("source", source), slog.Any("error", err))
		}
		metrics.ObserveCacheLookup(false)
	}

	start := time.Now()
	body, err := f.get(ctx, source, url)
	if err == nil {
		if decodeErr := json.Unmarshal(body, out); decodeErr != nil {
			err = fmt.Errorf("%s: decode response: %w", source, decodeErr)
		}
	}
	metrics.ObserveUpstream(source, time.Since(start), err)
	if err != nil {
		return err
	}

	if ttl > 0 {
		if setErr := f.cache.Set(ctx, key, body, ttl); setErr != nil {
			f.logger.Debug("response cache write failed", slog.String("source", source), slog.Any("error", setErr))
		}
	}
	return nil
}

func (f *Fetcher) get(ctx context.Context, source, url string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limit wait: %w", source, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", source, err)
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.appToken != "" {
		req.Header.Set("X-App-Token", f.appToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Source: source, Code: resp.StatusCode}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(resp.Body, maxBodyBytes)); err != nil {
		return nil, fmt.Errorf("%s: read body: %w", source, err)
	}
	return buf.Bytes(), nil
}

// CacheKey derives the response cache key for a request URL.
func CacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "healthfeeds:http:" + hex.EncodeToString(sum[:])
}
