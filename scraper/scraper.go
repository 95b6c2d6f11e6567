// Package scraper implements a host-scoped, rate-limited fetch engine. URLs
// for one host are queued in a persistent ordered catalog and consumed either
// locally with resumable cursor semantics, or through a shared Redis stream
// with consumer-group semantics so several workers can cooperate.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"

	"stream-scraper/internal/cache"
	"stream-scraper/internal/catalog"
	"stream-scraper/internal/errors"
	"stream-scraper/internal/metrics"
	"stream-scraper/internal/ratelimit"
	"stream-scraper/sink"
)

// ParseFunc turns a fetched body into a record for the sink.
type ParseFunc func(url string, body []byte) (any, error)

// Strategy controls how the engine reacts to a failed fetch.
type Strategy int

const (
	// NeverStop logs failures and keeps going.
	NeverStop Strategy = iota
	// StopOnFail stops starting new work after the first failure; in-flight
	// fetches are allowed to finish.
	StopOnFail
)

// Scraper is the fetch engine. Build one with a Builder; the zero value is
// not usable.
type Scraper struct {
	host        string
	qps         float64
	concurrency int
	strategy    Strategy
	timeout     time.Duration
	userAgent   string
	progress    bool
	synchronous bool
	distributed bool
	insecure    bool

	filters []*regexp.Regexp
	parse   ParseFunc
	out     sink.Sink
	store   cache.Cache

	catalog *catalog.Catalog
	limiter *ratelimit.Limiter
	client  *http.Client

	rdb          *redis.Client
	consumer     string
	minIdle      time.Duration
	blockTimeout time.Duration

	logger  *slog.Logger
	running atomic.Bool
	sinkMu  sync.Mutex
}

// Host returns the configured target host.
func (s *Scraper) Host() string { return s.host }

// StreamName returns the durable stream key for this host.
func (s *Scraper) StreamName() string {
	return "stream-scraper:scrape:" + s.host
}

// Catalog exposes the engine's URL catalog, mainly for Discover hooks that
// enqueue URLs directly.
func (s *Scraper) Catalog() *catalog.Catalog { return s.catalog }

// Enqueue adds a URL to the catalog.
func (s *Scraper) Enqueue(url string) error { return s.catalog.Add(url) }

// Close shuts the engine down: the sink, the HTTP client's idle connections,
// and the owned catalog store.
func (s *Scraper) Close() error {
	var first error
	if s.out != nil {
		if err := s.out.Close(); err != nil {
			first = err
		}
	}
	if s.client != nil {
		s.client.CloseIdleConnections()
	}
	if err := s.catalog.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// pathAllowed reports whether the URL's path matches any configured filter.
// With no filters everything passes.
func (s *Scraper) pathAllowed(raw string) bool {
	if len(s.filters) == 0 {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	for _, rx := range s.filters {
		if rx.MatchString(path) {
			return true
		}
	}
	return false
}

// absoluteURL gives scheme-relative URLs an https: scheme (keeping their own
// host) and rewrites path-only URLs against the configured host.
func (s *Scraper) absoluteURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if !strings.HasPrefix(raw, "http") {
		if !strings.HasPrefix(raw, "/") {
			raw = "/" + raw
		}
		return "https://" + s.host + raw
	}
	return raw
}

// waitForToken polls the limiter until admission or context cancellation.
// The limiter itself never blocks; this is the documented polling loop.
func (s *Scraper) waitForToken(ctx context.Context) error {
	for !s.limiter.Consume(s.host, 1) {
		metrics.RateLimitWaits.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ratelimit.PollInterval):
		}
	}
	return nil
}

// fetchOne performs a single GET and routes the body: to the cache when one
// is configured, otherwise through the extractor to the sink. The returned
// error is nil exactly when the URL reached a successful terminal state.
func (s *Scraper) fetchOne(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.NewTransportError(target, err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("user-agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.FetchErrors.Inc()
		return errors.NewTransportError(target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		metrics.FetchErrors.Inc()
		return errors.NewHTTPError(target, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.FetchErrors.Inc()
		return errors.NewTransportError(target, err)
	}
	metrics.PagesFetched.Inc()

	if s.store != nil {
		if err := s.store.Write(target, body); err != nil {
			return errors.NewStorageError("cache write", err)
		}
		metrics.CacheWrites.Inc()
		return nil
	}

	if s.parse == nil {
		return nil
	}
	record, err := s.parse(target, body)
	if err != nil {
		// extractor failures are logged and swallowed, never fatal
		metrics.ExtractErrors.Inc()
		s.logger.Warn("extractor failed", "url", target, "err", err)
		return nil
	}
	if s.out == nil || record == nil {
		return nil
	}
	s.sinkMu.Lock()
	err = s.out.Write(record)
	s.sinkMu.Unlock()
	if err != nil {
		return errors.NewSinkError(err)
	}
	return nil
}

// Scrape drains the work queue: the catalog in local mode, the durable
// stream in distributed mode.
func (s *Scraper) Scrape(ctx context.Context) error {
	s.running.Store(true)
	if s.distributed {
		return s.scrapeStream(ctx)
	}
	if s.synchronous {
		return s.scrapeSync(ctx)
	}
	return s.scrapeLocal(ctx)
}

// defaultSinkPath derives the conventional CSV path for a host.
func defaultSinkPath(host string) string {
	return strings.ReplaceAll(host, ".", "-") + ".csv"
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "scraper"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
