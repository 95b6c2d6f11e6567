// Package metrics exposes engine counters via Prometheus. Registration is
// eager; if no endpoint is served the registration is harmless.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PagesFetched counts successful (2xx) fetches.
	PagesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_pages_fetched_total",
		Help: "Total pages fetched with a 2xx response",
	})
	// FetchErrors counts transport failures and non-2xx responses.
	FetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_fetch_errors_total",
		Help: "Total fetches that ended in a transport error or non-2xx status",
	})
	// CacheWrites counts bodies written to the response cache.
	CacheWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_cache_writes_total",
		Help: "Total response bodies written to the cache",
	})
	// ExtractErrors counts extractor failures (logged, never fatal).
	ExtractErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_extract_errors_total",
		Help: "Total records dropped because the extractor failed",
	})
	// RateLimitWaits counts denied limiter polls.
	RateLimitWaits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_ratelimit_waits_total",
		Help: "Total limiter polls that were denied admission",
	})
	// StreamAcks counts acknowledged stream entries in distributed mode.
	StreamAcks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_stream_acks_total",
		Help: "Total stream entries acknowledged",
	})
	// StreamClaims counts entries reclaimed from idle consumers.
	StreamClaims = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scraper_stream_claims_total",
		Help: "Total idle stream entries reclaimed during recovery",
	})
)

func init() {
	prometheus.MustRegister(PagesFetched, FetchErrors, CacheWrites,
		ExtractErrors, RateLimitWaits, StreamAcks, StreamClaims)
}

// Serve starts a standalone /metrics endpoint on addr. It blocks; run it in
// a goroutine. When addr is empty it returns immediately.
func Serve(addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
