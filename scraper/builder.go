package scraper

import (
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"time"

	redis "github.com/redis/go-redis/v9"

	"stream-scraper/internal/cache"
	"stream-scraper/internal/catalog"
	"stream-scraper/internal/errors"
	"stream-scraper/internal/ratelimit"
	"stream-scraper/sink"
)

const (
	defaultConcurrency = 10
	defaultBurst       = 100
	defaultTimeout     = 15 * time.Second
	defaultMinIdle     = 60 * time.Second
	defaultBlock       = 5 * time.Second
)

// Builder assembles a Scraper with validated settings. Host and QPS are
// required; everything else has defaults. Build copies what it needs, so
// mutating the builder afterwards does not affect already-built engines.
type Builder struct {
	host        string
	qps         float64
	burst       float64
	concurrency int
	strategy    Strategy
	timeout     time.Duration
	userAgent   string
	filters     []string
	parse       ParseFunc
	out         sink.Sink
	store       cache.Cache
	rdb         *redis.Client
	distributed bool
	consumer    string
	minIdle     time.Duration
	catalogDir  string
	limitStore  ratelimit.Storage
	insecure    bool
	progress    bool
	synchronous bool
	logger      *slog.Logger
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// SetHost sets the target host, e.g. "example.com".
func (b *Builder) SetHost(host string) *Builder {
	b.host = host
	return b
}

// SetQPS sets the steady-state request rate.
func (b *Builder) SetQPS(qps float64) *Builder {
	b.qps = qps
	return b
}

// SetBurst sets the token bucket capacity.
func (b *Builder) SetBurst(burst float64) *Builder {
	b.burst = burst
	return b
}

// SetConcurrency bounds in-flight requests and per-host connections.
func (b *Builder) SetConcurrency(c int) *Builder {
	b.concurrency = c
	return b
}

// SetFilter appends a path regex; only matching paths are fetched.
func (b *Builder) SetFilter(expr string) *Builder {
	b.filters = append(b.filters, expr)
	return b
}

// SetParser sets the extractor function applied to fetched bodies.
func (b *Builder) SetParser(fn ParseFunc) *Builder {
	b.parse = fn
	return b
}

// SetSink sets where extracted records go.
func (b *Builder) SetSink(s sink.Sink) *Builder {
	b.out = s
	return b
}

// SetCache enables caching of compressed bodies; when set, the extractor is
// not invoked.
func (b *Builder) SetCache(c cache.Cache) *Builder {
	b.store = c
	return b
}

// SetRedisClient provides the shared Redis used for the durable stream.
func (b *Builder) SetRedisClient(rdb *redis.Client) *Builder {
	b.rdb = rdb
	return b
}

// SetDistributed switches Scrape to stream consumption.
func (b *Builder) SetDistributed(on bool) *Builder {
	b.distributed = on
	return b
}

// SetConsumerName overrides the default <hostname>:<pid> consumer id.
func (b *Builder) SetConsumerName(name string) *Builder {
	b.consumer = name
	return b
}

// SetMinIdle sets how long a pending stream entry must sit before another
// consumer may reclaim it.
func (b *Builder) SetMinIdle(d time.Duration) *Builder {
	b.minIdle = d
	return b
}

// SetStopOnFail makes the first failed fetch stop new work.
func (b *Builder) SetStopOnFail(on bool) *Builder {
	if on {
		b.strategy = StopOnFail
	} else {
		b.strategy = NeverStop
	}
	return b
}

// SetUserAgent overrides the fabricated browser user agent.
func (b *Builder) SetUserAgent(ua string) *Builder {
	b.userAgent = ua
	return b
}

// SetTimeout sets the total per-request timeout.
func (b *Builder) SetTimeout(d time.Duration) *Builder {
	b.timeout = d
	return b
}

// SetCatalogDir overrides the embedded store location.
func (b *Builder) SetCatalogDir(dir string) *Builder {
	b.catalogDir = dir
	return b
}

// SetLimiterStorage swaps the limiter's state backend, e.g. a shared Redis
// bucket so cooperating workers draw from one budget.
func (b *Builder) SetLimiterStorage(st ratelimit.Storage) *Builder {
	b.limitStore = st
	return b
}

// SetInsecureSkipVerify disables TLS certificate verification.
func (b *Builder) SetInsecureSkipVerify(on bool) *Builder {
	b.insecure = on
	return b
}

// SetProgress enables the terminal progress bar.
func (b *Builder) SetProgress(on bool) *Builder {
	b.progress = on
	return b
}

// SetSynchronous selects the single-threaded loop paced by sleep(1/QPS).
func (b *Builder) SetSynchronous(on bool) *Builder {
	b.synchronous = on
	return b
}

// SetLogger injects a logger; nil means slog.Default.
func (b *Builder) SetLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the configuration and returns a ready engine.
func (b *Builder) Build() (*Scraper, error) {
	if b.host == "" {
		return nil, errors.NewConfigError("host", "host cannot be empty")
	}
	if b.qps <= 0 {
		return nil, errors.NewConfigError("qps", "qps must be positive")
	}
	if b.distributed && b.rdb == nil {
		return nil, errors.NewConfigError("redis", "distributed mode requires a redis client")
	}

	filters := make([]*regexp.Regexp, 0, len(b.filters))
	for _, expr := range b.filters {
		rx, err := regexp.Compile(expr)
		if err != nil {
			return nil, errors.NewConfigError("filter", "invalid regex "+expr+": "+err.Error())
		}
		filters = append(filters, rx)
	}

	s := &Scraper{
		host:         b.host,
		qps:          b.qps,
		concurrency:  b.concurrency,
		strategy:     b.strategy,
		timeout:      b.timeout,
		userAgent:    b.userAgent,
		filters:      filters,
		parse:        b.parse,
		out:          b.out,
		store:        b.store,
		rdb:          b.rdb,
		distributed:  b.distributed,
		consumer:     b.consumer,
		minIdle:      b.minIdle,
		blockTimeout: defaultBlock,
		insecure:     b.insecure,
		progress:     b.progress,
		synchronous:  b.synchronous,
		logger:       b.logger,
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultConcurrency
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.minIdle <= 0 {
		s.minIdle = defaultMinIdle
	}
	if s.userAgent == "" {
		s.userAgent = DefaultUserAgent()
	}
	if s.consumer == "" {
		s.consumer = consumerName()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.out == nil && s.parse != nil {
		s.out = sink.NewFileSink(defaultSinkPath(s.host))
	}

	burst := b.burst
	if burst <= 0 {
		burst = defaultBurst
	}
	limitStore := b.limitStore
	if limitStore == nil {
		limitStore = ratelimit.NewMemoryStorage()
	}
	s.limiter = ratelimit.NewLimiter(s.qps, burst, limitStore)

	cat, err := catalog.Open(s.host, b.catalogDir)
	if err != nil {
		return nil, err
	}
	s.catalog = cat

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:     s.concurrency,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if s.insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	s.client = &http.Client{
		Timeout:   s.timeout,
		Transport: tr,
	}
	return s, nil
}
