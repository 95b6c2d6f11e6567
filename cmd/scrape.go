package cmd

import (
	"bufio"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"stream-scraper/internal/cache"
	"stream-scraper/internal/config"
	"stream-scraper/internal/metrics"
	"stream-scraper/internal/ratelimit"
	"stream-scraper/scraper"
	"stream-scraper/sink"
)

var (
	scrapeHost        string
	scrapeQPS         float64
	scrapeConcurrency int
	scrapeFilters     []string
	scrapeCache       string
	scrapeSinkPath    string
	scrapeConsole     bool
	scrapeDistributed bool
	scrapeSharedLimit bool
	scrapeStopOnFail  bool
	scrapeProgress    bool
	scrapeInsecure    bool
	scrapeSync        bool
	scrapeConfigPath  string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <extractor>",
	Short: "Run the fetch engine",
	Long: `Run the fetch engine with a registered extractor. When stdin is piped,
each non-blank line is enqueued into the catalog before the run starts:

  stream-scraper discover --from sitemap --host example.com
  stream-scraper scrape pages --host example.com

  cat urls.txt | stream-scraper scrape pages --host example.com`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeHost, "host", "", "Target host, e.g. example.com")
	scrapeCmd.Flags().Float64Var(&scrapeQPS, "qps", 0, "Target requests per second")
	scrapeCmd.Flags().IntVar(&scrapeConcurrency, "concurrency", 0, "Max in-flight requests")
	scrapeCmd.Flags().StringArrayVar(&scrapeFilters, "filter", nil, "Path regex; repeatable")
	scrapeCmd.Flags().StringVar(&scrapeCache, "cache", "", "Cache fetched bodies instead of extracting: disk or redis")
	scrapeCmd.Flags().StringVar(&scrapeSinkPath, "out", "", "Sink file path (default <host>.csv with dots dashed)")
	scrapeCmd.Flags().BoolVar(&scrapeConsole, "console", false, "Print records to stdout instead of a file")
	scrapeCmd.Flags().BoolVar(&scrapeDistributed, "distributed", false, "Consume from the shared stream instead of the local catalog")
	scrapeCmd.Flags().BoolVar(&scrapeSharedLimit, "shared-limit", false, "Keep token-bucket state in Redis so workers share one budget")
	scrapeCmd.Flags().BoolVar(&scrapeStopOnFail, "stop-on-fail", false, "Stop starting new work after the first failed fetch")
	scrapeCmd.Flags().BoolVar(&scrapeProgress, "progress", false, "Show a progress bar")
	scrapeCmd.Flags().BoolVar(&scrapeInsecure, "insecure", false, "Skip TLS certificate verification")
	scrapeCmd.Flags().BoolVar(&scrapeSync, "sync", false, "Single-threaded mode paced by sleep(1/qps)")
	scrapeCmd.Flags().StringVar(&scrapeConfigPath, "config", "scraper.yaml", "Optional YAML config file")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return usageErrorf("scrape: extractor name required (registered: %s)", strings.Join(scraper.Names(), ", "))
	}
	ext, ok := scraper.Lookup(args[0])
	if !ok {
		return usageErrorf("scrape: unknown extractor %q (registered: %s)", args[0], strings.Join(scraper.Names(), ", "))
	}

	cfg, err := config.Load(scrapeConfigPath)
	if err != nil {
		return err
	}
	host := firstOf(scrapeHost, cfg.Host)
	qps := scrapeQPS
	if qps <= 0 {
		qps = cfg.QPS
	}
	if qps <= 0 {
		qps = 10
	}
	if host == "" {
		return usageErrorf("scrape: --host is required")
	}
	concurrency := scrapeConcurrency
	if concurrency <= 0 {
		concurrency = cfg.Concurrency
	}
	filters := scrapeFilters
	if len(filters) == 0 {
		filters = cfg.Filters
	}
	cacheKind := firstOf(scrapeCache, cfg.Cache)
	sinkPath := firstOf(scrapeSinkPath, cfg.SinkPath)
	stopOnFail := scrapeStopOnFail || cfg.StopOnFail

	if addr := firstOf(metricsAddr, cfg.MetricsAddr); addr != "" {
		go func() {
			if err := metrics.Serve(addr); err != nil {
				cmd.PrintErrln("metrics endpoint failed:", err)
			}
		}()
	}

	var rdb *redis.Client
	needRedis := scrapeDistributed || scrapeSharedLimit || cacheKind == "redis"
	if needRedis {
		rdb = redis.NewClient(&redis.Options{Addr: firstOf(redisAddr, cfg.RedisAddr, "localhost:6379")})
		defer rdb.Close()
	}

	b := scraper.NewBuilder().
		SetHost(host).
		SetQPS(qps).
		SetCatalogDir(catalogDir).
		SetParser(ext.Parse).
		SetStopOnFail(stopOnFail).
		SetProgress(scrapeProgress).
		SetInsecureSkipVerify(scrapeInsecure).
		SetSynchronous(scrapeSync).
		SetUserAgent(cfg.UserAgent)
	if concurrency > 0 {
		b.SetConcurrency(concurrency)
	}
	for _, f := range filters {
		b.SetFilter(f)
	}
	switch cacheKind {
	case "":
	case "disk":
		dc, err := cache.NewDiskCache(".")
		if err != nil {
			return err
		}
		b.SetCache(dc)
	case "redis":
		b.SetCache(cache.NewRedisCache(rdb))
	default:
		return usageErrorf("scrape: --cache must be disk or redis")
	}
	if scrapeConsole {
		b.SetSink(sink.NewConsoleSink(true))
	} else if sinkPath != "" {
		b.SetSink(sink.NewFileSink(sinkPath))
	}
	if scrapeDistributed {
		b.SetRedisClient(rdb).SetDistributed(true)
	}
	if scrapeSharedLimit {
		b.SetLimiterStorage(ratelimit.NewRedisStorage(rdb))
	}

	s, err := b.Build()
	if err != nil {
		return err
	}
	defer s.Close()

	// piped stdin seeds the catalog before the run
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		sc := bufio.NewScanner(os.Stdin)
		enq := 0
		for sc.Scan() {
			if u := strings.TrimSpace(sc.Text()); u != "" {
				if err := s.Enqueue(u); err != nil {
					return err
				}
				enq++
			}
		}
		if err := sc.Err(); err != nil {
			return err
		}
		cmd.PrintErrf("enqueued %d urls from stdin\n", enq)
	}

	return s.Scrape(cmd.Context())
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
