package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/spf13/cobra"

	"stream-scraper/internal/catalog"
	"stream-scraper/scraper"
)

var (
	discoverFrom string
	discoverHost string
)

var discoverCmd = &cobra.Command{
	Use:   "discover [extractor|path|feed-url]",
	Short: "Seed the URL catalog",
	Long: `Discover URLs for a host and enqueue them into the catalog.

Without --from, the argument names a registered extractor whose Discover
hook runs. With --from, URLs come from a builtin source:

  stream-scraper discover pages --host example.com
  stream-scraper discover --from sitemap --host example.com
  stream-scraper discover --from txt     --host example.com urls.txt
  stream-scraper discover --from csv     --host example.com urls.csv
  stream-scraper discover --from rss     --host example.com https://example.com/feed.xml`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&discoverFrom, "from", "", "Builtin source: sitemap, txt, csv, or rss")
	discoverCmd.Flags().StringVar(&discoverHost, "host", "", "Target host, e.g. example.com")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// extractor mode: run the registered Discover hook
	if discoverFrom == "" {
		if len(args) == 0 {
			return usageErrorf("discover: extractor name required (registered: %s)", strings.Join(scraper.Names(), ", "))
		}
		ext, ok := scraper.Lookup(args[0])
		if !ok {
			return usageErrorf("discover: unknown extractor %q (registered: %s)", args[0], strings.Join(scraper.Names(), ", "))
		}
		if discoverHost == "" {
			return usageErrorf("discover: --host is required")
		}
		s, err := scraper.NewBuilder().
			SetHost(discoverHost).
			SetQPS(10).
			SetCatalogDir(catalogDir).
			Build()
		if err != nil {
			return err
		}
		defer s.Close()
		return ext.Discover(ctx, s)
	}

	if discoverHost == "" {
		return usageErrorf("discover: --host is required with --from")
	}

	if discoverFrom == "sitemap" {
		s, err := scraper.NewBuilder().
			SetHost(discoverHost).
			SetQPS(10).
			SetCatalogDir(catalogDir).
			Build()
		if err != nil {
			return err
		}
		defer s.Close()
		return s.DiscoverFromSitemap(ctx)
	}

	if len(args) == 0 {
		return usageErrorf("discover: %s source argument required", discoverFrom)
	}
	source := args[0]

	cat, err := catalog.Open(discoverHost, catalogDir)
	if err != nil {
		return err
	}
	defer cat.Close()

	var urls []string
	switch discoverFrom {
	case "txt":
		urls, err = urlsFromTxt(source)
	case "csv":
		urls, err = urlsFromCSV(source)
	case "rss":
		urls, err = urlsFromFeed(ctx, source)
	default:
		return usageErrorf("discover: --from must be sitemap, txt, csv, or rss")
	}
	if err != nil {
		return err
	}
	for _, u := range urls {
		if err := cat.Add(u); err != nil {
			return err
		}
	}
	fmt.Printf("enqueued %d urls for %s\n", len(urls), discoverHost)
	return nil
}

// urlsFromTxt returns the non-blank trimmed lines of path.
func urlsFromTxt(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	urls := []string{}
	for _, l := range strings.Split(string(b), "\n") {
		if s := strings.TrimSpace(l); s != "" {
			urls = append(urls, s)
		}
	}
	return urls, nil
}

// urlsFromCSV reads the "URL" column, or the first column when no such
// header exists.
func urlsFromCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	col := 0
	for i, h := range header {
		if strings.TrimSpace(h) == "URL" {
			col = i
			break
		}
	}
	urls := []string{}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if col < len(row) {
			if u := strings.TrimSpace(row[col]); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls, nil
}

// urlsFromFeed parses an RSS/Atom feed and returns the item links.
func urlsFromFeed(ctx context.Context, feedURL string) ([]string, error) {
	fp := gofeed.NewParser()
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}
	urls := []string{}
	for _, item := range feed.Items {
		if u := strings.TrimSpace(item.Link); u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}
