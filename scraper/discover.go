package scraper

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Page is one discovered sitemap entry.
type Page struct {
	URL string
}

const maxSitemapDepth = 8

// DiscoverFromSitemap resolves the host's sitemap tree starting from
// https://<host> and ingests every page URL that passes the configured
// filters into the catalog.
func (s *Scraper) DiscoverFromSitemap(ctx context.Context) error {
	return s.discoverFrom(ctx, "https://"+s.host)
}

func (s *Scraper) discoverFrom(ctx context.Context, homepage string) error {
	pages, err := s.sitemapPages(ctx, homepage)
	if err != nil {
		return err
	}
	for _, p := range pages {
		if !s.pathAllowed(p.URL) {
			continue
		}
		if err := s.catalog.Add(p.URL); err != nil {
			return err
		}
	}
	return nil
}

// sitemapPages finds the homepage's sitemaps (robots.txt Sitemap lines, or
// the conventional /sitemap.xml when there are none) and walks them, following sitemap-index
// nesting. All failures surface as a single "sitemap unavailable" error.
func (s *Scraper) sitemapPages(ctx context.Context, homepage string) ([]Page, error) {
	roots := s.sitemapRoots(ctx, homepage)
	var pages []Page
	seen := make(map[string]struct{})
	for _, root := range roots {
		if err := s.walkSitemap(ctx, root, 0, seen, &pages); err != nil {
			return nil, fmt.Errorf("sitemap unavailable: %w", err)
		}
	}
	return pages, nil
}

// sitemapRoots returns the sitemap entry points: robots.txt "Sitemap:" lines
// when present, otherwise homepage/sitemap.xml.
func (s *Scraper) sitemapRoots(ctx context.Context, homepage string) []string {
	base := strings.TrimRight(homepage, "/")
	var roots []string

	body, err := s.fetchRaw(ctx, base+"/robots.txt")
	if err == nil {
		sc := bufio.NewScanner(strings.NewReader(string(body)))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if len(line) >= 8 && strings.EqualFold(line[:8], "sitemap:") {
				if u := strings.TrimSpace(line[8:]); u != "" {
					roots = append(roots, u)
				}
			}
		}
	}
	if len(roots) == 0 {
		roots = []string{base + "/sitemap.xml"}
	}
	return roots
}

// walkSitemap parses one sitemap document, recursing into nested sitemaps
// and collecting page URLs.
func (s *Scraper) walkSitemap(ctx context.Context, sitemapURL string, depth int, seen map[string]struct{}, pages *[]Page) error {
	if depth > maxSitemapDepth {
		return nil
	}
	if _, ok := seen[sitemapURL]; ok {
		return nil
	}
	seen[sitemapURL] = struct{}{}

	body, err := s.fetchRaw(ctx, sitemapURL)
	if err != nil {
		return err
	}
	var r io.Reader = strings.NewReader(string(body))
	if strings.HasSuffix(sitemapURL, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	}

	doc, err := xmlquery.Parse(r)
	if err != nil {
		return err
	}
	for _, n := range xmlquery.Find(doc, "//*[local-name()='sitemap']/*[local-name()='loc']") {
		child := strings.TrimSpace(n.InnerText())
		if child == "" {
			continue
		}
		if err := s.walkSitemap(ctx, child, depth+1, seen, pages); err != nil {
			return err
		}
	}
	for _, n := range xmlquery.Find(doc, "//*[local-name()='url']/*[local-name()='loc']") {
		if u := strings.TrimSpace(n.InnerText()); u != "" {
			*pages = append(*pages, Page{URL: u})
		}
	}
	return nil
}

// fetchRaw is a plain rate-limit-exempt GET used by discovery; sitemap
// fetches are few and happen before the crawl starts.
func (s *Scraper) fetchRaw(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("user-agent", s.userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("GET %s: status %d", target, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
