package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sitemapXML(urls ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, u := range urls {
		body += "<url><loc>" + u + "</loc></url>"
	}
	return body + "</urlset>"
}

func sitemapIndexXML(sitemaps ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, u := range sitemaps {
		body += "<sitemap><loc>" + u + "</loc></sitemap>"
	}
	return body + "</sitemapindex>"
}

func newDiscoveryEngine(t *testing.T, filters ...string) *Scraper {
	t.Helper()
	b := NewBuilder().
		SetHost("example.com").
		SetQPS(100).
		SetCatalogDir(t.TempDir())
	for _, f := range filters {
		b.SetFilter(f)
	}
	s, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func catalogURLs(t *testing.T, s *Scraper) []string {
	t.Helper()
	var urls []string
	require.NoError(t, s.Catalog().Iterate("", func(_, url string) bool {
		urls = append(urls, url)
		return true
	}))
	return urls
}

func TestDiscoverFiltersSitemapURLs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sitemapXML(
			"https://example.com/",
			"https://example.com/blog/a",
			"https://example.com/wp-admin",
			"https://example.com/news/today",
		))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newDiscoveryEngine(t, "^/(blog|news)/")
	require.NoError(t, s.discoverFrom(context.Background(), srv.URL))

	assert.Equal(t, []string{
		"https://example.com/blog/a",
		"https://example.com/news/today",
	}, catalogURLs(t, s))
}

func TestDiscoverFollowsRobotsSitemapLine(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nDisallow: /private\nSitemap: %s/custom-map.xml\n", srvURL)
	})
	mux.HandleFunc("/custom-map.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sitemapXML("https://example.com/page"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	s := newDiscoveryEngine(t)
	require.NoError(t, s.discoverFrom(context.Background(), srv.URL))
	assert.Equal(t, []string{"https://example.com/page"}, catalogURLs(t, s))
}

func TestDiscoverWalksSitemapIndex(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sitemapIndexXML(srvURL+"/posts.xml", srvURL+"/pages.xml"))
	})
	mux.HandleFunc("/posts.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sitemapXML("https://example.com/posts/1"))
	})
	mux.HandleFunc("/pages.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sitemapXML("https://example.com/about"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	s := newDiscoveryEngine(t)
	require.NoError(t, s.discoverFrom(context.Background(), srv.URL))
	assert.ElementsMatch(t, []string{
		"https://example.com/posts/1",
		"https://example.com/about",
	}, catalogURLs(t, s))
}

func TestDiscoverUnavailableSitemapIsOneError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := newDiscoveryEngine(t)
	err := s.discoverFrom(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sitemap unavailable")
}
