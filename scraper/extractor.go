package scraper

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxContentLen = 50_000

// PagesExtractor is the built-in extractor: sitemap discovery plus a generic
// title/description/paragraph scrape of each page.
type PagesExtractor struct{}

// Discover implements Extractor.
func (PagesExtractor) Discover(ctx context.Context, s *Scraper) error {
	return s.DiscoverFromSitemap(ctx)
}

// Parse implements Extractor.
func (PagesExtractor) Parse(url string, body []byte) (any, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	page := map[string]any{
		"url":              url,
		"title":            strings.TrimSpace(doc.Find("title").Text()),
		"meta_description": strings.TrimSpace(doc.Find("meta[name=description]").AttrOr("content", "")),
	}
	main := doc.Find("main").First()
	if main.Length() == 0 {
		main = doc.Find("body")
	}
	main.Find("script, style, noscript").Remove()
	paras := []string{}
	main.Find("p").Each(func(i int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			paras = append(paras, t)
		}
	})
	content := strings.Join(paras, " ")
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
	}
	page["content"] = content
	return page, nil
}

func init() {
	Register("pages", PagesExtractor{})
}
