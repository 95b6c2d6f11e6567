package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scrapererrors "stream-scraper/internal/errors"
)

func TestBuildRequiresHost(t *testing.T) {
	_, err := NewBuilder().SetQPS(2).Build()
	var cerr *scrapererrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "host", cerr.Field)
}

func TestBuildRequiresPositiveQPS(t *testing.T) {
	_, err := NewBuilder().SetHost("example.com").SetCatalogDir(t.TempDir()).Build()
	var cerr *scrapererrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "qps", cerr.Field)

	_, err = NewBuilder().SetHost("example.com").SetQPS(-1).Build()
	require.ErrorAs(t, err, &cerr)
}

func TestBuildRejectsInvalidFilter(t *testing.T) {
	_, err := NewBuilder().
		SetHost("example.com").
		SetQPS(2).
		SetFilter("([").
		SetCatalogDir(t.TempDir()).
		Build()
	var cerr *scrapererrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "filter", cerr.Field)
}

func TestBuildRejectsDistributedWithoutRedis(t *testing.T) {
	_, err := NewBuilder().
		SetHost("example.com").
		SetQPS(2).
		SetDistributed(true).
		SetCatalogDir(t.TempDir()).
		Build()
	var cerr *scrapererrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "redis", cerr.Field)
}

func TestBuildDefaults(t *testing.T) {
	s, err := NewBuilder().
		SetHost("example.com").
		SetQPS(2).
		SetCatalogDir(t.TempDir()).
		Build()
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, defaultConcurrency, s.concurrency)
	assert.Equal(t, defaultTimeout, s.timeout)
	assert.Equal(t, defaultMinIdle, s.minIdle)
	assert.NotEmpty(t, s.userAgent)
	assert.NotEmpty(t, s.consumer)
	assert.Equal(t, NeverStop, s.strategy)
	assert.Equal(t, "stream-scraper:scrape:example.com", s.StreamName())
}

func TestBuilderMutationDoesNotAffectBuiltEngine(t *testing.T) {
	b := NewBuilder().
		SetHost("example.com").
		SetQPS(2).
		SetCatalogDir(t.TempDir())
	s, err := b.Build()
	require.NoError(t, err)
	defer s.Close()

	b.SetFilter("^/only/")
	assert.True(t, s.pathAllowed("https://example.com/anything"))
}

func TestPathAllowed(t *testing.T) {
	s, err := NewBuilder().
		SetHost("example.com").
		SetQPS(2).
		SetFilter("^/(blog|news)/").
		SetCatalogDir(t.TempDir()).
		Build()
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.pathAllowed("https://example.com/blog/a"))
	assert.True(t, s.pathAllowed("https://example.com/news/today"))
	assert.False(t, s.pathAllowed("https://example.com/"))
	assert.False(t, s.pathAllowed("https://example.com/wp-admin"))
}

func TestAbsoluteURL(t *testing.T) {
	s, err := NewBuilder().
		SetHost("example.com").
		SetQPS(2).
		SetCatalogDir(t.TempDir()).
		Build()
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "https://example.com/x", s.absoluteURL("/x"))
	assert.Equal(t, "https://example.com/x", s.absoluteURL("x"))
	assert.Equal(t, "https://other.com/y", s.absoluteURL("//other.com/y"))
	assert.Equal(t, "http://example.com/z", s.absoluteURL("http://example.com/z"))
	assert.Equal(t, "https://example.com/z", s.absoluteURL("https://example.com/z"))
}
