package sink

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scrapererrors "stream-scraper/internal/errors"
)

func readSinkFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.TrimPrefix(string(b), "\ufeff")
}

func TestFileSinkWritesCSVWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := NewFileSink(path)
	require.NoError(t, s.Write(map[string]any{"url": "https://a.com/x", "title": "X"}))
	require.NoError(t, s.Write(map[string]any{"url": "https://a.com/y", "title": "Y"}))
	require.NoError(t, s.Close())

	r := csv.NewReader(strings.NewReader(readSinkFile(t, path)))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// header comes from the first record's keys, sorted
	assert.Equal(t, []string{"title", "url"}, rows[0])
	assert.Equal(t, []string{"X", "https://a.com/x"}, rows[1])
	assert.Equal(t, []string{"Y", "https://a.com/y"}, rows[2])
}

func TestFileSinkAcceptsSliceOfMaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := NewFileSink(path)
	require.NoError(t, s.Write([]map[string]any{
		{"k": "1"},
		{"k": "2"},
	}))
	require.NoError(t, s.Close())

	r := csv.NewReader(strings.NewReader(readSinkFile(t, path)))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"k"}, {"1"}, {"2"}}, rows)
}

func TestFileSinkWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	s := NewFileSink(path)
	require.NoError(t, s.Write([]string{"a", "b"}))
	require.NoError(t, s.Write("plain"))
	require.NoError(t, s.Close())

	lines := strings.Split(strings.TrimSpace(readSinkFile(t, path)), "\n")
	assert.Equal(t, []string{`["a","b"]`, `"plain"`}, lines)
}

func TestFileSinkRefusesMixedModes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := NewFileSink(path)
	require.NoError(t, s.Write(map[string]any{"k": "v"}))
	err := s.Write("not a map")
	assert.ErrorIs(t, err, scrapererrors.ErrInvalidSinkState)

	// the other direction fails the same way
	s2 := NewFileSink(filepath.Join(t.TempDir(), "out2.csv"))
	require.NoError(t, s2.Write("line"))
	err = s2.Write(map[string]any{"k": "v"})
	assert.ErrorIs(t, err, scrapererrors.ErrInvalidSinkState)
	require.NoError(t, s.Close())
	require.NoError(t, s2.Close())
}

func TestFileSinkStringMaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := NewFileSink(path)
	require.NoError(t, s.Write(map[string]string{"b": "2", "a": "1"}))
	require.NoError(t, s.Close())

	r := csv.NewReader(strings.NewReader(readSinkFile(t, path)))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}}, rows)
}

func TestFileSinkMissingColumnsAreEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := NewFileSink(path)
	require.NoError(t, s.Write(map[string]any{"a": "1", "b": "2"}))
	require.NoError(t, s.Write(map[string]any{"a": "3"}))
	require.NoError(t, s.Close())

	r := csv.NewReader(strings.NewReader(readSinkFile(t, path)))
	rows, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"3", ""}, rows[2])
}

func TestCloseWithoutWriteIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.csv")
	s := NewFileSink(path)
	require.NoError(t, s.Close())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
