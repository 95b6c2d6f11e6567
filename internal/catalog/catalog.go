// Package catalog stores the URLs queued for a single host in an embedded
// ordered key/value store with a persisted resume cursor.
//
// Keys are laid out as host + "\x00" + path[?query]. Two sentinel keys frame
// the host's range: host+"\x00" below every real key and host+"\x01" above
// them, so range iteration never leaks into another host's entries.
package catalog

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/buntdb"

	"stream-scraper/internal/errors"
)

// DefaultDir is the conventional location of the embedded store.
const DefaultDir = "./.rocksdb"

const cursorSuffix = ":cursor"

// Catalog is a host-scoped persistent URL set. It is single-writer from the
// engine's perspective; processes sharing one store must use distinct hosts.
type Catalog struct {
	db    *buntdb.DB
	host  string
	owned bool

	lower string
	upper string
}

// Open creates or opens the catalog for host under dir (DefaultDir when
// empty). The sentinels are written on open; rewriting them is harmless.
func Open(host, dir string) (*Catalog, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewStorageError("open catalog", err)
	}
	db, err := buntdb.Open(filepath.Join(dir, "catalog.db"))
	if err != nil {
		return nil, errors.NewStorageError("open catalog", err)
	}
	c := &Catalog{
		db:    db,
		host:  host,
		owned: true,
		lower: host + "\x00",
		upper: host + "\x01",
	}
	err = db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(c.lower, "", nil); err != nil {
			return err
		}
		_, _, err := tx.Set(c.upper, "", nil)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.NewStorageError("write sentinels", err)
	}
	return c, nil
}

// Host returns the host this catalog is scoped to.
func (c *Catalog) Host() string { return c.host }

// Lower returns the lower sentinel key.
func (c *Catalog) Lower() string { return c.lower }

// Upper returns the upper sentinel key.
func (c *Catalog) Upper() string { return c.upper }

// KeyFor computes the catalog key for a URL. The host comes from the catalog,
// not from the URL: the path defaults to "/" and the query is kept verbatim.
// An empty query adds no "?".
func (c *Catalog) KeyFor(raw string) string {
	path, query := splitURL(raw)
	tail := path
	if query != "" {
		tail += "?" + query
	}
	return c.lower + tail
}

func splitURL(raw string) (path, query string) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		// unparseable input still gets a deterministic key
		return "/", ""
	}
	path = u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return path, u.RawQuery
}

// Add normalizes url and inserts it. Adding the same path+query twice keeps a
// single entry.
func (c *Catalog) Add(raw string) error {
	raw = strings.TrimSpace(raw)
	key := c.KeyFor(raw)
	err := c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, raw, nil)
		return err
	})
	if err != nil {
		return errors.NewStorageError("add url", err)
	}
	return nil
}

// Delete removes exactly the entry keyed by url, if present.
func (c *Catalog) Delete(raw string) error {
	key := c.KeyFor(raw)
	err := c.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return errors.NewStorageError("delete url", err)
	}
	return nil
}

// Iterate walks the host's range in ascending key order starting at fromKey
// (the lower sentinel when empty). The lower sentinel itself is skipped;
// iteration stops at the upper sentinel, at the first key outside the host
// prefix, or when fn returns false.
func (c *Catalog) Iterate(fromKey string, fn func(key, url string) bool) error {
	if fromKey == "" {
		fromKey = c.lower
	}
	err := c.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendGreaterOrEqual("", fromKey, func(key, value string) bool {
			if key == c.lower {
				return true
			}
			if key >= c.upper || !strings.HasPrefix(key, c.lower) {
				return false
			}
			return fn(key, value)
		})
	})
	if err != nil {
		return errors.NewStorageError("iterate", err)
	}
	return nil
}

// SetCursor persists key as the resume marker. An empty key resets the
// cursor to the lower sentinel. The stored key is the last COMPLETED one;
// resuming seeks strictly past it.
func (c *Catalog) SetCursor(key string) error {
	if key == "" {
		key = c.lower
	}
	err := c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(c.host+cursorSuffix, key, nil)
		return err
	})
	if err != nil {
		return errors.NewStorageError("set cursor", err)
	}
	return nil
}

// Cursor returns the persisted resume marker, or the lower sentinel when
// none was set.
func (c *Catalog) Cursor() (string, error) {
	var cur string
	err := c.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(c.host + cursorSuffix)
		if err == buntdb.ErrNotFound {
			cur = c.lower
			return nil
		}
		if err != nil {
			return err
		}
		cur = v
		return nil
	})
	if err != nil {
		return "", errors.NewStorageError("get cursor", err)
	}
	return cur, nil
}

// Total counts the entries in the host's range. O(N); advisory, used by the
// progress display.
func (c *Catalog) Total() int {
	n := 0
	_ = c.Iterate("", func(string, string) bool {
		n++
		return true
	})
	return n
}

// CurrentIndex returns the ordinal of the cursor within the host's range,
// i.e. how many entries precede the resume point. O(N); advisory.
func (c *Catalog) CurrentIndex() int {
	cur, err := c.Cursor()
	if err != nil || cur == c.lower {
		return 0
	}
	n := 0
	_ = c.Iterate("", func(key, _ string) bool {
		if key > cur {
			return false
		}
		n++
		return true
	})
	return n
}

// Close releases the underlying store when this catalog owns it.
func (c *Catalog) Close() error {
	if !c.owned || c.db == nil {
		return nil
	}
	return c.db.Close()
}
