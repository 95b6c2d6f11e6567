package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
)

// DiskCache stores one compressed file per URL under <dir>/.cache_html,
// named by the hex SHA-1 digest of the URL with a ".br" extension.
type DiskCache struct {
	dir   string
	codec Codec
}

// NewDiskCache creates the cache directory under baseDir ("." when empty).
func NewDiskCache(baseDir string) (*DiskCache, error) {
	if baseDir == "" {
		baseDir = "."
	}
	dir := filepath.Join(baseDir, ".cache_html")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{
		dir:   dir,
		codec: BrotliCodec{},
	}, nil
}

func (d *DiskCache) path(key string) string {
	digest := sha1.Sum([]byte(key))
	return filepath.Join(d.dir, hex.EncodeToString(digest[:])+".br")
}

// Write compresses value and stores it for key, overwriting any previous
// entry.
func (d *DiskCache) Write(key string, value []byte) error {
	enc, err := d.codec.Encode(value)
	if err != nil {
		return err
	}
	return os.WriteFile(d.path(key), enc, 0o644)
}

// Read returns the decompressed body for key, or ok=false on a miss.
func (d *DiskCache) Read(key string) ([]byte, bool, error) {
	b, err := os.ReadFile(d.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	dec, err := d.codec.Decode(b)
	if err != nil {
		return nil, false, err
	}
	return dec, true, nil
}
