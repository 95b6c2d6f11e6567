// Package cache provides the optional response cache: a content-addressed
// compressed blob store keyed by URL.
package cache

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
)

// Cache stores fetched bodies keyed by URL. A miss is not an error: Read
// reports ok=false.
type Cache interface {
	Read(key string) (data []byte, ok bool, err error)
	Write(key string, value []byte) error
}

// Codec compresses values before storage. Brotli is the default; the
// interface exists so another codec can sit behind the same Read/Write shape.
type Codec interface {
	Encode(b []byte) ([]byte, error)
	Decode(b []byte) ([]byte, error)
}

// BrotliCodec compresses with brotli at the default quality.
type BrotliCodec struct{}

// Encode implements Codec.
func (BrotliCodec) Encode(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode implements Codec.
func (BrotliCodec) Decode(b []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(b)))
}
