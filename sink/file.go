package sink

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"stream-scraper/internal/errors"
)

type fileMode int

const (
	modeUnset fileMode = iota
	modeCSV
	modeJSON
)

// FileSink writes mapping records as CSV rows (header taken from the first
// record's keys) and everything else as JSON lines. The two cannot be mixed
// within one file. The file opens lazily on the first write and stays open
// until Close.
type FileSink struct {
	path string

	file    *os.File
	writer  *csv.Writer
	headers []string
	mode    fileMode
}

// NewFileSink creates a sink writing to path. Parent directories are created
// as needed.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (f *FileSink) open() error {
	if f.file != nil {
		return nil
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(f.path)
	if err != nil {
		return err
	}
	// BOM so spreadsheet tools detect UTF-8
	if _, err := file.WriteString("\ufeff"); err != nil {
		file.Close()
		return err
	}
	f.file = file
	return nil
}

// Write appends one record. Accepted shapes: a map with string keys, a slice
// of such maps, or any other JSON-serializable value (written as one JSON
// line). Mixing CSV maps and JSON lines returns ErrInvalidSinkState.
func (f *FileSink) Write(record any) error {
	if err := f.open(); err != nil {
		return err
	}
	switch rec := record.(type) {
	case map[string]string:
		m := make(map[string]any, len(rec))
		for k, v := range rec {
			m[k] = v
		}
		return f.writeRow(m)
	case map[string]any:
		return f.writeRow(rec)
	case []map[string]string:
		for _, r := range rec {
			if err := f.Write(r); err != nil {
				return err
			}
		}
		return nil
	case []map[string]any:
		for _, r := range rec {
			if err := f.writeRow(r); err != nil {
				return err
			}
		}
		return nil
	default:
		return f.writeJSONLine(record)
	}
}

func (f *FileSink) writeRow(rec map[string]any) error {
	if f.mode == modeJSON {
		return errors.ErrInvalidSinkState
	}
	if f.mode == modeUnset {
		f.mode = modeCSV
		f.writer = csv.NewWriter(f.file)
		f.headers = make([]string, 0, len(rec))
		for k := range rec {
			f.headers = append(f.headers, k)
		}
		sort.Strings(f.headers)
		if err := f.writer.Write(f.headers); err != nil {
			return err
		}
	}
	row := make([]string, len(f.headers))
	for i, h := range f.headers {
		if v, ok := rec[h]; ok && v != nil {
			row[i] = fmt.Sprint(v)
		}
	}
	if err := f.writer.Write(row); err != nil {
		return err
	}
	f.writer.Flush()
	return f.writer.Error()
}

func (f *FileSink) writeJSONLine(record any) error {
	if f.mode == modeCSV {
		return errors.ErrInvalidSinkState
	}
	f.mode = modeJSON
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := f.file.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}

// Close flushes and closes the file.
func (f *FileSink) Close() error {
	if f.file == nil {
		return nil
	}
	if f.writer != nil {
		f.writer.Flush()
		if err := f.writer.Error(); err != nil {
			f.file.Close()
			return err
		}
	}
	err := f.file.Close()
	f.file = nil
	f.writer = nil
	f.mode = modeUnset
	f.headers = nil
	return err
}
