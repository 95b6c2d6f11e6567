package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ConsoleSink prints records to a writer, optionally pretty-printed as JSON.
type ConsoleSink struct {
	out    io.Writer
	pretty bool
}

// NewConsoleSink writes to stdout. pretty enables indented JSON output.
func NewConsoleSink(pretty bool) *ConsoleSink {
	return &ConsoleSink{
		out:    os.Stdout,
		pretty: pretty,
	}
}

// Write implements Sink.
func (c *ConsoleSink) Write(record any) error {
	if c.pretty {
		b, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.out, string(b))
		return err
	}
	_, err := fmt.Fprintln(c.out, record)
	return err
}

// Close implements Sink; console output needs no cleanup.
func (c *ConsoleSink) Close() error { return nil }
