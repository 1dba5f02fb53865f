package roster

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// QuoteStyle controls how Writer quotes fields.
type QuoteStyle int

const (
	// QuoteNecessary quotes only fields that need it (encoding/csv rules).
	QuoteNecessary QuoteStyle = iota
	// QuoteAlways wraps every field, header included, in double quotes.
	QuoteAlways
)

// Writer writes roster rows under a fixed header.
type Writer struct {
	header []string
	style  QuoteStyle
	csv    *csv.Writer
	buf    *bufio.Writer
	closer io.Closer
}

// NewWriter writes header to w and returns a Writer for the rows.
func NewWriter(w io.Writer, header []string, style QuoteStyle) (*Writer, error) {
	wr := &Writer{header: header, style: style}
	if style == QuoteAlways {
		wr.buf = bufio.NewWriter(w)
	} else {
		wr.csv = csv.NewWriter(w)
	}
	if err := wr.writeRecord(header); err != nil {
		return nil, fmt.Errorf("failed to write roster header: %w", err)
	}
	return wr, nil
}

// Create creates (or truncates) path and returns a Writer on it.
// Close must be called to flush and release the file.
func Create(path string, header []string, style QuoteStyle) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create roster %s: %w", path, err)
	}
	wr, err := NewWriter(f, header, style)
	if err != nil {
		f.Close()
		return nil, err
	}
	wr.closer = f
	return wr, nil
}

// Write appends one row.
func (w *Writer) Write(r Row) error {
	return w.writeRecord(r.Record(w.header))
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.csv != nil {
		w.csv.Flush()
		return w.csv.Error()
	}
	return w.buf.Flush()
}

// Close flushes and closes the underlying file if the Writer owns one.
func (w *Writer) Close() error {
	flushErr := w.Flush()
	if w.closer != nil {
		if err := w.closer.Close(); err != nil && flushErr == nil {
			return err
		}
	}
	return flushErr
}

func (w *Writer) writeRecord(record []string) error {
	if w.csv != nil {
		return w.csv.Write(record)
	}

	for i, field := range record {
		if i > 0 {
			if err := w.buf.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.buf.WriteString(`"` + strings.ReplaceAll(field, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	_, err := w.buf.WriteString("\n")
	return err
}
