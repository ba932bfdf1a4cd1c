package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
)

// Writer writes chest records as UTF-8 CSV with the canonical header.
type Writer struct {
	csv     *csv.Writer
	out     io.Writer
	bom     bool
	crlf    bool
	started bool
}

// NewWriter creates a writer on top of out with configuration options.
func NewWriter(out io.Writer, opts ...WriterOption) *Writer {
	w := &Writer{out: out}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	w.csv = csv.NewWriter(out)
	w.csv.UseCRLF = w.crlf
	return w
}

// start emits the BOM and header row before the first record.
func (w *Writer) start() error {
	if w.started {
		return nil
	}
	w.started = true

	if w.bom {
		if _, err := w.out.Write(bomUTF8); err != nil {
			return err
		}
	}
	return w.csv.Write(Header())
}

// Write appends one record, emitting the header first when needed.
func (w *Writer) Write(rec model.Record) error {
	if err := w.start(); err != nil {
		return err
	}
	return w.csv.Write(rec.Row())
}

// WriteAll appends a batch of records.
func (w *Writer) WriteAll(recs []model.Record) error {
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered rows through, emitting the header even when no
// records were written so an empty export is still a valid CSV.
func (w *Writer) Flush() error {
	if err := w.start(); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

// WriteFile writes records to path atomically: the file appears complete
// or not at all, never half-written.
func WriteFile(path string, recs []model.Record, opts ...WriterOption) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := NewWriter(tmp, opts...)
	if err := w.WriteAll(recs); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
