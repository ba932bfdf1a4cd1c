package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
)

// Default reader configuration values.
const (
	// DefaultChunkSize is how many records a single ReadChunk call yields.
	DefaultChunkSize = 200

	// DefaultMaxRowErrors is how many malformed rows are tolerated before
	// the whole read is abandoned as a wrong-file import.
	DefaultMaxRowErrors = 100
)

// column indexes the canonical chest data columns.
type column int

const (
	colDate column = iota
	colPlayer
	colSource
	colChest
	colValue
	colClan
	numColumns
)

// columnAliases maps normalized header cells to canonical columns. Files in
// the wild carry several header dialects; matching is case-insensitive.
var columnAliases = map[string]column{
	"DATE":            colDate,
	"PLAYER":          colPlayer,
	"PLAYER NAME":     colPlayer,
	"SOURCE":          colSource,
	"SOURCE/LOCATION": colSource,
	"LOCATION":        colSource,
	"CHEST":           colChest,
	"CHEST TYPE":      colChest,
	"TYPE":            colChest,
	"VALUE":           colValue,
	"SCORE":           colValue,
	"CLAN":            colClan,
}

// columnNames are the canonical header cells, used for export and for
// naming missing columns in errors.
var columnNames = [numColumns]string{
	"Date", "Player Name", "Source/Location", "Chest Type", "Value", "Clan",
}

// Header returns the canonical CSV header row.
func Header() []string {
	return append([]string(nil), columnNames[:]...)
}

// RowError describes one row that could not be turned into a record.
type RowError struct {
	Line int      `json:"line"`
	Row  []string `json:"row,omitempty"`
	Err  error    `json:"-"`
}

// Message renders the row error for reporting.
func (e RowError) Message() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Stats summarizes what a reader has consumed so far.
type Stats struct {
	Rows      int      `json:"rows"`      // data rows turned into records
	Malformed int      `json:"malformed"` // rows rejected with a RowError
	Encoding  Encoding `json:"encoding"`
}

// Reader reads chest data CSV input in chunks of records. It detects the
// source encoding, maps the header row to the canonical columns and parses
// each data row into a model.Record, collecting per-row errors instead of
// failing the whole file.
type Reader struct {
	csv          *csv.Reader
	closer       io.Closer
	encoding     Encoding
	cols         [numColumns]int
	comma        rune
	chunkSize    int
	maxRowErrors int
	rows         int
	malformed    int
}

// NewReader wraps src, detects its encoding and consumes the header row.
// It fails if the header is missing or lacks a required column.
func NewReader(src io.Reader, opts ...ReaderOption) (*Reader, error) {
	decoded, enc, err := NewDecodingReader(src)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		encoding:     enc,
		chunkSize:    DefaultChunkSize,
		maxRowErrors: DefaultMaxRowErrors,
	}

	// Apply all options
	for _, opt := range opts {
		opt(r)
	}

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if r.comma != 0 {
		cr.Comma = r.comma
	}
	r.csv = cr

	if err := r.readHeader(); err != nil {
		return nil, err
	}
	return r, nil
}

// OpenFile opens path for chunked reading. The returned reader owns the
// file handle; callers must Close it.
func OpenFile(path string, opts ...ReaderOption) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// readHeader consumes the first row and maps it onto the canonical columns.
func (r *Reader) readHeader() error {
	header, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return ErrNoHeader
	}
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}

	for i := range r.cols {
		r.cols[i] = -1
	}
	for i, cell := range header {
		name := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(cell, "\uFEFF")))
		if col, ok := columnAliases[name]; ok && r.cols[col] < 0 {
			r.cols[col] = i
		}
	}

	// Clan is optional, everything else must be present.
	for col := colDate; col < colClan; col++ {
		if r.cols[col] < 0 {
			return fmt.Errorf("%w: %s", ErrMissingColumn, columnNames[col])
		}
	}
	return nil
}

// ReadChunk returns up to the configured chunk size of records plus the
// row errors hit along the way. It returns io.EOF together with the final
// records once the input is exhausted, and ErrTooManyRowErrors when the
// malformed-row cap is crossed.
func (r *Reader) ReadChunk(ctx context.Context) ([]model.Record, []RowError, error) {
	var (
		recs    []model.Record
		rowErrs []RowError
	)

	for len(recs) < r.chunkSize {
		if err := ctx.Err(); err != nil {
			return recs, rowErrs, err
		}

		row, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			return recs, rowErrs, io.EOF
		}
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: lineOf(err, r.line()), Err: err})
			if r.tooManyErrors() {
				return recs, rowErrs, ErrTooManyRowErrors
			}
			continue
		}
		if blankRow(row) {
			continue
		}

		rec, err := model.ParseRow(r.project(row))
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: r.line(), Row: row, Err: err})
			if r.tooManyErrors() {
				return recs, rowErrs, ErrTooManyRowErrors
			}
			continue
		}

		recs = append(recs, rec)
		r.rows++
	}
	return recs, rowErrs, nil
}

// ReadAll drains the reader into a single slice.
func (r *Reader) ReadAll(ctx context.Context) ([]model.Record, []RowError, error) {
	var (
		recs    []model.Record
		rowErrs []RowError
	)
	for {
		chunk, errs, err := r.ReadChunk(ctx)
		recs = append(recs, chunk...)
		rowErrs = append(rowErrs, errs...)
		if errors.Is(err, io.EOF) {
			return recs, rowErrs, nil
		}
		if err != nil {
			return recs, rowErrs, err
		}
	}
}

// Stats reports what has been consumed so far.
func (r *Reader) Stats() Stats {
	return Stats{Rows: r.rows, Malformed: r.malformed, Encoding: r.encoding}
}

// Encoding returns the encoding detected on the input.
func (r *Reader) Encoding() Encoding {
	return r.encoding
}

// Line reports the 1-based input line of the most recently read row.
// With a chunk size of one this attributes each record to its line, the
// way RowError already does for rejected rows.
func (r *Reader) Line() int {
	return r.line()
}

// Close releases the underlying file when the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// project maps a raw row onto the canonical column order. Cells beyond the
// row's length read as empty, which lets short rows fail record validation
// with a precise field error instead of an index panic.
func (r *Reader) project(row []string) []string {
	out := make([]string, numColumns)
	for col, idx := range r.cols {
		if idx >= 0 && idx < len(row) {
			out[col] = row[idx]
		}
	}
	return out
}

// line reports the 1-based input line of the row read last.
func (r *Reader) line() int {
	line, _ := r.csv.FieldPos(0)
	return line
}

// tooManyErrors bumps the malformed counter and checks the cap.
func (r *Reader) tooManyErrors() bool {
	r.malformed++
	return r.malformed > r.maxRowErrors
}

// blankRow reports whether every cell is empty.
func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// lineOf pulls the line number from a csv parse error, falling back to the
// reader's own position.
func lineOf(err error, fallback int) int {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Line
	}
	return fallback
}
