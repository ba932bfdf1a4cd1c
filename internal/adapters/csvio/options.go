package csvio

// ReaderOption applies a configuration option to a Reader.
type ReaderOption func(*Reader)

// WithChunkSize sets how many records each ReadChunk call yields.
func WithChunkSize(size int) ReaderOption {
	return func(r *Reader) {
		if size > 0 {
			r.chunkSize = size
		}
	}
}

// WithComma sets the field delimiter, for semicolon-separated exports.
func WithComma(comma rune) ReaderOption {
	return func(r *Reader) {
		if comma != 0 {
			r.comma = comma
		}
	}
}

// WithMaxRowErrors sets how many malformed rows are tolerated before the
// read is abandoned.
func WithMaxRowErrors(limit int) ReaderOption {
	return func(r *Reader) {
		if limit > 0 {
			r.maxRowErrors = limit
		}
	}
}

// WriterOption applies a configuration option to a Writer.
type WriterOption func(*Writer)

// WithBOM prefixes the output with a UTF-8 byte order mark, which Excel
// needs to pick up umlauts in player names.
func WithBOM(enabled bool) WriterOption {
	return func(w *Writer) {
		w.bom = enabled
	}
}

// WithCRLF terminates rows with \r\n instead of \n.
func WithCRLF(enabled bool) WriterOption {
	return func(w *Writer) {
		w.crlf = enabled
	}
}
