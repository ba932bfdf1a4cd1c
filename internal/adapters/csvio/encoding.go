// Package csvio reads and writes chest data CSV files. Inbound files come
// from browser exports and OCR tools with inconsistent encodings, so every
// reader goes through encoding detection before CSV parsing; outbound files
// are always UTF-8.
package csvio

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names the character encoding detected on a reader.
type Encoding string

// Detected encodings, in sniff order.
const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingUTF8BOM     Encoding = "utf-8-sig"
	EncodingUTF16LE     Encoding = "utf-16le"
	EncodingUTF16BE     Encoding = "utf-16be"
	EncodingWindows1252 Encoding = "windows-1252"
)

// sniffSize is how many bytes are inspected to classify the encoding.
const sniffSize = 4096

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// NewDecodingReader wraps r so it yields UTF-8 regardless of the source
// encoding. Detection runs in three stages: a BOM decides outright, then a
// window of the input is checked for UTF-8 validity, and anything else is
// treated as Windows-1252 (which decodes any byte sequence, so detection
// never fails on content).
func NewDecodingReader(r io.Reader) (io.Reader, Encoding, error) {
	br := bufio.NewReaderSize(r, sniffSize)
	window, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, "", err
	}

	switch {
	case bytes.HasPrefix(window, bomUTF8):
		if _, err := br.Discard(len(bomUTF8)); err != nil {
			return nil, "", err
		}
		return br, EncodingUTF8BOM, nil
	case bytes.HasPrefix(window, bomUTF16LE):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		return transform.NewReader(br, dec), EncodingUTF16LE, nil
	case bytes.HasPrefix(window, bomUTF16BE):
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		return transform.NewReader(br, dec), EncodingUTF16BE, nil
	}

	if looksUTF8(window) {
		return br, EncodingUTF8, nil
	}
	return transform.NewReader(br, charmap.Windows1252.NewDecoder()), EncodingWindows1252, nil
}

// looksUTF8 reports whether the sniff window is valid UTF-8. A multibyte
// rune cut at the end of the window still counts as valid.
func looksUTF8(b []byte) bool {
	for len(b) > 0 {
		if !utf8.FullRune(b) {
			return len(b) < utf8.UTFMax
		}
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			return false
		}
		b = b[size:]
	}
	return true
}
