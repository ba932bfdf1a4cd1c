package csvio

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"unicode/utf16"
)

// utf16Bytes encodes s as UTF-16 with a BOM.
func utf16Bytes(s string, bigEndian bool) []byte {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, 0, 2+len(units)*2)
	if bigEndian {
		buf = append(buf, 0xFE, 0xFF)
	} else {
		buf = append(buf, 0xFF, 0xFE)
	}
	for _, u := range units {
		if bigEndian {
			buf = append(buf, byte(u>>8), byte(u))
		} else {
			buf = append(buf, byte(u), byte(u>>8))
		}
	}
	return buf
}

func decodeAll(t *testing.T, input []byte) (string, Encoding) {
	t.Helper()
	r, enc, err := NewDecodingReader(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	return string(out), enc
}

func TestDecodingReader_UTF8(t *testing.T) {
	text := "Date,Player Name\n2023-03-11,Feldjäger\n"

	out, enc := decodeAll(t, []byte(text))
	if enc != EncodingUTF8 {
		t.Errorf("expected %s, got %s", EncodingUTF8, enc)
	}
	if out != text {
		t.Errorf("expected %q, got %q", text, out)
	}
}

func TestDecodingReader_UTF8BOM(t *testing.T) {
	text := "2023-03-11,Feldjäger\n"
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte(text)...)

	out, enc := decodeAll(t, input)
	if enc != EncodingUTF8BOM {
		t.Errorf("expected %s, got %s", EncodingUTF8BOM, enc)
	}
	if out != text {
		t.Errorf("expected BOM stripped, got %q", out)
	}
}

func TestDecodingReader_UTF16(t *testing.T) {
	text := "2023-03-11,Feldjäger\n"

	out, enc := decodeAll(t, utf16Bytes(text, false))
	if enc != EncodingUTF16LE {
		t.Errorf("expected %s, got %s", EncodingUTF16LE, enc)
	}
	if out != text {
		t.Errorf("expected %q, got %q", text, out)
	}

	out, enc = decodeAll(t, utf16Bytes(text, true))
	if enc != EncodingUTF16BE {
		t.Errorf("expected %s, got %s", EncodingUTF16BE, enc)
	}
	if out != text {
		t.Errorf("expected %q, got %q", text, out)
	}
}

func TestDecodingReader_Windows1252(t *testing.T) {
	// "ä" as the single byte 0xE4, invalid as UTF-8
	input := []byte("2023-03-11,Feldj\xe4ger\n")

	out, enc := decodeAll(t, input)
	if enc != EncodingWindows1252 {
		t.Errorf("expected %s, got %s", EncodingWindows1252, enc)
	}
	if out != "2023-03-11,Feldjäger\n" {
		t.Errorf("expected decoded umlaut, got %q", out)
	}
}

func TestDecodingReader_EmptyInput(t *testing.T) {
	out, enc := decodeAll(t, nil)
	if enc != EncodingUTF8 {
		t.Errorf("expected %s, got %s", EncodingUTF8, enc)
	}
	if out != "" {
		t.Errorf("expected empty output, got %q", out)
	}
}

func TestDecodingReader_RuneCutAtWindowBoundary(t *testing.T) {
	// Fill the sniff window so it ends mid-way through a two-byte rune.
	// The input is valid UTF-8 and must not fall back to Windows-1252.
	text := strings.Repeat("a", sniffSize-1) + "äää"

	out, enc := decodeAll(t, []byte(text))
	if enc != EncodingUTF8 {
		t.Errorf("expected %s, got %s", EncodingUTF8, enc)
	}
	if out != text {
		t.Errorf("expected input passed through, got %d bytes", len(out))
	}
}

func TestLooksUTF8(t *testing.T) {
	cases := []struct {
		name  string
		input []byte
		want  bool
	}{
		{"ascii", []byte("hello"), true},
		{"umlauts", []byte("Feldjäger"), true},
		{"empty", nil, true},
		{"latin1 byte", []byte{'F', 0xE4, 'g'}, false},
		{"truncated rune at end", []byte{'a', 0xC3}, true},
		{"bare continuation byte", []byte{0x80}, false},
	}

	for _, tc := range cases {
		if got := looksUTF8(tc.input); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
