package csvio

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
)

func sampleRecords(t *testing.T) []model.Record {
	t.Helper()
	rows := [][]string{
		{"2023-03-11", "Feldjäger", "Level 25 Crypt", "Fire Chest", "275", "MY_CLAN"},
		{"2023-03-12", "Krümelmonster", "Arena", "Rare Dragon Chest", "510", "MY_CLAN"},
	}
	recs := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := model.ParseRow(row)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		recs = append(recs, rec)
	}
	return recs
}

func TestWriter_RoundTrip(t *testing.T) {
	recs := sampleRecords(t)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteAll(recs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, rowErrs, err := r.ReadAll(context.Background())
	if err != nil || len(rowErrs) != 0 {
		t.Fatalf("round trip failed: %d row errors, err %v", len(rowErrs), err)
	}
	if len(got) != len(recs) {
		t.Fatalf("expected %d records, got %d", len(recs), len(got))
	}
	for i := range recs {
		if got[i].ContentKey() != recs[i].ContentKey() {
			t.Errorf("record %d changed in round trip: %q vs %q", i, got[i].ContentKey(), recs[i].ContentKey())
		}
	}
}

func TestWriter_BOMAndCRLF(t *testing.T) {
	recs := sampleRecords(t)

	var buf bytes.Buffer
	w := NewWriter(&buf, WithBOM(true), WithCRLF(true))
	if err := w.WriteAll(recs[:1]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.Bytes()
	if !bytes.HasPrefix(out, bomUTF8) {
		t.Error("expected output to start with a UTF-8 BOM")
	}
	if !bytes.Contains(out, []byte("\r\n")) {
		t.Error("expected CRLF row endings")
	}

	// The BOM output must read back cleanly.
	r, err := NewReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Encoding() != EncodingUTF8BOM {
		t.Errorf("expected utf-8-sig, got %s", r.Encoding())
	}
}

func TestWriter_EmptyExportStillHasHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Flush(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	if line != strings.Join(Header(), ",") {
		t.Errorf("expected lone header row, got %q", line)
	}
}

func TestWriteFile(t *testing.T) {
	recs := sampleRecords(t)
	path := filepath.Join(t.TempDir(), "export.csv")

	if err := WriteFile(path, recs, WithBOM(true)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(data, bomUTF8) {
		t.Error("expected BOM in written file")
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the export in the directory, got %d entries", len(entries))
	}
}
