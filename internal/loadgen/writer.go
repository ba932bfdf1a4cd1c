package loadgen

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/csvio"
	"github.com/LinkesAuge/chestbuddy/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// WriteFixture writes rows to path as CSV in the configured encoding.
// Windows-1252 output substitutes the few runes the codepage cannot
// carry, which is exactly what legacy exports do.
func WriteFixture(ctx context.Context, path string, rows []Row, enc string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create fixture directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create fixture file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close fixture file", logger.Error(err))
		}
	}()

	var out io.Writer = file
	switch enc {
	case "", EncodingUTF8:
	case EncodingUTF8BOM:
		if _, err := file.Write(bomUTF8); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	case EncodingCP1252:
		out = encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()).Writer(file)
	default:
		return fmt.Errorf("unknown encoding %q", enc)
	}

	w := csv.NewWriter(out)
	if err := w.Write(csvio.Header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range rows {
		if err := w.Write(row.cells()); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush fixture: %w", err)
	}

	logger.Get().Info(ctx, "fixture written",
		logger.String("path", path),
		logger.Int("rows", len(rows)),
		logger.String("encoding", encodingName(enc)))
	return nil
}

func encodingName(enc string) string {
	if enc == "" {
		return EncodingUTF8
	}
	return enc
}
