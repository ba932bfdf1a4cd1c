package csvio

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReadListFile reads a validation list: one entry per line, blank lines and
// #-comments skipped, any supported encoding. A missing file is an empty
// list, not an error, so a fresh install validates nothing until lists are
// provided.
func ReadListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoded, _, err := NewDecodingReader(f)
	if err != nil {
		return nil, err
	}

	var entries []string
	scanner := bufio.NewScanner(decoded)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return entries, nil
}

// WriteListFile writes a validation list atomically as UTF-8, one entry per
// line. Atomic replacement keeps the list watcher from hot-reloading a
// half-written file.
func WriteListFile(path string, entries []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, entry := range entries {
		if _, err := w.WriteString(entry + "\n"); err != nil {
			tmp.Close()
			return err
		}
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
