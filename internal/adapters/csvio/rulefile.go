package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/LinkesAuge/chestbuddy/internal/domain/correction"
	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
)

// ruleHeader is the canonical rules CSV header.
var ruleHeader = []string{"From", "To", "Field", "Enabled"}

// ReadRuleFile reads correction rules from a CSV with columns
// From,To,Field,Enabled. Field may be empty (rule applies to every field)
// and Enabled defaults to true. Unlike chest data, a rules file is curated
// configuration, so any malformed row fails the whole read. A missing file
// is an empty rule set.
func ReadRuleFile(path string) ([]correction.Rule, error) {
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

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cols := map[string]int{}
	for i, cell := range header {
		name := strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(cell, "\uFEFF")))
		cols[name] = i
	}
	fromIdx, ok := cols["FROM"]
	if !ok {
		return nil, fmt.Errorf("%w: From", ErrMissingColumn)
	}
	toIdx, ok := cols["TO"]
	if !ok {
		return nil, fmt.Errorf("%w: To", ErrMissingColumn)
	}
	fieldIdx, hasField := cols["FIELD"]
	enabledIdx, hasEnabled := cols["ENABLED"]

	var rules []correction.Rule
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rules, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadRuleRow, path, err)
		}
		if blankRow(row) {
			continue
		}

		line, _ := cr.FieldPos(0)
		rule := correction.Rule{Enabled: true}
		rule.From = cell(row, fromIdx)
		rule.To = cell(row, toIdx)
		if rule.From == "" {
			return nil, fmt.Errorf("%w: %s line %d: empty From", ErrBadRuleRow, path, line)
		}

		if hasField {
			field, err := parseRuleField(cell(row, fieldIdx))
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %d: %v", ErrBadRuleRow, path, line, err)
			}
			rule.Field = field
		}
		if hasEnabled {
			enabled, err := parseRuleEnabled(cell(row, enabledIdx))
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %d: %v", ErrBadRuleRow, path, line, err)
			}
			rule.Enabled = enabled
		}
		rules = append(rules, rule)
	}
}

// WriteRuleFile writes correction rules atomically as UTF-8 CSV. Rule IDs
// are runtime-only and not persisted.
func WriteRuleFile(path string, rules []correction.Rule) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	if err := cw.Write(ruleHeader); err != nil {
		tmp.Close()
		return err
	}
	for _, rule := range rules {
		row := []string{rule.From, rule.To, string(rule.Field), strconv.FormatBool(rule.Enabled)}
		if err := cw.Write(row); err != nil {
			tmp.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
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

// cell reads a trimmed cell, empty when the row is short.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseRuleField accepts the model field names plus human spellings like
// "Chest Type". Empty means the rule applies to every field.
func parseRuleField(s string) (model.Field, error) {
	if s == "" {
		return "", nil
	}
	normalized := strings.ReplaceAll(strings.ToLower(s), " ", "_")
	return model.ParseField(normalized)
}

// parseRuleEnabled accepts bool spellings plus yes/no. Empty means enabled.
func parseRuleEnabled(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "":
		return true, nil
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(s)
}
