// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format for chest dates, e.g. "2023-03-11".
const DateLayout = "2006-01-02"

// rowFieldCount is the number of columns in a chest data row.
const rowFieldCount = 6

// Date is a day-granularity timestamp that marshals as "2006-01-02".
type Date struct {
	time.Time
}

// ParseDate parses a date in DateLayout form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to day granularity in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// String renders the date in DateLayout form.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON renders the date as a quoted DateLayout string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// UnmarshalJSON parses a quoted DateLayout string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, b)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Field identifies a list-validated column of a chest record.
type Field string

// List-validated fields.
const (
	FieldPlayer    Field = "player"
	FieldChestType Field = "chest_type"
	FieldSource    Field = "source"
)

// Fields returns all list-validated fields in column order.
func Fields() []Field {
	return []Field{FieldPlayer, FieldChestType, FieldSource}
}

// ParseField parses a list-validated field name.
func ParseField(s string) (Field, error) {
	switch Field(strings.TrimSpace(strings.ToLower(s))) {
	case FieldPlayer:
		return FieldPlayer, nil
	case FieldChestType:
		return FieldChestType, nil
	case FieldSource:
		return FieldSource, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
	}
}

// ValidationStatus tracks whether a record passed reference-list validation.
type ValidationStatus string

// Validation statuses.
const (
	StatusPending ValidationStatus = "pending"
	StatusValid   ValidationStatus = "valid"
	StatusInvalid ValidationStatus = "invalid"
)

// CorrectionStatus tracks whether correction rules touched a record.
type CorrectionStatus string

// Correction statuses.
const (
	CorrectionNone    CorrectionStatus = "none"
	CorrectionApplied CorrectionStatus = "corrected"
)

// ValidationState is the per-record outcome of the last validation pass.
type ValidationState struct {
	Status ValidationStatus `json:"status"`
	Fields []Field          `json:"fields,omitempty"` // fields that failed
}

// AppliedCorrection records a single rule application on a record.
type AppliedCorrection struct {
	Field  Field  `json:"field"`
	From   string `json:"from"`
	To     string `json:"to"`
	RuleID string `json:"rule_id"`
}

// CorrectionState is the per-record history of applied correction rules.
type CorrectionState struct {
	Status  CorrectionStatus    `json:"status"`
	Applied []AppliedCorrection `json:"applied,omitempty"`
}

// Record represents one chest reward event imported from CSV.
// Columns mirror the canonical header:
// Date,Player Name,Source/Location,Chest Type,Value,Clan.
type Record struct {
	ID         string          `json:"id"`         // unique id assigned at ingest
	Date       Date            `json:"date"`       // day the chest was opened
	Player     string          `json:"player"`     // player name, may be non-ASCII
	Source     string          `json:"source"`     // source/location, e.g. "Level 25 Crypt"
	ChestType  string          `json:"chest_type"` // e.g. "Fire Chest"
	Value      int             `json:"value"`      // chest value, never negative
	Clan       string          `json:"clan"`       // clan tag
	Validation ValidationState `json:"validation"`
	Correction CorrectionState `json:"correction"`
}

// ParseRow builds a Record from one CSV row in canonical column order.
// Fields are trimmed; the record gets a fresh ID and pending status.
func ParseRow(row []string) (Record, error) {
	if len(row) != rowFieldCount {
		return Record{}, fmt.Errorf("%w: got %d", ErrFieldCount, len(row))
	}
	date, err := ParseDate(row[0])
	if err != nil {
		return Record{}, err
	}
	player := strings.TrimSpace(row[1])
	if player == "" {
		return Record{}, ErrMissingPlayer
	}
	source := strings.TrimSpace(row[2])
	chestType := strings.TrimSpace(row[3])
	if chestType == "" {
		return Record{}, ErrMissingChestType
	}
	value, err := strconv.Atoi(strings.TrimSpace(row[4]))
	if err != nil {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidValue, row[4])
	}
	if value < 0 {
		return Record{}, fmt.Errorf("%w: %d", ErrInvalidValue, value)
	}
	return Record{
		ID:         uuid.NewString(),
		Date:       date,
		Player:     player,
		Source:     source,
		ChestType:  chestType,
		Value:      value,
		Clan:       strings.TrimSpace(row[5]),
		Validation: ValidationState{Status: StatusPending},
		Correction: CorrectionState{Status: CorrectionNone},
	}, nil
}

// Row renders the record back to canonical CSV column order.
func (r Record) Row() []string {
	return []string{
		r.Date.String(),
		r.Player,
		r.Source,
		r.ChestType,
		strconv.Itoa(r.Value),
		r.Clan,
	}
}

// ContentKey is the content identity of a record used for duplicate
// detection. Validation and correction status are not part of identity.
func (r Record) ContentKey() string {
	return strings.Join(r.Row(), "|")
}

// FieldValue returns the current value of a list-validated field.
func (r Record) FieldValue(f Field) string {
	switch f {
	case FieldPlayer:
		return r.Player
	case FieldChestType:
		return r.ChestType
	case FieldSource:
		return r.Source
	default:
		return ""
	}
}

// SetFieldValue overwrites a list-validated field.
func (r *Record) SetFieldValue(f Field, v string) {
	switch f {
	case FieldPlayer:
		r.Player = v
	case FieldChestType:
		r.ChestType = v
	case FieldSource:
		r.Source = v
	}
}

// CellEdits is a sparse set of field updates applied to a stored record.
// Nil members leave the field untouched.
type CellEdits struct {
	Date      *Date
	Player    *string
	Source    *string
	ChestType *string
	Value     *int
	Clan      *string
}

// Empty reports whether the edit set changes nothing.
func (e CellEdits) Empty() bool {
	return e.Date == nil && e.Player == nil && e.Source == nil &&
		e.ChestType == nil && e.Value == nil && e.Clan == nil
}

// Apply writes the edits onto a record, enforcing the same field rules as
// ParseRow. The record is untouched when an edit is invalid.
func (e CellEdits) Apply(r *Record) error {
	next := *r
	if e.Player != nil {
		player := strings.TrimSpace(*e.Player)
		if player == "" {
			return ErrMissingPlayer
		}
		next.Player = player
	}
	if e.ChestType != nil {
		chestType := strings.TrimSpace(*e.ChestType)
		if chestType == "" {
			return ErrMissingChestType
		}
		next.ChestType = chestType
	}
	if e.Value != nil {
		if *e.Value < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidValue, *e.Value)
		}
		next.Value = *e.Value
	}
	if e.Date != nil {
		next.Date = *e.Date
	}
	if e.Source != nil {
		next.Source = strings.TrimSpace(*e.Source)
	}
	if e.Clan != nil {
		next.Clan = strings.TrimSpace(*e.Clan)
	}
	*r = next
	return nil
}

// PlayerTotal captures a player's accumulated chest value used for ranking.
type PlayerTotal struct {
	Player string
	Total  int
	Chests int
}
