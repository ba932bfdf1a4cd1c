// Package validation defines the contract for checking chest records
// against reference lists of known-good values (players, chest types,
// sources). Values that miss an exact match may still pass via fuzzy
// matching with configurable strictness.
package validation

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
)

// Default validation configuration constants.
const (
	defaultThreshold      = 0.85
	defaultMaxSuggestions = 5
)

// Suggestion is a close list entry offered for an invalid value.
type Suggestion struct {
	Value      string  `json:"value"`
	Similarity float64 `json:"similarity"`
}

// FieldResult is the outcome for a single list-validated field.
type FieldResult struct {
	Field       model.Field  `json:"field"`
	Value       string       `json:"value"`
	Valid       bool         `json:"valid"`
	Fuzzy       bool         `json:"fuzzy,omitempty"`       // passed only via fuzzy match
	Match       string       `json:"match,omitempty"`       // list entry matched when fuzzy
	Suggestions []Suggestion `json:"suggestions,omitempty"` // closest entries when invalid
}

// Result is the outcome of validating one record.
type Result struct {
	RecordID string        `json:"record_id"`
	Valid    bool          `json:"valid"`
	Fields   []FieldResult `json:"fields"`
}

// Summary aggregates a batch validation pass.
type Summary struct {
	Checked      int                 `json:"checked"`
	Valid        int                 `json:"valid"`
	Invalid      int                 `json:"invalid"`
	FuzzyMatches int                 `json:"fuzzy_matches"`
	ByField      map[model.Field]int `json:"by_field"` // invalid counts per field
	Duration     time.Duration       `json:"-"`
}

// Validator checks records against the configured reference lists.
type Validator interface {
	// Validate checks one record and updates its validation state.
	Validate(ctx context.Context, rec *model.Record) Result

	// ValidateAll checks a batch of records, honoring ctx between records.
	ValidateAll(ctx context.Context, recs []*model.Record) Summary

	// Suggest returns the closest list entries for a value.
	Suggest(field model.Field, value string) []Suggestion

	// ReplaceLists atomically swaps the reference lists.
	ReplaceLists(set *ListSet)

	// Lists returns the current reference lists.
	Lists() *ListSet
}

// ListValidator implements Validator with in-memory reference lists.
type ListValidator struct {
	mu             sync.RWMutex
	lists          *ListSet
	threshold      float64
	caseSensitive  bool
	maxSuggestions int
}

// New creates a list validator with configuration options.
func New(opts ...Option) *ListValidator {
	v := &ListValidator{
		lists:          NewListSet(),
		threshold:      defaultThreshold,
		maxSuggestions: defaultMaxSuggestions,
	}

	// Apply all options
	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate checks one record and updates its validation state.
func (v *ListValidator) Validate(_ context.Context, rec *model.Record) Result {
	v.mu.RLock()
	lists, threshold, caseSensitive := v.lists, v.threshold, v.caseSensitive
	v.mu.RUnlock()

	res := Result{RecordID: rec.ID, Valid: true}
	var invalid []model.Field
	for _, field := range model.Fields() {
		fr := checkField(lists, field, rec.FieldValue(field), threshold, caseSensitive, v.maxSuggestions)
		if !fr.Valid {
			res.Valid = false
			invalid = append(invalid, field)
		}
		res.Fields = append(res.Fields, fr)
	}

	if res.Valid {
		rec.Validation = model.ValidationState{Status: model.StatusValid}
	} else {
		rec.Validation = model.ValidationState{Status: model.StatusInvalid, Fields: invalid}
	}
	return res
}

// ValidateAll checks a batch of records, honoring ctx between records.
func (v *ListValidator) ValidateAll(ctx context.Context, recs []*model.Record) Summary {
	start := time.Now()
	summary := Summary{ByField: make(map[model.Field]int)}
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		res := v.Validate(ctx, rec)
		summary.Checked++
		if res.Valid {
			summary.Valid++
		} else {
			summary.Invalid++
		}
		for _, fr := range res.Fields {
			if fr.Fuzzy {
				summary.FuzzyMatches++
			}
			if !fr.Valid {
				summary.ByField[fr.Field]++
			}
		}
	}
	summary.Duration = time.Since(start)
	return summary
}

// Suggest returns the closest list entries for a value, best first.
func (v *ListValidator) Suggest(field model.Field, value string) []Suggestion {
	v.mu.RLock()
	lists, caseSensitive := v.lists, v.caseSensitive
	v.mu.RUnlock()

	return suggest(lists, field, value, caseSensitive, v.maxSuggestions)
}

// ReplaceLists atomically swaps the reference lists. Concurrent Validate
// calls see either the old or the new set, never a mix.
func (v *ListValidator) ReplaceLists(set *ListSet) {
	if set == nil {
		set = NewListSet()
	}
	v.mu.Lock()
	v.lists = set
	v.mu.Unlock()
}

// Lists returns the current reference lists.
func (v *ListValidator) Lists() *ListSet {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lists
}

// checkField validates a single value against one list.
func checkField(lists *ListSet, field model.Field, value string, threshold float64, caseSensitive bool, maxSuggestions int) FieldResult {
	fr := FieldResult{Field: field, Value: value}

	// Empty optional values and empty lists validate vacuously.
	if value == "" || lists.Len(field) == 0 {
		fr.Valid = true
		return fr
	}

	if _, ok := lists.Contains(field, value, caseSensitive); ok {
		fr.Valid = true
		return fr
	}

	// Fuzzy pass: threshold 1.0 means exact-only.
	if threshold < 1.0 {
		if match, sim := bestMatch(lists, field, value, caseSensitive); sim >= threshold {
			fr.Valid = true
			fr.Fuzzy = true
			fr.Match = match
			return fr
		}
	}

	fr.Suggestions = suggest(lists, field, value, caseSensitive, maxSuggestions)
	return fr
}

// bestMatch returns the list entry with the highest similarity to value.
func bestMatch(lists *ListSet, field model.Field, value string, caseSensitive bool) (string, float64) {
	var (
		best    string
		bestSim = -1.0
	)
	for _, entry := range lists.entries[field] {
		sim := similarity(value, entry, caseSensitive)
		if sim > bestSim {
			best, bestSim = entry, sim
		}
	}
	return best, bestSim
}

// suggest returns up to max entries ranked by similarity, best first;
// ties break alphabetically for stable output.
func suggest(lists *ListSet, field model.Field, value string, caseSensitive bool, max int) []Suggestion {
	entries := lists.entries[field]
	if len(entries) == 0 || value == "" || max <= 0 {
		return nil
	}

	ranked := make([]Suggestion, 0, len(entries))
	for _, entry := range entries {
		ranked = append(ranked, Suggestion{
			Value:      entry,
			Similarity: similarity(value, entry, caseSensitive),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		return ranked[i].Value < ranked[j].Value
	})
	if len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}

// similarity maps levenshtein distance to [0,1]; 1 means identical.
func similarity(a, b string, caseSensitive bool) float64 {
	if !caseSensitive {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	if a == b {
		return 1.0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}
