package validation

import (
	"sort"
	"strings"

	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
)

// ListSet is an immutable snapshot of the three reference lists with
// lookup maps precomputed. Mutating operations return a new set so a
// swap via Validator.ReplaceLists stays safe under concurrent reads.
type ListSet struct {
	entries map[model.Field][]string
	exact   map[model.Field]map[string]struct{}
	folded  map[model.Field]map[string]string // lower(entry) -> canonical entry
}

// NewListSet creates an empty list set.
func NewListSet() *ListSet {
	return &ListSet{
		entries: make(map[model.Field][]string),
		exact:   make(map[model.Field]map[string]struct{}),
		folded:  make(map[model.Field]map[string]string),
	}
}

// WithEntries returns a copy of the set with the list for field replaced.
// Entries are trimmed and de-duplicated preserving first occurrence order.
func (s *ListSet) WithEntries(field model.Field, entries []string) *ListSet {
	next := s.clone()

	clean := make([]string, 0, len(entries))
	exact := make(map[string]struct{}, len(entries))
	folded := make(map[string]string, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, dup := exact[e]; dup {
			continue
		}
		clean = append(clean, e)
		exact[e] = struct{}{}
		lower := strings.ToLower(e)
		if _, ok := folded[lower]; !ok {
			folded[lower] = e
		}
	}

	next.entries[field] = clean
	next.exact[field] = exact
	next.folded[field] = folded
	return next
}

// WithEntry returns a copy of the set with one entry appended.
// Adding an existing entry returns an equivalent set.
func (s *ListSet) WithEntry(field model.Field, entry string) *ListSet {
	return s.WithEntries(field, append(s.Entries(field), entry))
}

// WithoutEntry returns a copy of the set with one entry removed.
func (s *ListSet) WithoutEntry(field model.Field, entry string) *ListSet {
	entry = strings.TrimSpace(entry)
	kept := make([]string, 0, len(s.entries[field]))
	for _, e := range s.entries[field] {
		if e != entry {
			kept = append(kept, e)
		}
	}
	return s.WithEntries(field, kept)
}

// Entries returns a copy of the list for field in original order.
func (s *ListSet) Entries(field model.Field) []string {
	src := s.entries[field]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// SortedEntries returns a copy of the list for field in alphabetical order.
func (s *ListSet) SortedEntries(field model.Field) []string {
	out := s.Entries(field)
	sort.Strings(out)
	return out
}

// Contains reports whether value matches a list entry exactly, honoring
// case sensitivity, and returns the canonical entry it matched.
func (s *ListSet) Contains(field model.Field, value string, caseSensitive bool) (string, bool) {
	value = strings.TrimSpace(value)
	if caseSensitive {
		if _, ok := s.exact[field][value]; ok {
			return value, true
		}
		return "", false
	}
	canonical, ok := s.folded[field][strings.ToLower(value)]
	return canonical, ok
}

// Len returns the number of entries in the list for field.
func (s *ListSet) Len(field model.Field) int {
	return len(s.entries[field])
}

// Total returns the number of entries across all lists.
func (s *ListSet) Total() int {
	n := 0
	for _, field := range model.Fields() {
		n += len(s.entries[field])
	}
	return n
}

// clone makes a shallow copy sharing untouched per-field maps.
func (s *ListSet) clone() *ListSet {
	next := NewListSet()
	for f, e := range s.entries {
		next.entries[f] = e
	}
	for f, m := range s.exact {
		next.exact[f] = m
	}
	for f, m := range s.folded {
		next.folded[f] = m
	}
	return next
}
