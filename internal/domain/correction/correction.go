// Package correction defines the contract for normalizing chest record
// values via configured find/replace rules. A rule maps one exact field
// value to its canonical form; rules may be scoped to a single field or
// apply to every list-validated field.
package correction

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
)

// Rule is a configured find/replace mapping.
type Rule struct {
	ID      string      `json:"id"`
	From    string      `json:"from"`
	To      string      `json:"to"`
	Field   model.Field `json:"field,omitempty"` // empty applies to all fields
	Enabled bool        `json:"enabled"`
}

// Change records one applied or previewed replacement.
type Change struct {
	RecordID string      `json:"record_id"`
	Field    model.Field `json:"field"`
	From     string      `json:"from"`
	To       string      `json:"to"`
	RuleID   string      `json:"rule_id"`
}

// Summary aggregates a batch correction pass.
type Summary struct {
	Records  int            `json:"records"` // records touched
	Changes  int            `json:"changes"` // total replacements
	ByRule   map[string]int `json:"by_rule"` // hits per rule id
	Duration time.Duration  `json:"-"`
}

// Corrector applies configured rules to chest records.
type Corrector interface {
	// Apply rewrites one record in place and returns the changes made.
	Apply(ctx context.Context, rec *model.Record) []Change

	// ApplyAll rewrites a batch, honoring ctx between records.
	ApplyAll(ctx context.Context, recs []*model.Record) (Summary, []Change)

	// Preview reports the changes ApplyAll would make without mutating.
	Preview(ctx context.Context, recs []*model.Record) []Change

	// Rules returns a copy of the configured rules in order.
	Rules() []Rule

	// SetRules replaces the rule set.
	SetRules(rules []Rule)

	// Add validates a rule, assigns it an ID and appends it.
	Add(rule Rule) (Rule, error)

	// Update replaces the rule with the given id.
	Update(id string, rule Rule) (Rule, error)

	// Remove deletes the rule with the given id.
	Remove(id string) error
}

// RuleCorrector implements Corrector with an in-memory rule set.
type RuleCorrector struct {
	mu              sync.RWMutex
	rules           []Rule
	caseInsensitive bool
}

// New creates a rule corrector with configuration options.
func New(opts ...Option) *RuleCorrector {
	c := &RuleCorrector{}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Apply rewrites one record in place and returns the changes made.
// Rules are scanned in order and re-scanned after each hit so chains
// (A→B, B→C) converge in a single pass; a seen-value guard breaks
// cyclic rule sets. A corrected record drops back to pending
// validation so the caller can re-validate it.
func (c *RuleCorrector) Apply(_ context.Context, rec *model.Record) []Change {
	c.mu.RLock()
	rules, caseInsensitive := c.rules, c.caseInsensitive
	c.mu.RUnlock()

	var changes []Change
	for _, field := range model.Fields() {
		steps := chase(rules, field, rec.FieldValue(field), caseInsensitive)
		for _, s := range steps {
			changes = append(changes, Change{
				RecordID: rec.ID,
				Field:    field,
				From:     s.from,
				To:       s.to,
				RuleID:   s.ruleID,
			})
			rec.SetFieldValue(field, s.to)
			rec.Correction.Applied = append(rec.Correction.Applied, model.AppliedCorrection{
				Field:  field,
				From:   s.from,
				To:     s.to,
				RuleID: s.ruleID,
			})
		}
	}

	if len(changes) > 0 {
		rec.Correction.Status = model.CorrectionApplied
		rec.Validation = model.ValidationState{Status: model.StatusPending}
	}
	return changes
}

// ApplyAll rewrites a batch, honoring ctx between records.
func (c *RuleCorrector) ApplyAll(ctx context.Context, recs []*model.Record) (Summary, []Change) {
	start := time.Now()
	summary := Summary{ByRule: make(map[string]int)}
	var all []Change
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		changes := c.Apply(ctx, rec)
		if len(changes) == 0 {
			continue
		}
		summary.Records++
		summary.Changes += len(changes)
		for _, ch := range changes {
			summary.ByRule[ch.RuleID]++
		}
		all = append(all, changes...)
	}
	summary.Duration = time.Since(start)
	return summary, all
}

// Preview reports the changes ApplyAll would make without mutating.
func (c *RuleCorrector) Preview(ctx context.Context, recs []*model.Record) []Change {
	c.mu.RLock()
	rules, caseInsensitive := c.rules, c.caseInsensitive
	c.mu.RUnlock()

	var all []Change
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		for _, field := range model.Fields() {
			for _, s := range chase(rules, field, rec.FieldValue(field), caseInsensitive) {
				all = append(all, Change{
					RecordID: rec.ID,
					Field:    field,
					From:     s.from,
					To:       s.to,
					RuleID:   s.ruleID,
				})
			}
		}
	}
	return all
}

// Rules returns a copy of the configured rules in order.
func (c *RuleCorrector) Rules() []Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// SetRules replaces the rule set. Rules without an ID get one assigned.
func (c *RuleCorrector) SetRules(rules []Rule) {
	next := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		next = append(next, r)
	}

	c.mu.Lock()
	c.rules = next
	c.mu.Unlock()
}

// Add validates a rule, assigns it an ID and appends it.
func (c *RuleCorrector) Add(rule Rule) (Rule, error) {
	if err := validate(rule); err != nil {
		return Rule{}, err
	}
	rule.ID = uuid.NewString()

	c.mu.Lock()
	c.rules = append(c.rules, rule)
	c.mu.Unlock()
	return rule, nil
}

// Update replaces the rule with the given id, keeping its position.
func (c *RuleCorrector) Update(id string, rule Rule) (Rule, error) {
	if err := validate(rule); err != nil {
		return Rule{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.rules {
		if r.ID == id {
			rule.ID = id
			c.rules[i] = rule
			return rule, nil
		}
	}
	return Rule{}, ErrRuleNotFound
}

// Remove deletes the rule with the given id.
func (c *RuleCorrector) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, r := range c.rules {
		if r.ID == id {
			c.rules = append(c.rules[:i], c.rules[i+1:]...)
			return nil
		}
	}
	return ErrRuleNotFound
}

// step is one replacement in a chain.
type step struct {
	from   string
	to     string
	ruleID string
}

// chase follows matching rules from value to a fixpoint. Each hit
// restarts the scan from the first rule; values already produced in
// this chain never recur, which terminates cyclic rule sets.
func chase(rules []Rule, field model.Field, value string, caseInsensitive bool) []step {
	if value == "" {
		return nil
	}

	var steps []step
	seen := map[string]struct{}{value: {}}
	for range rules {
		fired := false
		for _, r := range rules {
			if !r.Enabled || r.From == r.To {
				continue
			}
			if r.Field != "" && r.Field != field {
				continue
			}
			if !matches(r.From, value, caseInsensitive) {
				continue
			}
			if _, loop := seen[r.To]; loop {
				return steps
			}
			steps = append(steps, step{from: value, to: r.To, ruleID: r.ID})
			value = r.To
			seen[value] = struct{}{}
			fired = true
			break
		}
		if !fired {
			break
		}
	}
	return steps
}

// matches reports whether a rule's From equals the value.
func matches(from, value string, caseInsensitive bool) bool {
	if caseInsensitive {
		return strings.EqualFold(from, value)
	}
	return from == value
}

// validate rejects rules that could never apply meaningfully.
func validate(rule Rule) error {
	if strings.TrimSpace(rule.From) == "" {
		return ErrEmptyFrom
	}
	if rule.Field != "" {
		if _, err := model.ParseField(string(rule.Field)); err != nil {
			return err
		}
	}
	return nil
}
