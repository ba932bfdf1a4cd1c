package correction

// Option configures a rule corrector.
type Option func(*RuleCorrector)

// WithRules sets the initial rule set in application order.
func WithRules(rules []Rule) Option {
	return func(c *RuleCorrector) {
		c.SetRules(rules)
	}
}

// WithCaseInsensitive makes rule matching ignore letter case.
func WithCaseInsensitive(enabled bool) Option {
	return func(c *RuleCorrector) {
		c.caseInsensitive = enabled
	}
}
