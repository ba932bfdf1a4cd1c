package validation

// Option applies a configuration option to the ListValidator.
type Option func(*ListValidator)

// WithLists sets the initial reference lists.
func WithLists(set *ListSet) Option {
	return func(v *ListValidator) {
		if set != nil {
			v.lists = set
		}
	}
}

// WithThreshold sets the fuzzy matching strictness in [0,1].
// 1.0 disables fuzzy matching entirely.
func WithThreshold(threshold float64) Option {
	return func(v *ListValidator) {
		if threshold >= 0 && threshold <= 1 {
			v.threshold = threshold
		}
	}
}

// WithCaseSensitive controls whether exact matches honor letter case.
func WithCaseSensitive(caseSensitive bool) Option {
	return func(v *ListValidator) {
		v.caseSensitive = caseSensitive
	}
}

// WithMaxSuggestions caps the suggestions returned for invalid values.
func WithMaxSuggestions(n int) Option {
	return func(v *ListValidator) {
		if n > 0 {
			v.maxSuggestions = n
		}
	}
}
