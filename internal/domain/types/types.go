// Package types contains common types used across the application
package types

// Entry represents a player leaderboard entry
type Entry struct {
	Rank   int    `json:"rank"`
	Player string `json:"player"`
	Total  int    `json:"total"`
	Chests int    `json:"chests"`
}

// ChartPoint is one labeled slice of a chart series, e.g. one chest
// type, one source, or one day.
type ChartPoint struct {
	Label string `json:"label"`
	Count int    `json:"count"`
	Total int    `json:"total"`
}

// ChartSeries is a named data series ready for rendering by a client.
type ChartSeries struct {
	Kind   string       `json:"kind"`
	Points []ChartPoint `json:"points"`
}
