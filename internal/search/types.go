// Package search implements the search orchestrator (spec C6): strategy
// selection, reciprocal-rank-fusion merge, post-filtering, entity-graph
// augmentation, and reranking over the observation index.
package search

import "github.com/jalfaro/engramd/internal/store"

// Strategy selects how candidates are gathered before filtering and
// reranking (spec §4.6).
type Strategy string

const (
	StrategyFilterOnly Strategy = "filter-only"
	StrategySemantic   Strategy = "semantic"
	StrategyHybrid     Strategy = "hybrid"
)

// Query is the full set of search parameters the orchestrator accepts.
type Query struct {
	Text     string
	Project  string
	Strategy Strategy
	Limit    int

	Types            []string
	MinImportance    int
	MaxImportance    int
	After            string
	Before           string
	Concepts         []string
	Files            []string
	IncludeSuperseded bool

	UseEntityGraph bool
	GraphDepth     int
}

// Result is one scored hit returned to the caller.
type Result struct {
	Observation store.ObservationIndexEntry `json:"observation"`
	Score       float64                     `json:"score"`
	Source      string                      `json:"source"`
}
