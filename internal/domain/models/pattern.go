package models

// OptimizationPattern is a retrieval corpus entry. The core only reads these.
type OptimizationPattern struct {
	ID          int64            `json:"id"`
	Category    StrategyCategory `json:"category"`
	Name        string           `json:"pattern_name"`
	Description string           `json:"description"`
	CodeExample string           `json:"code_example"`
	Embedding   []float32        `json:"-"`
}

// RankedPattern is a pattern together with its 1-based position in one
// ranked candidate list.
type RankedPattern struct {
	Pattern *OptimizationPattern
	Rank    int
	Score   float64
}
