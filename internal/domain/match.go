package domain

import "time"

// MatchResult is the score of one (candidate, vacancy) pair. Never persisted.
type MatchResult struct {
	CandidateID       string
	VacancyID         string
	OverallScore      float64
	CategoryScores    map[Category]float64
	MissingCategories []Category
}

// Ranking is the outcome of one ranking call.
type Ranking struct {
	CandidateID string
	Matches     []MatchResult
	// TotalFound counts pairs at or above the minimum score before truncation to topK.
	TotalFound int
	// Skipped counts pairs excluded because no score was computable.
	Skipped int
	Weights WeightSet
	Elapsed time.Duration
}
