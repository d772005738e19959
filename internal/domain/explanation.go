package domain

// ExplanationRequest is the score breakdown handed to the explanation model.
type ExplanationRequest struct {
	CandidateID    string
	VacancyID      string
	CategoryScores map[Category]float64
	OverallScore   float64
}

// Explanation is the answer returned for a (candidate, vacancy) pair.
type Explanation struct {
	Match       MatchResult
	Text        string
	KeyFactors  []string
	Suggestions []string
	// Fallback is set when the model was unavailable and Text was generated locally.
	Fallback bool
}
