package vecmatch

import (
	"time"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// Category is a profile comparison axis.
type Category string

// Category values.
const (
	Skills  Category = "skills"
	Career  Category = "career"
	Culture Category = "culture"
	Salary  Category = "salary"
)

// EntityType distinguishes candidates from vacancies.
type EntityType string

// Entity types.
const (
	Candidate EntityType = "candidate"
	Vacancy   EntityType = "vacancy"
)

// Weights maps each category to its non-negative weight.
type Weights map[Category]float64

// EmbedRequest asks for one category embedding of one entity.
type EmbedRequest struct {
	EntityID   string
	EntityType EntityType
	Category   Category
	Text       string
	Metadata   map[string]string
}

// Embedding is a stored category vector.
type Embedding struct {
	EntityID   string
	EntityType EntityType
	Category   Category
	Dimensions int
	CreatedAt  time.Time
}

// BatchResult is the outcome of one slot of EmbedBatch.
type BatchResult struct {
	Embedding Embedding
	Attempts  int
	Err       error
}

// RankOptions tune a ranking call. Zero values take the client defaults.
type RankOptions struct {
	// Pool limits ranking to these vacancies. Empty ranks every stored vacancy.
	Pool     []string
	TopK     int
	MinScore *float64
	Weights  Weights
}

// Match is the score of one vacancy.
type Match struct {
	VacancyID         string
	Score             float64
	CategoryScores    map[Category]float64
	MissingCategories []Category
}

// Ranking is the ordered match list of one candidate.
type Ranking struct {
	CandidateID string
	Matches     []Match
	TotalFound  int
	Skipped     int
	Weights     Weights
	Elapsed     time.Duration
}

// CandidateRanking is one item of RankBatch.
type CandidateRanking struct {
	Ranking Ranking
	Err     error
}

// Explanation is the rationale for one (candidate, vacancy) pair.
type Explanation struct {
	Score       float64
	Text        string
	KeyFactors  []string
	Suggestions []string
	Fallback    bool
}

func toDomainWeights(w Weights) (*domain.WeightSet, error) {
	if w == nil {
		return nil, nil
	}
	m := make(map[domain.Category]float64, len(w))
	for name, v := range w {
		c, err := domain.ParseCategory(string(name))
		if err != nil {
			return nil, err //nolint:wrapcheck // already carries ErrInvalidArgument
		}
		m[c] = v
	}
	ws, err := domain.NewWeightSet(m)
	if err != nil {
		return nil, err //nolint:wrapcheck // already carries ErrInvalidWeights
	}
	return &ws, nil
}

func fromDomainWeights(w domain.WeightSet) Weights {
	out := make(Weights, len(domain.AllCategories))
	for c, v := range w.Map() {
		out[Category(c.String())] = v
	}
	return out
}

func fromDomainScores(m map[domain.Category]float64) map[Category]float64 {
	out := make(map[Category]float64, len(m))
	for c, v := range m {
		out[Category(c.String())] = v
	}
	return out
}

func fromDomainRanking(r domain.Ranking) Ranking {
	matches := make([]Match, len(r.Matches))
	for i, m := range r.Matches {
		missing := make([]Category, len(m.MissingCategories))
		for j, c := range m.MissingCategories {
			missing[j] = Category(c.String())
		}
		matches[i] = Match{
			VacancyID:         m.VacancyID,
			Score:             m.OverallScore,
			CategoryScores:    fromDomainScores(m.CategoryScores),
			MissingCategories: missing,
		}
	}
	return Ranking{
		CandidateID: r.CandidateID,
		Matches:     matches,
		TotalFound:  r.TotalFound,
		Skipped:     r.Skipped,
		Weights:     fromDomainWeights(r.Weights),
		Elapsed:     r.Elapsed,
	}
}

func fromDomainEmbedding(e domain.CategoryEmbedding) Embedding {
	return Embedding{
		EntityID:   e.EntityID,
		EntityType: EntityType(e.EntityType),
		Category:   Category(e.Category.String()),
		Dimensions: len(e.Vector),
		CreatedAt:  e.CreatedAt,
	}
}
