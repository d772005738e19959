// Package similarity computes per-category cosine similarity and the weighted
// aggregate score of a candidate/vacancy pair. Everything here is pure.
package similarity

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// Vectors maps a category to the entity's vector for it. Absent keys mean the category is missing.
type Vectors map[domain.Category]domain.Vector

// Breakdown is the score of a pair without entity identifiers.
type Breakdown struct {
	Overall        float64
	CategoryScores map[domain.Category]float64
	Missing        []domain.Category
}

// Cosine returns dot(a,b) / (|a|*|b|).
// Zero-norm vectors, vectors of different length and non-finite input yield 0.
func Cosine(a, b domain.Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	r := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(r) {
		return 0
	}
	return clamp(r)
}

// Score combines per-category similarities into Σ w·sim / Σ w over categories present on both sides.
// Returns domain.ErrInsufficientData when no shared category carries weight.
func Score(candidate, vacancy Vectors, weights domain.WeightSet) (Breakdown, error) {
	b := Breakdown{CategoryScores: make(map[domain.Category]float64, len(domain.AllCategories))}

	var num, den float64
	for _, c := range domain.AllCategories {
		cv, okC := candidate[c]
		vv, okV := vacancy[c]
		if !okC || !okV {
			b.Missing = append(b.Missing, c)
			continue
		}
		sim := Cosine(cv, vv)
		b.CategoryScores[c] = sim
		w := weights.Of(c)
		num += w * sim
		den += w
	}

	if len(b.CategoryScores) == 0 {
		return Breakdown{}, fmt.Errorf("no shared category: %w", domain.ErrInsufficientData)
	}
	if den == 0 {
		return Breakdown{}, fmt.Errorf("shared categories carry zero weight: %w", domain.ErrInsufficientData)
	}

	b.Overall = clamp(num / den)
	return b, nil
}

// ScorePair is Score with the pair identifiers filled into a MatchResult.
func ScorePair(
	candidateID, vacancyID string, candidate, vacancy Vectors, weights domain.WeightSet,
) (domain.MatchResult, error) {
	b, err := Score(candidate, vacancy, weights)
	if err != nil {
		return domain.MatchResult{}, err
	}
	return domain.MatchResult{
		CandidateID:       candidateID,
		VacancyID:         vacancyID,
		OverallScore:      b.Overall,
		CategoryScores:    b.CategoryScores,
		MissingCategories: b.Missing,
	}, nil
}

// FromEmbeddings groups an entity's stored embeddings by category.
func FromEmbeddings(embs []domain.CategoryEmbedding) Vectors {
	v := make(Vectors, len(embs))
	for _, e := range embs {
		v[e.Category] = e.Vector
	}
	return v
}

func clamp(x float64) float64 {
	switch {
	case x > 1:
		return 1
	case x < -1:
		return -1
	default:
		return x
	}
}
