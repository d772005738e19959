package explain

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/similarity"
)

const (
	maxKeyFactors      = 3
	keyFactorThreshold = 0.3
	weakThreshold      = 0.5
	maxSuggestions     = 5

	// DefaultBatchParallel bounds concurrent explanations in ExplainBatch.
	DefaultBatchParallel = 4
)

var factorNames = map[domain.Category]string{
	domain.CategorySkills:  "Technical skills",
	domain.CategoryCareer:  "Career experience",
	domain.CategoryCulture: "Cultural fit",
	domain.CategorySalary:  "Compensation expectations",
}

// Service explains a single candidate/vacancy match.
type Service struct {
	store     EntityReader
	weights   WeightsProvider
	explainer Explainer
	logger    *zap.Logger
}

// New creates an explanation service. A nil explainer always produces the local fallback.
func New(store EntityReader, weights WeightsProvider, explainer Explainer, logger *zap.Logger) *Service {
	return &Service{store: store, weights: weights, explainer: explainer, logger: logger}
}

// BuildRequest assembles the breakdown passed to the explanation model.
func BuildRequest(m domain.MatchResult) domain.ExplanationRequest {
	scores := make(map[domain.Category]float64, len(m.CategoryScores))
	for c, s := range m.CategoryScores {
		scores[c] = s
	}
	return domain.ExplanationRequest{
		CandidateID:    m.CandidateID,
		VacancyID:      m.VacancyID,
		CategoryScores: scores,
		OverallScore:   m.OverallScore,
	}
}

// Explain scores the pair with the current weights and asks the model for a rationale.
// Model failures degrade to a deterministic local explanation.
func (s *Service) Explain(ctx context.Context, candidateID, vacancyID string) (domain.Explanation, error) {
	cand, err := s.load(ctx, domain.EntityCandidate, candidateID)
	if err != nil {
		return domain.Explanation{}, err
	}
	vac, err := s.load(ctx, domain.EntityVacancy, vacancyID)
	if err != nil {
		return domain.Explanation{}, err
	}

	m, err := similarity.ScorePair(candidateID, vacancyID, cand, vac, s.weights.Get())
	if err != nil {
		return domain.Explanation{}, fmt.Errorf("score %s/%s: %w", candidateID, vacancyID, err)
	}

	req := BuildRequest(m)
	out := domain.Explanation{Match: m, KeyFactors: KeyFactors(req.CategoryScores)}

	if s.explainer == nil {
		return fallback(out, req), nil
	}
	text, err := s.explainer.Explain(ctx, req)
	if err != nil {
		s.logger.Warn("Explanation model failed, using fallback",
			zap.String("candidate_id", candidateID),
			zap.String("vacancy_id", vacancyID),
			zap.Error(err),
		)
		return fallback(out, req), nil
	}
	out.Text = text

	if weak := WeakCategories(req.CategoryScores); len(weak) > 0 {
		sugg, err := s.explainer.Suggest(ctx, weak)
		if err != nil {
			s.logger.Warn("Improvement suggestions failed", zap.Error(err))
		} else if len(sugg) > maxSuggestions {
			sugg = sugg[:maxSuggestions]
		}
		out.Suggestions = sugg
	}
	return out, nil
}

// Pair names one candidate/vacancy pair to explain.
type Pair struct {
	CandidateID string
	VacancyID   string
}

// BatchItem is the outcome of one pair in ExplainBatch. Err is set instead of Explanation
// when the pair cannot be scored at all.
type BatchItem struct {
	Pair        Pair
	Explanation domain.Explanation
	Err         error
}

// ExplainBatch explains several pairs concurrently. Each slot answers its own pair:
// a failing pair never aborts the others and model failures still fall back per item.
func (s *Service) ExplainBatch(ctx context.Context, pairs []Pair) []BatchItem {
	out := make([]BatchItem, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultBatchParallel)
	for i, p := range pairs {
		g.Go(func() error {
			e, err := s.Explain(gctx, p.CandidateID, p.VacancyID)
			out[i] = BatchItem{Pair: p, Explanation: e, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, it := range out {
		if it.Err != nil {
			failed++
		}
	}
	s.logger.Info("Explained batch",
		zap.Int("pairs", len(pairs)),
		zap.Int("failed", failed),
	)
	return out
}

func (s *Service) load(ctx context.Context, t domain.EntityType, id string) (similarity.Vectors, error) {
	embs, err := s.store.GetEntity(ctx, t, id)
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", t, id, err)
	}
	if len(embs) == 0 {
		return nil, fmt.Errorf("%s %s: %w", t, id, domain.ErrEntityNotFound)
	}
	return similarity.FromEmbeddings(embs), nil
}

// KeyFactors lists up to three best categories scoring above 0.3, best first.
func KeyFactors(scores map[domain.Category]float64) []string {
	cats := sortedByScore(scores)
	var out []string
	for _, c := range cats[:min(maxKeyFactors, len(cats))] {
		if scores[c] > keyFactorThreshold {
			out = append(out, fmt.Sprintf("%s (%.2f)", factorNames[c], scores[c]))
		}
	}
	return out
}

// WeakCategories lists categories scoring below 0.5 in category order.
func WeakCategories(scores map[domain.Category]float64) []domain.Category {
	var out []domain.Category
	for _, c := range domain.AllCategories {
		if s, ok := scores[c]; ok && s < weakThreshold {
			out = append(out, c)
		}
	}
	return out
}

func fallback(out domain.Explanation, req domain.ExplanationRequest) domain.Explanation {
	out.Fallback = true
	out.Suggestions = nil
	out.KeyFactors = []string{fmt.Sprintf("Overall score: %.2f", req.OverallScore)}

	cats := sortedByScore(req.CategoryScores)
	if len(cats) == 0 {
		out.Text = fmt.Sprintf("Overall match score %.2f.", req.OverallScore)
		return out
	}
	best := cats[0]
	quality := "a basic"
	switch s := req.CategoryScores[best]; {
	case s > 0.7:
		quality = "a good"
	case s > 0.5:
		quality = "a moderate"
	}
	out.Text = fmt.Sprintf("The candidate shows %s match with the vacancy (overall score %.2f). "+
		"The strongest overlap is in %s.", quality, req.OverallScore, lowerFirst(factorNames[best]))
	return out
}

// sortedByScore orders categories by score descending, ties in category order.
func sortedByScore(scores map[domain.Category]float64) []domain.Category {
	cats := make([]domain.Category, 0, len(scores))
	for _, c := range domain.AllCategories {
		if _, ok := scores[c]; ok {
			cats = append(cats, c)
		}
	}
	sort.SliceStable(cats, func(i, j int) bool { return scores[cats[i]] > scores[cats[j]] })
	return cats
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
