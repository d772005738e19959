package mcp

import (
	"math"
	"time"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	dombatch "github.com/kailas-cloud/vecmatch/internal/domain/batch"
	explainuc "github.com/kailas-cloud/vecmatch/internal/usecase/explain"
	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
	weightsuc "github.com/kailas-cloud/vecmatch/internal/usecase/weights"
)

type embeddingArgs struct {
	EntityID   string            `json:"entity_id"`
	EntityType string            `json:"entity_type"`
	Category   string            `json:"category"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type batchEmbeddingArgs struct {
	Embeddings []embeddingArgs `json:"embeddings"`
}

type matchArgs struct {
	CandidateID string                      `json:"candidate_id"`
	VacancyIDs  []string                    `json:"vacancy_ids,omitempty"`
	TopK        *int                        `json:"top_k,omitempty"`
	MinScore    *float64                    `json:"min_score,omitempty"`
	Weights     map[domain.Category]float64 `json:"weights,omitempty"`
}

type pairArgs struct {
	CandidateID string `json:"candidate_id"`
	VacancyID   string `json:"vacancy_id"`
}

type batchExplanationArgs struct {
	Pairs []pairArgs `json:"pairs"`
}

type weightsArgs struct {
	Weights   map[domain.Category]float64 `json:"weights"`
	UpdatedBy string                      `json:"updated_by,omitempty"`
}

type embeddingResult struct {
	EntityID   string    `json:"entity_id"`
	EntityType string    `json:"entity_type"`
	Category   string    `json:"category"`
	Dimensions int       `json:"dimensions"`
	CreatedAt  time.Time `json:"created_at"`
	Success    bool      `json:"success"`
}

type batchEmbeddingItem struct {
	Index     int              `json:"index"`
	Status    string           `json:"status"`
	Attempts  int              `json:"attempts"`
	Embedding *embeddingResult `json:"embedding,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type matchItem struct {
	VacancyID         string                      `json:"vacancy_id"`
	MatchScore        float64                     `json:"match_score"`
	CategoryScores    map[domain.Category]float64 `json:"category_scores"`
	MissingCategories []domain.Category           `json:"missing_categories,omitempty"`
}

type matchResult struct {
	CandidateID  string                      `json:"candidate_id"`
	Matches      []matchItem                 `json:"matches"`
	TotalFound   int                         `json:"total_found"`
	Skipped      int                         `json:"skipped"`
	SearchTimeMs float64                     `json:"search_time_ms"`
	WeightsUsed  map[domain.Category]float64 `json:"weights_used"`
}

type explanationResult struct {
	CandidateID            string                      `json:"candidate_id"`
	VacancyID              string                      `json:"vacancy_id"`
	MatchScore             float64                     `json:"match_score"`
	CategoryScores         map[domain.Category]float64 `json:"category_scores"`
	Explanation            string                      `json:"explanation"`
	KeyFactors             []string                    `json:"key_factors"`
	ImprovementSuggestions []string                    `json:"improvement_suggestions,omitempty"`
	Fallback               bool                        `json:"fallback"`
}

type batchExplanationItem struct {
	CandidateID string             `json:"candidate_id"`
	VacancyID   string             `json:"vacancy_id"`
	Status      string             `json:"status"`
	Result      *explanationResult `json:"result,omitempty"`
	Error       string             `json:"error,omitempty"`
}

type weightsResult struct {
	Success   bool                        `json:"success"`
	Message   string                      `json:"message"`
	Weights   map[domain.Category]float64 `json:"weights"`
	UpdatedAt time.Time                   `json:"updated_at"`
	UpdatedBy string                      `json:"updated_by,omitempty"`
}

type healthResult struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// toRequest parses the names the client sent.
func (a embeddingArgs) toRequest() (dombatch.Request, error) {
	t, err := domain.ParseEntityType(a.EntityType)
	if err != nil {
		return dombatch.Request{}, err //nolint:wrapcheck // already wraps ErrInvalidArgument
	}
	c, err := domain.ParseCategory(a.Category)
	if err != nil {
		return dombatch.Request{}, err //nolint:wrapcheck // already wraps ErrInvalidArgument
	}
	return dombatch.Request{
		EntityID:   a.EntityID,
		EntityType: t,
		Category:   c,
		Text:       a.Text,
		Metadata:   a.Metadata,
	}, nil
}

func embeddingToResult(e domain.CategoryEmbedding) embeddingResult {
	return embeddingResult{
		EntityID:   e.EntityID,
		EntityType: string(e.EntityType),
		Category:   e.Category.String(),
		Dimensions: len(e.Vector),
		CreatedAt:  e.CreatedAt,
		Success:    true,
	}
}

func rankingToResult(r domain.Ranking) matchResult {
	items := make([]matchItem, len(r.Matches))
	for i, m := range r.Matches {
		items[i] = matchItem{
			VacancyID:         m.VacancyID,
			MatchScore:        round4(m.OverallScore),
			CategoryScores:    roundScores(m.CategoryScores),
			MissingCategories: m.MissingCategories,
		}
	}
	return matchResult{
		CandidateID:  r.CandidateID,
		Matches:      items,
		TotalFound:   r.TotalFound,
		Skipped:      r.Skipped,
		SearchTimeMs: math.Round(float64(r.Elapsed.Microseconds())/10) / 100,
		WeightsUsed:  r.Weights.Map(),
	}
}

func explanationToResult(e domain.Explanation) explanationResult {
	factors := e.KeyFactors
	if factors == nil {
		factors = []string{}
	}
	return explanationResult{
		CandidateID:            e.Match.CandidateID,
		VacancyID:              e.Match.VacancyID,
		MatchScore:             round4(e.Match.OverallScore),
		CategoryScores:         roundScores(e.Match.CategoryScores),
		Explanation:            e.Text,
		KeyFactors:             factors,
		ImprovementSuggestions: e.Suggestions,
		Fallback:               e.Fallback,
	}
}

func batchExplanationToItem(it explainuc.BatchItem) batchExplanationItem {
	out := batchExplanationItem{
		CandidateID: it.Pair.CandidateID,
		VacancyID:   it.Pair.VacancyID,
		Status:      string(dombatch.StatusOK),
	}
	if it.Err != nil {
		out.Status = string(dombatch.StatusError)
		out.Error = clientMessage(it.Err)
		return out
	}
	res := explanationToResult(it.Explanation)
	out.Result = &res
	return out
}

func snapshotToResult(s weightsuc.Snapshot, msg string) weightsResult {
	return weightsResult{
		Success:   true,
		Message:   msg,
		Weights:   s.Weights.Map(),
		UpdatedAt: s.UpdatedAt,
		UpdatedBy: s.UpdatedBy,
	}
}

func reportToResult(r healthuc.Report, now time.Time) healthResult {
	services := make(map[string]string, len(r.Checks))
	for name, res := range r.Checks {
		services[name] = string(res)
	}
	return healthResult{
		Status:    string(r.Status),
		Version:   r.Version,
		Timestamp: now,
		Services:  services,
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func roundScores(m map[domain.Category]float64) map[domain.Category]float64 {
	out := make(map[domain.Category]float64, len(m))
	for c, v := range m {
		out[c] = round4(v)
	}
	return out
}
