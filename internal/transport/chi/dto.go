package chi

import (
	"fmt"
	"math"
	"time"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	dombatch "github.com/kailas-cloud/vecmatch/internal/domain/batch"
	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
	weightsuc "github.com/kailas-cloud/vecmatch/internal/usecase/weights"
)

// EmbeddingRequest is the body of POST /api/embeddings and one item of the batch body.
type EmbeddingRequest struct {
	EntityID   string            `json:"entity_id"`
	EntityType string            `json:"entity_type"`
	Category   string            `json:"category"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// EmbeddingResponse describes a stored category embedding.
type EmbeddingResponse struct {
	EntityID   string    `json:"entity_id"`
	EntityType string    `json:"entity_type"`
	Category   string    `json:"category"`
	VectorID   string    `json:"vector_id"`
	Dimensions int       `json:"dimensions"`
	CreatedAt  time.Time `json:"created_at"`
	Success    bool      `json:"success"`
}

// BatchEmbeddingItem is the outcome of one slot of a batch request.
type BatchEmbeddingItem struct {
	Index     int                `json:"index"`
	Status    string             `json:"status"`
	Attempts  int                `json:"attempts"`
	Embedding *EmbeddingResponse `json:"embedding,omitempty"`
	Error     *ErrorResponse     `json:"error,omitempty"`
}

// BatchEmbeddingResponse is the body of POST /api/embeddings/batch.
type BatchEmbeddingResponse struct {
	Items     []BatchEmbeddingItem `json:"items"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
}

// MatchRequest is the body of POST /api/matches.
type MatchRequest struct {
	CandidateID string                      `json:"candidate_id"`
	VacancyIDs  []string                    `json:"vacancy_ids,omitempty"`
	TopK        *int                        `json:"top_k,omitempty"`
	MinScore    *float64                    `json:"min_score,omitempty"`
	Weights     map[domain.Category]float64 `json:"weights,omitempty"`
}

// BatchMatchRequest is the body of POST /api/matches/batch.
type BatchMatchRequest struct {
	CandidateIDs []string                    `json:"candidate_ids"`
	VacancyIDs   []string                    `json:"vacancy_ids,omitempty"`
	TopK         *int                        `json:"top_k,omitempty"`
	MinScore     *float64                    `json:"min_score,omitempty"`
	Weights      map[domain.Category]float64 `json:"weights,omitempty"`
}

// MatchItem is one ranked vacancy.
type MatchItem struct {
	VacancyID         string                      `json:"vacancy_id"`
	MatchScore        float64                     `json:"match_score"`
	CategoryScores    map[domain.Category]float64 `json:"category_scores"`
	MissingCategories []domain.Category           `json:"missing_categories,omitempty"`
}

// MatchResponse is the ranking of one candidate.
type MatchResponse struct {
	CandidateID  string                      `json:"candidate_id"`
	Matches      []MatchItem                 `json:"matches"`
	TotalFound   int                         `json:"total_found"`
	Skipped      int                         `json:"skipped"`
	SearchTimeMs float64                     `json:"search_time_ms"`
	WeightsUsed  map[domain.Category]float64 `json:"weights_used"`
}

// BatchMatchItem is the ranking or the error of one candidate in a batch.
type BatchMatchItem struct {
	CandidateID string         `json:"candidate_id"`
	Status      string         `json:"status"`
	Result      *MatchResponse `json:"result,omitempty"`
	Error       *ErrorResponse `json:"error,omitempty"`
}

// BatchMatchResponse is the body of POST /api/matches/batch.
type BatchMatchResponse struct {
	Items []BatchMatchItem `json:"items"`
}

// ExplanationResponse is the body of GET /api/matches/{candidate_id}/{vacancy_id}.
type ExplanationResponse struct {
	CandidateID            string                      `json:"candidate_id"`
	VacancyID              string                      `json:"vacancy_id"`
	MatchScore             float64                     `json:"match_score"`
	CategoryScores         map[domain.Category]float64 `json:"category_scores"`
	Explanation            string                      `json:"explanation"`
	KeyFactors             []string                    `json:"key_factors"`
	ImprovementSuggestions []string                    `json:"improvement_suggestions,omitempty"`
	Fallback               bool                        `json:"fallback"`
}

// WeightsUpdateRequest is the body of PUT/POST /api/weights.
type WeightsUpdateRequest struct {
	Weights map[domain.Category]float64 `json:"weights"`
	UserID  string                      `json:"user_id,omitempty"`
}

// WeightsResponse reports the current weights.
type WeightsResponse struct {
	Success   bool                        `json:"success"`
	Message   string                      `json:"message"`
	Weights   map[domain.Category]float64 `json:"weights"`
	UpdatedAt time.Time                   `json:"updated_at"`
	UpdatedBy string                      `json:"updated_by,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (r EmbeddingRequest) toDomain() dombatch.Request {
	req := dombatch.Request{
		EntityID:   r.EntityID,
		EntityType: domain.EntityType(r.EntityType),
		Category:   -1,
		Text:       r.Text,
		Metadata:   r.Metadata,
	}
	if c, err := domain.ParseCategory(r.Category); err == nil {
		req.Category = c
	}
	return req
}

// validateEmbedding reports boundary parse errors with the names the client sent.
func validateEmbedding(r EmbeddingRequest) error {
	if _, err := domain.ParseEntityType(r.EntityType); err != nil {
		return err //nolint:wrapcheck // already wraps ErrInvalidArgument
	}
	if _, err := domain.ParseCategory(r.Category); err != nil {
		return err //nolint:wrapcheck // already wraps ErrInvalidArgument
	}
	return nil
}

func embeddingToResponse(e domain.CategoryEmbedding) EmbeddingResponse {
	return EmbeddingResponse{
		EntityID:   e.EntityID,
		EntityType: string(e.EntityType),
		Category:   e.Category.String(),
		VectorID:   fmt.Sprintf("%s:%s:%s", e.EntityType, e.EntityID, e.Category),
		Dimensions: len(e.Vector),
		CreatedAt:  e.CreatedAt,
		Success:    true,
	}
}

func batchResultToItem(i int, r dombatch.Result) BatchEmbeddingItem {
	item := BatchEmbeddingItem{Index: i, Status: string(r.Status()), Attempts: r.Attempts()}
	if r.Err() != nil {
		body := errorBody(r.Err())
		item.Error = &body
		return item
	}
	resp := embeddingToResponse(r.Embedding())
	item.Embedding = &resp
	return item
}

// weightsOverride converts an optional request weight map. Missing categories are an error.
func weightsOverride(m map[domain.Category]float64) (*domain.WeightSet, error) {
	if m == nil {
		return nil, nil
	}
	w, err := domain.NewWeightSet(m)
	if err != nil {
		return nil, fmt.Errorf("weights override: %w: %w", err, domain.ErrInvalidArgument)
	}
	return &w, nil
}

func matchQuery(candidateID string, pool []string, topK *int, minScore *float64,
	weights map[domain.Category]float64,
) (matchuc.Query, error) {
	w, err := weightsOverride(weights)
	if err != nil {
		return matchuc.Query{}, err
	}
	return matchuc.Query{
		CandidateID: candidateID,
		Pool:        pool,
		TopK:        topK,
		MinScore:    minScore,
		Weights:     w,
	}, nil
}

func rankingToResponse(r domain.Ranking) MatchResponse {
	items := make([]MatchItem, len(r.Matches))
	for i, m := range r.Matches {
		items[i] = MatchItem{
			VacancyID:         m.VacancyID,
			MatchScore:        round4(m.OverallScore),
			CategoryScores:    roundScores(m.CategoryScores),
			MissingCategories: m.MissingCategories,
		}
	}
	return MatchResponse{
		CandidateID:  r.CandidateID,
		Matches:      items,
		TotalFound:   r.TotalFound,
		Skipped:      r.Skipped,
		SearchTimeMs: math.Round(float64(r.Elapsed.Microseconds())/10) / 100,
		WeightsUsed:  r.Weights.Map(),
	}
}

func explanationToResponse(e domain.Explanation) ExplanationResponse {
	factors := e.KeyFactors
	if factors == nil {
		factors = []string{}
	}
	return ExplanationResponse{
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

func snapshotToResponse(s weightsuc.Snapshot, msg string) WeightsResponse {
	return WeightsResponse{
		Success:   true,
		Message:   msg,
		Weights:   s.Weights.Map(),
		UpdatedAt: s.UpdatedAt,
		UpdatedBy: s.UpdatedBy,
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
