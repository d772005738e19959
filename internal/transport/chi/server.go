package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	dombatch "github.com/kailas-cloud/vecmatch/internal/domain/batch"
	logpkg "github.com/kailas-cloud/vecmatch/internal/logger"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
	batchuc "github.com/kailas-cloud/vecmatch/internal/usecase/batch"
	explainuc "github.com/kailas-cloud/vecmatch/internal/usecase/explain"
	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
	weightsuc "github.com/kailas-cloud/vecmatch/internal/usecase/weights"
)

// maxBodyBytes bounds request bodies: 100 texts of 10000 characters plus JSON overhead.
const maxBodyBytes = 8 << 20

// EntityDeleter removes every stored category of an entity.
type EntityDeleter interface {
	Delete(ctx context.Context, t domain.EntityType, id string) error
}

// Server holds the HTTP handlers of the matching API.
type Server struct {
	embeddings    *batchuc.Service
	entities      EntityDeleter
	matches       *matchuc.Service
	explanations  *explainuc.Service
	weights       *weightsuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	embeddings *batchuc.Service,
	entities EntityDeleter,
	matches *matchuc.Service,
	explanations *explainuc.Service,
	weights *weightsuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		embeddings:    embeddings,
		entities:      entities,
		matches:       matches,
		explanations:  explanations,
		weights:       weights,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/embeddings", s.CreateEmbedding)
		r.Post("/embeddings/batch", s.CreateEmbeddingsBatch)
		r.Delete("/entities/{entity_type}/{entity_id}", s.DeleteEntity)
		r.Post("/matches", s.FindMatches)
		r.Post("/matches/batch", s.FindMatchesBatch)
		r.Get("/matches/{candidate_id}/{vacancy_id}", s.GetExplanation)
		r.Get("/weights", s.GetWeights)
		r.Put("/weights", s.UpdateWeights)
		r.Post("/weights", s.UpdateWeights)
	})
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})
}

// CreateEmbedding handles POST /api/embeddings.
func (s *Server) CreateEmbedding(w http.ResponseWriter, r *http.Request) {
	var req EmbeddingRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := validateEmbedding(req); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	res := s.embeddings.Create(r.Context(), req.toDomain())
	if res.Err() != nil {
		s.handleDomainError(w, r, res.Err())
		return
	}
	writeJSON(w, http.StatusCreated, embeddingToResponse(res.Embedding()))
}

// CreateEmbeddingsBatch handles POST /api/embeddings/batch.
// The body is a JSON array of embedding requests; each slot succeeds or fails on its own.
func (s *Server) CreateEmbeddingsBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []EmbeddingRequest
	if !s.decode(w, r, &reqs) {
		return
	}
	if limit := s.embeddings.MaxBatchSize(); len(reqs) == 0 || len(reqs) > limit {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("batch must contain between 1 and %d items", limit))
		return
	}

	items := make([]BatchEmbeddingItem, len(reqs))
	pending := make([]dombatch.Request, 0, len(reqs))
	slots := make([]int, 0, len(reqs))
	for i, req := range reqs {
		if err := validateEmbedding(req); err != nil {
			items[i] = batchResultToItem(i, dombatch.NewError(req.toDomain(), err, 0))
			continue
		}
		pending = append(pending, req.toDomain())
		slots = append(slots, i)
	}

	for j, res := range s.embeddings.CreateBatch(r.Context(), pending) {
		items[slots[j]] = batchResultToItem(slots[j], res)
	}

	resp := BatchEmbeddingResponse{Items: items}
	for _, it := range items {
		if it.Error == nil {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteEntity handles DELETE /api/entities/{entity_type}/{entity_id}.
func (s *Server) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	t, err := domain.ParseEntityType(chi.URLParam(r, "entity_type"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if err := s.entities.Delete(r.Context(), t, chi.URLParam(r, "entity_id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FindMatches handles POST /api/matches.
func (s *Server) FindMatches(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	q, err := matchQuery(req.CandidateID, req.VacancyIDs, req.TopK, req.MinScore, req.Weights)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ranking, err := s.matches.Rank(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rankingToResponse(ranking))
}

// FindMatchesBatch handles POST /api/matches/batch.
func (s *Server) FindMatchesBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchMatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	q, err := matchQuery("", req.VacancyIDs, req.TopK, req.MinScore, req.Weights)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	results, err := s.matches.RankBatch(r.Context(), req.CandidateIDs, q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := BatchMatchResponse{Items: make([]BatchMatchItem, len(results))}
	for i, res := range results {
		item := BatchMatchItem{CandidateID: res.CandidateID, Status: string(dombatch.StatusOK)}
		if res.Err != nil {
			body := errorBody(res.Err)
			item.Status = string(dombatch.StatusError)
			item.Error = &body
		} else {
			ranking := rankingToResponse(res.Ranking)
			item.Result = &ranking
		}
		resp.Items[i] = item
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetExplanation handles GET /api/matches/{candidate_id}/{vacancy_id}.
func (s *Server) GetExplanation(w http.ResponseWriter, r *http.Request) {
	exp, err := s.explanations.Explain(r.Context(), chi.URLParam(r, "candidate_id"), chi.URLParam(r, "vacancy_id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, explanationToResponse(exp))
}

// GetWeights handles GET /api/weights.
func (s *Server) GetWeights(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, snapshotToResponse(s.weights.Snapshot(), "Current weights"))
}

// UpdateWeights handles PUT and POST /api/weights.
func (s *Server) UpdateWeights(w http.ResponseWriter, r *http.Request) {
	var req WeightsUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}

	ws, err := domain.NewWeightSet(req.Weights)
	if err == nil {
		var snap weightsuc.Snapshot
		snap, err = s.weights.Update(ws, req.UserID)
		if err == nil {
			metrics.WeightUpdatesTotal.WithLabelValues("ok").Inc()
			writeJSON(w, http.StatusOK, snapshotToResponse(snap, "Weights updated"))
			return
		}
	}
	metrics.WeightUpdatesTotal.WithLabelValues("rejected").Inc()
	s.handleDomainError(w, r, err)
}

// HealthCheck handles GET /health.
// A degraded service still answers 200: ranking works without the external models.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	services := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		services[k] = string(v)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{
		Status:    string(report.Status),
		Version:   report.Version,
		Timestamp: time.Now().UTC(),
		Services:  services,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) log(r *http.Request) *zap.Logger {
	return logpkg.FromContextOr(r.Context(), s.logger)
}
