// Package mcp exposes the matching use cases as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	dombatch "github.com/kailas-cloud/vecmatch/internal/domain/batch"
	batchuc "github.com/kailas-cloud/vecmatch/internal/usecase/batch"
	explainuc "github.com/kailas-cloud/vecmatch/internal/usecase/explain"
	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
	weightsuc "github.com/kailas-cloud/vecmatch/internal/usecase/weights"
)

// Tool names.
const (
	ToolCreateEmbedding       = "create_embedding"
	ToolBatchCreateEmbeddings = "batch_create_embeddings"
	ToolFindMatches           = "find_matches"
	ToolGetExplanation        = "get_explanation"
	ToolGetExplanations       = "get_explanations"
	ToolUpdateWeights         = "update_weights"
	ToolGetWeights            = "get_weights"
	ToolHealthCheck           = "health_check"
)

// maxExplanationPairs bounds one get_explanations call.
const maxExplanationPairs = 20

// Server holds the tool handlers.
type Server struct {
	embeddings   *batchuc.Service
	matches      *matchuc.Service
	explanations *explainuc.Service
	weights      *weightsuc.Service
	health       *healthuc.Service
	logger       *zap.Logger
	now          func() time.Time
}

// NewServer creates the tool handlers over the matching services.
func NewServer(
	embeddings *batchuc.Service,
	matches *matchuc.Service,
	explanations *explainuc.Service,
	weights *weightsuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		embeddings:   embeddings,
		matches:      matches,
		explanations: explanations,
		weights:      weights,
		health:       health,
		logger:       logger,
		now:          time.Now,
	}
}

// NewMCPServer registers every tool on a new protocol server.
func NewMCPServer(s *Server, name, version string) *server.MCPServer {
	srv := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	srv.AddTools(s.Tools()...)
	return srv
}

// Tools lists the tool definitions with their handlers.
func (s *Server) Tools() []server.ServerTool {
	categories := make([]string, len(domain.AllCategories))
	for i, c := range domain.AllCategories {
		categories[i] = c.String()
	}
	entityTypes := []string{string(domain.EntityCandidate), string(domain.EntityVacancy)}
	weightsSchema := map[string]any{}
	for _, c := range categories {
		weightsSchema[c] = map[string]any{"type": "number", "minimum": 0}
	}
	embeddingItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"entity_id":   map[string]any{"type": "string"},
			"entity_type": map[string]any{"type": "string", "enum": entityTypes},
			"text":        map[string]any{"type": "string"},
			"category":    map[string]any{"type": "string", "enum": categories},
			"metadata":    map[string]any{"type": "object"},
		},
		"required": []string{"entity_id", "entity_type", "text", "category"},
	}
	pairItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"candidate_id": map[string]any{"type": "string"},
			"vacancy_id":   map[string]any{"type": "string"},
		},
		"required": []string{"candidate_id", "vacancy_id"},
	}

	return []server.ServerTool{
		{
			Tool: mcp.NewTool(ToolCreateEmbedding,
				mcp.WithDescription("Embed one category text of a candidate or vacancy and store the vector"),
				mcp.WithString("entity_id", mcp.Required(), mcp.Description("Candidate or vacancy id")),
				mcp.WithString("entity_type", mcp.Required(), mcp.Enum(entityTypes...)),
				mcp.WithString("text", mcp.Required(), mcp.Description("Text to embed")),
				mcp.WithString("category", mcp.Required(), mcp.Enum(categories...)),
				mcp.WithObject("metadata", mcp.Description("Optional string metadata")),
			),
			Handler: s.handle(ToolCreateEmbedding, s.CreateEmbedding),
		},
		{
			Tool: mcp.NewTool(ToolBatchCreateEmbeddings,
				mcp.WithDescription("Embed several category texts; every item succeeds or fails on its own"),
				mcp.WithArray("embeddings", mcp.Required(), mcp.Items(embeddingItem)),
			),
			Handler: s.handle(ToolBatchCreateEmbeddings, s.BatchCreateEmbeddings),
		},
		{
			Tool: mcp.NewTool(ToolFindMatches,
				mcp.WithDescription("Rank vacancies for a candidate by weighted per-category similarity"),
				mcp.WithString("candidate_id", mcp.Required()),
				mcp.WithArray("vacancy_ids", mcp.Description("Restrict ranking to these vacancies"),
					mcp.Items(map[string]any{"type": "string"})),
				mcp.WithNumber("top_k", mcp.Description("Maximum number of matches"), mcp.Min(1)),
				mcp.WithNumber("min_score", mcp.Description("Minimum overall score"), mcp.Min(-1), mcp.Max(1)),
				mcp.WithObject("weights", mcp.Description("Per-call category weights"), mcp.Properties(weightsSchema)),
			),
			Handler: s.handle(ToolFindMatches, s.FindMatches),
		},
		{
			Tool: mcp.NewTool(ToolGetExplanation,
				mcp.WithDescription("Explain the match between a candidate and a vacancy"),
				mcp.WithString("candidate_id", mcp.Required()),
				mcp.WithString("vacancy_id", mcp.Required()),
			),
			Handler: s.handle(ToolGetExplanation, s.GetExplanation),
		},
		{
			Tool: mcp.NewTool(ToolGetExplanations,
				mcp.WithDescription("Explain several candidate/vacancy pairs concurrently"),
				mcp.WithArray("pairs", mcp.Required(), mcp.Items(pairItem)),
			),
			Handler: s.handle(ToolGetExplanations, s.GetExplanations),
		},
		{
			Tool: mcp.NewTool(ToolUpdateWeights,
				mcp.WithDescription("Replace the process-wide category weights"),
				mcp.WithObject("weights", mcp.Required(), mcp.Properties(weightsSchema)),
				mcp.WithString("updated_by", mcp.Description("Who made the change")),
			),
			Handler: s.handle(ToolUpdateWeights, s.UpdateWeights),
		},
		{
			Tool: mcp.NewTool(ToolGetWeights,
				mcp.WithDescription("Return the current category weights"),
			),
			Handler: s.handle(ToolGetWeights, s.GetWeights),
		},
		{
			Tool: mcp.NewTool(ToolHealthCheck,
				mcp.WithDescription("Report the health of the store and the model providers"),
			),
			Handler: s.handle(ToolHealthCheck, s.HealthCheck),
		},
	}
}

// toolFunc produces the JSON-encodable result of one tool call.
type toolFunc func(ctx context.Context, req mcp.CallToolRequest) (any, error)

// handle renders fn's result as indented JSON text. Errors become error results,
// never protocol errors, so the client sees the reason.
func (s *Server) handle(name string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := s.now()
		v, err := fn(ctx, req)
		if err != nil {
			s.logger.Warn("Tool call failed",
				zap.String("tool", name),
				zap.Duration("duration", s.now().Sub(start)),
				zap.Error(err),
			)
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", name, clientMessage(err))), nil
		}
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", name, err)
		}
		s.logger.Debug("Tool call",
			zap.String("tool", name),
			zap.Duration("duration", s.now().Sub(start)),
		)
		return mcp.NewToolResultText(string(out)), nil
	}
}

// CreateEmbedding handles create_embedding.
func (s *Server) CreateEmbedding(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	var args embeddingArgs
	if err := bind(req, &args); err != nil {
		return nil, err
	}
	r, err := args.toRequest()
	if err != nil {
		return nil, err
	}
	res := s.embeddings.Create(ctx, r)
	if res.Err() != nil {
		return nil, res.Err()
	}
	return embeddingToResult(res.Embedding()), nil
}

// BatchCreateEmbeddings handles batch_create_embeddings. Items are answered in input order.
func (s *Server) BatchCreateEmbeddings(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	var args batchEmbeddingArgs
	if err := bind(req, &args); err != nil {
		return nil, err
	}
	if limit := s.embeddings.MaxBatchSize(); len(args.Embeddings) == 0 || len(args.Embeddings) > limit {
		return nil, fmt.Errorf("batch must contain between 1 and %d items: %w", limit, domain.ErrInvalidArgument)
	}

	items := make([]batchEmbeddingItem, len(args.Embeddings))
	pending := make([]dombatch.Request, 0, len(args.Embeddings))
	slots := make([]int, 0, len(args.Embeddings))
	for i, a := range args.Embeddings {
		r, err := a.toRequest()
		if err != nil {
			items[i] = batchEmbeddingItem{Index: i, Status: string(dombatch.StatusError), Error: clientMessage(err)}
			continue
		}
		pending = append(pending, r)
		slots = append(slots, i)
	}
	for j, res := range s.embeddings.CreateBatch(ctx, pending) {
		i := slots[j]
		item := batchEmbeddingItem{Index: i, Status: string(res.Status()), Attempts: res.Attempts()}
		if res.Err() != nil {
			item.Error = clientMessage(res.Err())
		} else {
			e := embeddingToResult(res.Embedding())
			item.Embedding = &e
		}
		items[i] = item
	}
	return items, nil
}

// FindMatches handles find_matches.
func (s *Server) FindMatches(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	var args matchArgs
	if err := bind(req, &args); err != nil {
		return nil, err
	}
	q := matchuc.Query{
		CandidateID: args.CandidateID,
		Pool:        args.VacancyIDs,
		TopK:        args.TopK,
		MinScore:    args.MinScore,
	}
	if args.Weights != nil {
		w, err := domain.NewWeightSet(args.Weights)
		if err != nil {
			return nil, fmt.Errorf("weights override: %w: %w", err, domain.ErrInvalidArgument)
		}
		q.Weights = &w
	}
	ranking, err := s.matches.Rank(ctx, q)
	if err != nil {
		return nil, err //nolint:wrapcheck // rendered by handle
	}
	return rankingToResult(ranking), nil
}

// GetExplanation handles get_explanation.
func (s *Server) GetExplanation(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	var args pairArgs
	if err := bind(req, &args); err != nil {
		return nil, err
	}
	if args.CandidateID == "" || args.VacancyID == "" {
		return nil, fmt.Errorf("candidate_id and vacancy_id are required: %w", domain.ErrInvalidArgument)
	}
	exp, err := s.explanations.Explain(ctx, args.CandidateID, args.VacancyID)
	if err != nil {
		return nil, err //nolint:wrapcheck // rendered by handle
	}
	return explanationToResult(exp), nil
}

// GetExplanations handles get_explanations. A pair that cannot be scored reports its own error.
func (s *Server) GetExplanations(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	var args batchExplanationArgs
	if err := bind(req, &args); err != nil {
		return nil, err
	}
	if len(args.Pairs) == 0 || len(args.Pairs) > maxExplanationPairs {
		return nil, fmt.Errorf("pairs must contain between 1 and %d items: %w", maxExplanationPairs, domain.ErrInvalidArgument)
	}
	pairs := make([]explainuc.Pair, len(args.Pairs))
	for i, p := range args.Pairs {
		pairs[i] = explainuc.Pair{CandidateID: p.CandidateID, VacancyID: p.VacancyID}
	}
	batch := s.explanations.ExplainBatch(ctx, pairs)
	items := make([]batchExplanationItem, len(batch))
	for i, it := range batch {
		items[i] = batchExplanationToItem(it)
	}
	return items, nil
}

// UpdateWeights handles update_weights.
func (s *Server) UpdateWeights(_ context.Context, req mcp.CallToolRequest) (any, error) {
	var args weightsArgs
	if err := bind(req, &args); err != nil {
		return nil, err
	}
	if args.Weights == nil {
		return nil, fmt.Errorf("weights are required: %w", domain.ErrInvalidWeights)
	}
	w, err := domain.NewWeightSet(args.Weights)
	if err != nil {
		return nil, err //nolint:wrapcheck // already wraps ErrInvalidWeights
	}
	by := args.UpdatedBy
	if by == "" {
		by = "mcp"
	}
	snap, err := s.weights.Update(w, by)
	if err != nil {
		return nil, err //nolint:wrapcheck // rendered by handle
	}
	return snapshotToResult(snap, "Weights updated"), nil
}

// GetWeights handles get_weights.
func (s *Server) GetWeights(context.Context, mcp.CallToolRequest) (any, error) {
	return snapshotToResult(s.weights.Snapshot(), "Current weights"), nil
}

// HealthCheck handles health_check. An unhealthy report is still a successful call.
func (s *Server) HealthCheck(ctx context.Context, _ mcp.CallToolRequest) (any, error) {
	return reportToResult(s.health.Check(ctx), s.now()), nil
}

// bind decodes the call arguments into dst.
func bind(req mcp.CallToolRequest, dst any) error {
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid arguments: %v: %w", err, domain.ErrInvalidArgument)
	}
	return nil
}

// clientErrors carry our own messages and are reported in full.
var clientErrors = []error{
	domain.ErrInvalidWeights,
	domain.ErrInvalidArgument,
	domain.ErrEntityNotFound,
	domain.ErrInsufficientData,
	domain.ErrRateLimited,
}

// clientMessage hides internal failure details from the tool client.
func clientMessage(err error) string {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return err.Error()
		}
	}
	var pe *domain.ProviderError
	if errors.As(err, &pe) || errors.Is(err, domain.ErrEmbeddingProviderError) {
		return "embedding provider error"
	}
	return "internal error"
}
