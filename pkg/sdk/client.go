package vecmatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/vecmatch/internal/db/redis"
	"github.com/kailas-cloud/vecmatch/internal/domain"
	dombatch "github.com/kailas-cloud/vecmatch/internal/domain/batch"
	embeddingrepo "github.com/kailas-cloud/vecmatch/internal/repository/embedding"
	"github.com/kailas-cloud/vecmatch/internal/repository/memory"
	batchuc "github.com/kailas-cloud/vecmatch/internal/usecase/batch"
	explainuc "github.com/kailas-cloud/vecmatch/internal/usecase/explain"
	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
	weightsuc "github.com/kailas-cloud/vecmatch/internal/usecase/weights"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, replaced by fakes in tests.
type pipelineUseCase interface {
	Create(ctx context.Context, req dombatch.Request) dombatch.Result
	CreateBatch(ctx context.Context, reqs []dombatch.Request) []dombatch.Result
}

type rankUseCase interface {
	Rank(ctx context.Context, q matchuc.Query) (domain.Ranking, error)
	RankBatch(ctx context.Context, candidateIDs []string, q matchuc.Query) ([]matchuc.BatchItem, error)
}

type explainUseCase interface {
	Explain(ctx context.Context, candidateID, vacancyID string) (domain.Explanation, error)
}

type weightsUseCase interface {
	Snapshot() weightsuc.Snapshot
	Update(w domain.WeightSet, updatedBy string) (weightsuc.Snapshot, error)
}

type vectorStore interface {
	matchuc.VectorReader
	batchuc.Upserter
	Delete(ctx context.Context, t domain.EntityType, id string) error
}

type backend struct {
	store  vectorStore
	pinger healthuc.Pinger
	close  func()
}

// Client is the vecmatch SDK entry point.
type Client struct {
	backend    backend
	pipeline   pipelineUseCase
	ranker     rankUseCase
	explainer  explainUseCase
	weightsSvc weightsUseCase
	healthSvc  healthUseCase
	obs        *observer
}

// New creates a Client. With WithRedis the provided context bounds the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.driver == "" {
		return nil, errors.New("vecmatch: storage required (use WithRedis or WithMemory)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	b, err := createBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c, err := wireClient(b, cfg, obs)
	if err != nil {
		b.close()
		return nil, err
	}
	return c, nil
}

func createBackend(ctx context.Context, cfg *clientConfig) (backend, error) {
	switch cfg.driver {
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return backend{}, fmt.Errorf("vecmatch: create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return backend{}, fmt.Errorf("vecmatch: database not ready: %w", err)
		}
		return backend{store: embeddingrepo.New(s), pinger: s, close: s.Close}, nil
	case "memory":
		m := memory.NewStorage()
		return backend{store: m, pinger: m, close: func() {}}, nil
	default:
		return backend{}, fmt.Errorf("vecmatch: unknown driver %q", cfg.driver)
	}
}

func wireClient(b backend, cfg *clientConfig, obs *observer) (*Client, error) {
	logger := zap.NewNop()

	initial := domain.DefaultWeights()
	if cfg.weights != nil {
		w, err := toDomainWeights(cfg.weights)
		if err != nil {
			return nil, fmt.Errorf("vecmatch: initial weights: %w", err)
		}
		initial = *w
	}
	weightsSvc, err := weightsuc.New(initial, logger)
	if err != nil {
		return nil, fmt.Errorf("vecmatch: initial weights: %w", err)
	}

	instructions, err := toDomainInstructions(cfg.instructions)
	if err != nil {
		return nil, fmt.Errorf("vecmatch: instructions: %w", err)
	}

	// Embedder: noop if not set (ranking works, Embed returns an error)
	var inner domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		inner = &embedderAdapter{inner: cfg.embedder}
	}
	embedder := domain.NewInstructionEmbedder(inner, instructions)

	pipeline := batchuc.New(embedder, b.store, batchuc.Options{
		MaxBatchSize: cfg.maxBatchSize,
		Concurrency:  cfg.concurrency,
		RPS:          cfg.rps,
	}, batchuc.Metrics{}, logger)
	ranker := matchuc.New(b.store, weightsSvc, matchuc.Options{}, matchuc.Metrics{}, logger)

	return &Client{
		backend:    b,
		pipeline:   pipeline,
		ranker:     ranker,
		explainer:  explainuc.New(b.store, weightsSvc, nil, logger),
		weightsSvc: weightsSvc,
		healthSvc:  healthuc.New(b.pinger, embedder, nil, logger),
		obs:        obs,
	}, nil
}

func toDomainInstructions(m map[Category]string) (map[domain.Category]string, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[domain.Category]string, len(domain.DefaultCategoryInstructions))
	for c, s := range domain.DefaultCategoryInstructions {
		out[c] = s
	}
	for name, s := range m {
		c, err := domain.ParseCategory(string(name))
		if err != nil {
			return nil, err //nolint:wrapcheck // caller adds context
		}
		out[c] = s
	}
	return out, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.backend.close != nil {
		c.backend.close()
	}
}

// Ping checks storage connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.backend.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
