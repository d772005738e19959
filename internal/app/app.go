// Package app assembles the matching services from configuration. Both the HTTP
// server and the stdio tool server are built on it.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/config"
	"github.com/kailas-cloud/vecmatch/internal/db"
	dbRedis "github.com/kailas-cloud/vecmatch/internal/db/redis"
	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
	"github.com/kailas-cloud/vecmatch/internal/repository/embcache"
	embeddingrepo "github.com/kailas-cloud/vecmatch/internal/repository/embedding"
	"github.com/kailas-cloud/vecmatch/internal/repository/memory"
	openaiTransport "github.com/kailas-cloud/vecmatch/internal/transport/openai"
	batchuc "github.com/kailas-cloud/vecmatch/internal/usecase/batch"
	embeddinguc "github.com/kailas-cloud/vecmatch/internal/usecase/embedding"
	explainuc "github.com/kailas-cloud/vecmatch/internal/usecase/explain"
	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
	weightsuc "github.com/kailas-cloud/vecmatch/internal/usecase/weights"
)

// VectorStore is what the services need from either store backend.
type VectorStore interface {
	matchuc.VectorReader
	batchuc.Upserter
	Delete(ctx context.Context, t domain.EntityType, id string) error
}

// Services is the assembled application.
type Services struct {
	Store        VectorStore
	Embeddings   *batchuc.Service
	Matches      *matchuc.Service
	Explanations *explainuc.Service
	Weights      *weightsuc.Service
	Health       *healthuc.Service

	closers []func()
}

// Close releases the store connection.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Build wires the store, the providers and the use cases described by cfg.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Services, error) {
	metrics.RegisterProviderMetrics()
	metrics.RegisterMatchingMetrics()

	s := &Services{}

	var (
		pinger healthuc.Pinger
		cache  db.CacheStore
	)
	switch cfg.Database.Driver {
	case config.DriverRedis:
		rs, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Database.Addrs,
			Password:   cfg.Database.Password,
			ClientName: "vecmatch",
		})
		if err != nil {
			return nil, fmt.Errorf("create database store: %w", err)
		}
		s.closers = append(s.closers, rs.Close)

		if err := rs.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			s.Close()
			return nil, fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database")

		s.Store, pinger = embeddingrepo.New(rs), rs
		if cfg.Embedding.Cache.Enabled {
			cache = rs
		}
	case config.DriverMemory:
		mem := memory.NewStorage()
		s.Store, pinger = mem, mem
		logger.Warn("Using in-memory vector store; embeddings are lost on restart")
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	embedder, err := BuildEmbedder(cfg.Embedding, cache, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cache != nil),
	)

	// Pass nil interfaces (not typed nil pointers) when explanations are disabled.
	var (
		explainer    explainuc.Explainer
		explainCheck healthuc.Checker
	)
	if cfg.Explanation.Enabled {
		x := openaiTransport.NewExplainer(&openaiTransport.Config{
			APIKey:   cfg.Explanation.APIKey,
			BaseURL:  cfg.Explanation.BaseURL,
			Model:    cfg.Explanation.Model,
			Provider: cfg.Explanation.Provider,
			Timeout:  time.Duration(cfg.Explanation.TimeoutSec) * time.Second,
			Logger:   logger,
		})
		explainer, explainCheck = x, x
	}

	initialWeights, err := cfg.Matching.WeightSet()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("initial weights: %w", err)
	}
	if s.Weights, err = weightsuc.New(initialWeights, logger); err != nil {
		s.Close()
		return nil, fmt.Errorf("initial weights: %w", err)
	}

	s.Embeddings = batchuc.New(embedder, s.Store, batchuc.Options{
		MaxBatchSize: cfg.Matching.MaxBatchSize,
		MaxAttempts:  cfg.Matching.MaxAttempts,
		BackoffBase:  cfg.Matching.BackoffBase(),
		BackoffMax:   cfg.Matching.BackoffMax(),
		Concurrency:  cfg.Matching.ProviderConcurrency,
		RPS:          cfg.Matching.ProviderRPS,
	}, batchuc.Metrics{
		Slots:   metrics.BatchSlotsTotal,
		Retries: metrics.ProviderRetriesTotal,
	}, logger)

	s.Matches = matchuc.New(s.Store, s.Weights, matchuc.Options{
		DefaultTopK:     cfg.Matching.DefaultTopK,
		DefaultMinScore: cfg.Matching.DefaultMinScore,
		ChunkSize:       cfg.Matching.ChunkSize,
		FetchParallel:   cfg.Matching.FetchParallel,
	}, matchuc.Metrics{
		RankDuration: metrics.RankDuration,
		SkippedPairs: metrics.SkippedPairsTotal,
	}, logger)

	s.Explanations = explainuc.New(s.Store, s.Weights, explainer, logger)
	s.Health = healthuc.New(pinger, embedder, explainCheck, logger)
	return s, nil
}

// BuildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
// The instruction prefix is outermost so the cache key covers it.
func BuildEmbedder(
	cfg config.EmbeddingConfig,
	cache db.CacheStore,
	logger *zap.Logger,
) (*domain.InstructionEmbedder, error) {
	instructions, err := cfg.CategoryInstructions()
	if err != nil {
		return nil, fmt.Errorf("category instructions: %w", err)
	}

	var embedder domain.Embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	if cache != nil {
		embedder = embcache.New(embedder, cache, cfg.Model, cfg.CacheTTL(), metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger)

	return domain.NewInstructionEmbedder(embedder, instructions), nil
}
