// Package embedding holds provider-agnostic decorators around the embedding port.
package embedding

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/logger"
)

// InstrumentedEmbedder logs every provider call with its outcome.
// Transport metrics are recorded in transport/openai; this layer only adds
// request-scoped logging and keeps the provider error kind intact for retries.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	fallback *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. l is used when the context carries no logger.
func NewInstrumentedEmbedder(inner domain.Embedder, provider, model string, l *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{inner: inner, provider: provider, model: model, fallback: l}
}

// Embed delegates to the inner embedder. Errors are returned unchanged.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	log := logger.FromContextOr(ctx, p.fallback).With(zap.String("provider", p.provider), zap.String("model", p.model))
	start := time.Now()

	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		kind := "unknown"
		var pe *domain.ProviderError
		if errors.As(err, &pe) {
			kind = pe.Kind.String()
		}
		// Transient failures are retried upstream, so they are not errors yet.
		level := zap.ErrorLevel
		if kind == domain.ProviderTransient.String() {
			level = zap.WarnLevel
		}
		log.Log(level, "Embedding request failed",
			zap.String("kind", kind),
			zap.Duration("duration", duration),
			zap.Int("text_len", len(text)),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // kind must stay visible to the retry loop
	}

	log.Debug("Embedding request completed",
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// HealthCheck delegates to the wrapped embedder.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}
