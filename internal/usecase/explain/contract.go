package explain

import (
	"context"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// EntityReader loads all stored categories of an entity.
type EntityReader interface {
	GetEntity(ctx context.Context, t domain.EntityType, id string) ([]domain.CategoryEmbedding, error)
}

// WeightsProvider returns the current process-wide weights.
type WeightsProvider interface {
	Get() domain.WeightSet
}

// Explainer is the external language model. Its output is opaque text.
type Explainer interface {
	Explain(ctx context.Context, req domain.ExplanationRequest) (string, error)
	Suggest(ctx context.Context, weak []domain.Category) ([]string, error)
}
