package match

import (
	"context"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// VectorReader is the read side of the vector store used for ranking.
type VectorReader interface {
	GetEntity(ctx context.Context, t domain.EntityType, id string) ([]domain.CategoryEmbedding, error)
	BulkGet(
		ctx context.Context, t domain.EntityType, ids []string, c domain.Category,
	) (map[string]domain.CategoryEmbedding, error)
	ListAll(ctx context.Context, t domain.EntityType) ([]string, error)
}

// WeightsProvider returns the current process-wide weights.
type WeightsProvider interface {
	Get() domain.WeightSet
}
