package batch

import (
	"context"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// Embedder vectorizes text for one profile category.
type Embedder interface {
	EmbedCategory(ctx context.Context, text string, category domain.Category) (domain.EmbeddingResult, error)
}

// Upserter persists a category embedding and returns the stored record.
type Upserter interface {
	Upsert(ctx context.Context, e domain.CategoryEmbedding) (domain.CategoryEmbedding, error)
}
