package vecmatch

import "github.com/kailas-cloud/vecmatch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrEntityNotFound         = domain.ErrEntityNotFound
	ErrInsufficientData       = domain.ErrInsufficientData
	ErrInvalidArgument        = domain.ErrInvalidArgument
	ErrInvalidWeights         = domain.ErrInvalidWeights
	ErrRateLimited            = domain.ErrRateLimited
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
