package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals that an entity has no stored embedding for a category.
	ErrNotFound = errors.New("not found")
	// ErrEntityNotFound signals that an entity has no stored embedding at all.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrInsufficientData signals that a pair shares no weighted category, so no score is computable.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidArgument signals a rejected request parameter.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidWeights signals a weight update that failed validation.
	ErrInvalidWeights = errors.New("invalid weights")
	// ErrRateLimited signals a rate limit hit at the embedding provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrExplanationUnavailable signals that the explanation model could not answer.
	ErrExplanationUnavailable = errors.New("explanation unavailable")
)

// ProviderErrorKind tells the retry loop whether an attempt may be repeated.
type ProviderErrorKind int

// Provider error kinds.
const (
	ProviderTransient ProviderErrorKind = iota
	ProviderPermanent
)

func (k ProviderErrorKind) String() string {
	if k == ProviderTransient {
		return "transient"
	}
	return "permanent"
}

// ProviderError is returned by embedding providers.
// Transient errors (rate limit, timeout, 5xx) may be retried; permanent ones may not.
type ProviderError struct {
	Kind       ProviderErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether the failure may succeed on retry.
func (e *ProviderError) Transient() bool { return e.Kind == ProviderTransient }

// NewTransientError wraps err as a retryable provider failure.
func NewTransientError(status int, err error) error {
	return &ProviderError{Kind: ProviderTransient, StatusCode: status, Err: err}
}

// NewPermanentError wraps err as a non-retryable provider failure.
func NewPermanentError(status int, err error) error {
	return &ProviderError{Kind: ProviderPermanent, StatusCode: status, Err: err}
}

// IsTransient reports whether err carries a transient ProviderError.
func IsTransient(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient()
}
