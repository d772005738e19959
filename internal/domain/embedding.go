package domain

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// Vector is a fixed-length embedding. Treat it as immutable once created.
type Vector []float32

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// CategoryEmbedder vectorizes text for a specific profile category.
type CategoryEmbedder interface {
	EmbedCategory(ctx context.Context, text string, category Category) (EmbeddingResult, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    Vector
	PromptTokens int
	TotalTokens  int
}

// CategoryEmbedding is one stored vector of an entity. Identity is (EntityType, EntityID, Category).
type CategoryEmbedding struct {
	EntityID   string
	EntityType EntityType
	Category   Category
	Vector     Vector
	Metadata   map[string]string
	CreatedAt  time.Time
}

// SameContent reports whether two embeddings carry bit-identical vectors and equal metadata.
func (e *CategoryEmbedding) SameContent(o *CategoryEmbedding) bool {
	if len(e.Vector) != len(o.Vector) || len(e.Metadata) != len(o.Metadata) {
		return false
	}
	for i := range e.Vector {
		if math.Float32bits(e.Vector[i]) != math.Float32bits(o.Vector[i]) {
			return false
		}
	}
	for k, v := range e.Metadata {
		if ov, ok := o.Metadata[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Text limits for embedding requests.
const (
	MaxTextLength      = 10000
	MaxPreparedTextLen = 8000
)

// PrepareText collapses whitespace and truncates the text to MaxPreparedTextLen runes.
func PrepareText(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	runes := []rune(cleaned)
	if len(runes) > MaxPreparedTextLen {
		return string(runes[:MaxPreparedTextLen]) + "..."
	}
	return cleaned
}

// DefaultCategoryInstructions are prepended to the text so that the same profile
// text yields category-focused vectors.
var DefaultCategoryInstructions = map[Category]string{
	CategorySkills:  "Skills and technical competencies. Focus on tools, technologies, languages, frameworks and methodologies: ",
	CategoryCareer:  "Career goals and experience. Focus on professional experience, achievements, growth motivation and plans: ",
	CategoryCulture: "Cultural values and preferences. Focus on values, work style, team preferences and communication style: ",
	CategorySalary:  "Financial expectations and conditions. Focus on salary expectations, benefits, relocation and flexibility: ",
}

// InstructionEmbedder is a domain decorator that prepends a per-category instruction before embedding.
type InstructionEmbedder struct {
	inner        Embedder
	instructions map[Category]string
}

// NewInstructionEmbedder creates the decorator. A nil map uses DefaultCategoryInstructions.
func NewInstructionEmbedder(inner Embedder, instructions map[Category]string) *InstructionEmbedder {
	if instructions == nil {
		instructions = DefaultCategoryInstructions
	}
	return &InstructionEmbedder{inner: inner, instructions: instructions}
}

// EmbedCategory prepends the category instruction and delegates to the inner embedder.
func (e *InstructionEmbedder) EmbedCategory(
	ctx context.Context, text string, category Category,
) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.instructions[category]+PrepareText(text))
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embed %s: %w", category, err)
	}
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}
