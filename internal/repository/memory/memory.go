// Package memory is a process-local vector store for tests and single-node runs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

type entityKey struct {
	t  domain.EntityType
	id string
}

// Storage keeps category embeddings in maps guarded by a RWMutex.
type Storage struct {
	mu       sync.RWMutex
	entities map[entityKey]map[domain.Category]domain.CategoryEmbedding
	now      func() time.Time
}

// NewStorage creates an empty store.
func NewStorage() *Storage {
	return &Storage{
		entities: make(map[entityKey]map[domain.Category]domain.CategoryEmbedding),
		now:      time.Now,
	}
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error { return nil }

// Upsert stores a copy of e. Identical content keeps the existing record.
func (s *Storage) Upsert(_ context.Context, e domain.CategoryEmbedding) (domain.CategoryEmbedding, error) {
	if !e.EntityType.Valid() || !e.Category.Valid() || e.EntityID == "" {
		return domain.CategoryEmbedding{}, fmt.Errorf("upsert %s/%s/%s: %w",
			e.EntityType, e.EntityID, e.Category, domain.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := entityKey{e.EntityType, e.EntityID}
	cats := s.entities[k]
	if cats == nil {
		cats = make(map[domain.Category]domain.CategoryEmbedding, len(domain.AllCategories))
		s.entities[k] = cats
	}
	if existing, ok := cats[e.Category]; ok && existing.SameContent(&e) {
		return clone(existing), nil
	}
	e = clone(e)
	e.CreatedAt = s.now().UTC()
	cats[e.Category] = e
	return clone(e), nil
}

// Get returns one category embedding or domain.ErrNotFound.
func (s *Storage) Get(
	_ context.Context, t domain.EntityType, id string, c domain.Category,
) (domain.CategoryEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[entityKey{t, id}][c]
	if !ok {
		return domain.CategoryEmbedding{}, domain.ErrNotFound
	}
	return clone(e), nil
}

// BulkGet returns the stored embeddings of one category for the given ids.
func (s *Storage) BulkGet(
	_ context.Context, t domain.EntityType, ids []string, c domain.Category,
) (map[string]domain.CategoryEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.CategoryEmbedding, len(ids))
	for _, id := range ids {
		if e, ok := s.entities[entityKey{t, id}][c]; ok {
			out[id] = clone(e)
		}
	}
	return out, nil
}

// GetEntity returns every stored category of one entity in category order.
func (s *Storage) GetEntity(
	_ context.Context, t domain.EntityType, id string,
) ([]domain.CategoryEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cats := s.entities[entityKey{t, id}]
	var out []domain.CategoryEmbedding
	for _, c := range domain.AllCategories {
		if e, ok := cats[c]; ok {
			out = append(out, clone(e))
		}
	}
	return out, nil
}

// ListAll returns sorted ids of every entity of type t.
func (s *Storage) ListAll(_ context.Context, t domain.EntityType) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for k, cats := range s.entities {
		if k.t == t && len(cats) > 0 {
			ids = append(ids, k.id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete drops all embeddings of an entity.
func (s *Storage) Delete(_ context.Context, t domain.EntityType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entityKey{t, id}
	if len(s.entities[k]) == 0 {
		return fmt.Errorf("%s %s: %w", t, id, domain.ErrEntityNotFound)
	}
	delete(s.entities, k)
	return nil
}

func clone(e domain.CategoryEmbedding) domain.CategoryEmbedding {
	e.Vector = slices.Clone(e.Vector)
	e.Metadata = maps.Clone(e.Metadata)
	return e
}
