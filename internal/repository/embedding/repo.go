package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// KeyPrefix namespaces every key written by the repository.
const KeyPrefix = "vecmatch:"

// store is the consumer interface for category embeddings (ISP).
type store interface {
	PutIndexed(ctx context.Context, key string, fields map[string]string, index, member string) error
	DeleteIndexed(ctx context.Context, keys []string, index, member string) (int, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	SMembers(ctx context.Context, index string) ([]string, error)
}

// Repo is the Redis-backed vector store.
// One hash per (entity type, entity id, category) plus a set of entity ids per type.
type Repo struct {
	store store
	now   func() time.Time
}

// New creates an embedding repository.
func New(s store) *Repo {
	return &Repo{store: s, now: time.Now}
}

// Upsert writes the embedding, superseding any prior one for the same identity key.
// Rewriting identical content is a no-op and keeps the original created_at.
func (r *Repo) Upsert(ctx context.Context, e domain.CategoryEmbedding) (domain.CategoryEmbedding, error) {
	if !e.EntityType.Valid() || !e.Category.Valid() || e.EntityID == "" {
		return domain.CategoryEmbedding{}, fmt.Errorf("upsert %s/%s/%s: %w",
			e.EntityType, e.EntityID, e.Category, domain.ErrInvalidArgument)
	}
	key := embeddingKey(e.EntityType, e.EntityID, e.Category)

	existing, err := r.Get(ctx, e.EntityType, e.EntityID, e.Category)
	switch {
	case err == nil:
		if existing.SameContent(&e) {
			return existing, nil
		}
	case !errors.Is(err, domain.ErrNotFound):
		return domain.CategoryEmbedding{}, err
	}

	e.CreatedAt = r.now().UTC().Truncate(time.Millisecond)
	fields, err := buildHashFields(&e)
	if err != nil {
		return domain.CategoryEmbedding{}, err
	}
	if err := r.store.PutIndexed(ctx, key, fields, entitiesKey(e.EntityType), e.EntityID); err != nil {
		return domain.CategoryEmbedding{}, fmt.Errorf("upsert %s: %w", key, err)
	}
	return e, nil
}

// Get returns one category embedding or domain.ErrNotFound.
func (r *Repo) Get(
	ctx context.Context, t domain.EntityType, id string, c domain.Category,
) (domain.CategoryEmbedding, error) {
	key := embeddingKey(t, id, c)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domain.CategoryEmbedding{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domain.CategoryEmbedding{}, domain.ErrNotFound
	}
	e, err := parseHashFields(m)
	if err != nil {
		return domain.CategoryEmbedding{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return e, nil
}

// BulkGet fetches one category for many entities in a single pipelined round trip.
// Ids without a stored embedding are absent from the result.
func (r *Repo) BulkGet(
	ctx context.Context, t domain.EntityType, ids []string, c domain.Category,
) (map[string]domain.CategoryEmbedding, error) {
	out := make(map[string]domain.CategoryEmbedding, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = embeddingKey(t, id, c)
	}
	rows, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("bulk get %s/%s: %w", t, c, err)
	}
	for i, m := range rows {
		if i >= len(ids) || len(m) == 0 {
			continue
		}
		e, err := parseHashFields(m)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", keys[i], err)
		}
		out[ids[i]] = e
	}
	return out, nil
}

// GetEntity returns every stored category of one entity.
func (r *Repo) GetEntity(
	ctx context.Context, t domain.EntityType, id string,
) ([]domain.CategoryEmbedding, error) {
	keys := make([]string, 0, len(domain.AllCategories))
	for _, c := range domain.AllCategories {
		keys = append(keys, embeddingKey(t, id, c))
	}
	rows, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get entity %s/%s: %w", t, id, err)
	}
	var out []domain.CategoryEmbedding
	for i, m := range rows {
		if len(m) == 0 {
			continue
		}
		e, err := parseHashFields(m)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", keys[i], err)
		}
		out = append(out, e)
	}
	return out, nil
}

// ListAll returns the ids of every entity of the given type, sorted.
func (r *Repo) ListAll(ctx context.Context, t domain.EntityType) ([]string, error) {
	ids, err := r.store.SMembers(ctx, entitiesKey(t))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes all category embeddings of an entity.
// Returns domain.ErrEntityNotFound when nothing is stored for it.
func (r *Repo) Delete(ctx context.Context, t domain.EntityType, id string) error {
	keys := make([]string, 0, len(domain.AllCategories))
	for _, c := range domain.AllCategories {
		keys = append(keys, embeddingKey(t, id, c))
	}
	n, err := r.store.DeleteIndexed(ctx, keys, entitiesKey(t), id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", t, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", t, id, domain.ErrEntityNotFound)
	}
	return nil
}

func embeddingKey(t domain.EntityType, id string, c domain.Category) string {
	return fmt.Sprintf("%semb:%s:%s:%s", KeyPrefix, t, id, c)
}

func entitiesKey(t domain.EntityType) string {
	return KeyPrefix + "entities:" + string(t)
}
