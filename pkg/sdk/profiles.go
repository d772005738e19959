package vecmatch

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	dombatch "github.com/kailas-cloud/vecmatch/internal/domain/batch"
)

// Embed vectorizes one category text of an entity and stores it, replacing any previous vector.
func (c *Client) Embed(ctx context.Context, req EmbedRequest) (_ Embedding, err error) {
	start := time.Now()
	defer func() { c.obs.observe("embed", start, err) }()

	r, err := toDomainRequest(req)
	if err != nil {
		return Embedding{}, fmt.Errorf("embed: %w", err)
	}
	res := c.pipeline.Create(ctx, r)
	if res.Err() != nil {
		return Embedding{}, fmt.Errorf("embed: %w", res.Err())
	}
	return fromDomainEmbedding(res.Embedding()), nil
}

// EmbedBatch processes every request independently. Results are in input order;
// a failing slot does not affect the others.
func (c *Client) EmbedBatch(ctx context.Context, reqs []EmbedRequest) []BatchResult {
	start := time.Now()

	out := make([]BatchResult, len(reqs))
	pending := make([]dombatch.Request, 0, len(reqs))
	slots := make([]int, 0, len(reqs))
	failed := 0
	for i, req := range reqs {
		r, err := toDomainRequest(req)
		if err != nil {
			out[i].Err = err
			failed++
			continue
		}
		pending = append(pending, r)
		slots = append(slots, i)
	}

	for j, res := range c.pipeline.CreateBatch(ctx, pending) {
		i := slots[j]
		out[i].Attempts = res.Attempts()
		if res.Err() != nil {
			out[i].Err = res.Err()
			failed++
			continue
		}
		out[i].Embedding = fromDomainEmbedding(res.Embedding())
	}

	var err error
	if failed > 0 {
		err = fmt.Errorf("%d of %d items failed", failed, len(reqs))
	}
	c.obs.observe("embed_batch", start, err)
	return out
}

// DeleteEntity removes every stored category of an entity.
func (c *Client) DeleteEntity(ctx context.Context, t EntityType, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_entity", start, err) }()

	et, err := domain.ParseEntityType(string(t))
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	if err = c.backend.store.Delete(ctx, et, id); err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	return nil
}

func toDomainRequest(req EmbedRequest) (dombatch.Request, error) {
	t, err := domain.ParseEntityType(string(req.EntityType))
	if err != nil {
		return dombatch.Request{}, err //nolint:wrapcheck // already carries ErrInvalidArgument
	}
	c, err := domain.ParseCategory(string(req.Category))
	if err != nil {
		return dombatch.Request{}, err //nolint:wrapcheck // already carries ErrInvalidArgument
	}
	return dombatch.Request{
		EntityID:   req.EntityID,
		EntityType: t,
		Category:   c,
		Text:       req.Text,
		Metadata:   req.Metadata,
	}, nil
}
