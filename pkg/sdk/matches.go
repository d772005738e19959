package vecmatch

import (
	"context"
	"fmt"
	"time"

	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
)

// Rank returns the best vacancies for a candidate, best first.
func (c *Client) Rank(ctx context.Context, candidateID string, opts RankOptions) (_ Ranking, err error) {
	start := time.Now()
	defer func() { c.obs.observe("rank", start, err) }()

	q, err := toQuery(candidateID, opts)
	if err != nil {
		return Ranking{}, fmt.Errorf("rank: %w", err)
	}
	r, err := c.ranker.Rank(ctx, q)
	if err != nil {
		return Ranking{}, fmt.Errorf("rank: %w", err)
	}
	return fromDomainRanking(r), nil
}

// RankBatch ranks several candidates against the same pool.
// A candidate without embeddings fails only its own item.
func (c *Client) RankBatch(
	ctx context.Context, candidateIDs []string, opts RankOptions,
) (_ []CandidateRanking, err error) {
	start := time.Now()
	defer func() { c.obs.observe("rank_batch", start, err) }()

	q, err := toQuery("", opts)
	if err != nil {
		return nil, fmt.Errorf("rank batch: %w", err)
	}
	items, err := c.ranker.RankBatch(ctx, candidateIDs, q)
	if err != nil {
		return nil, fmt.Errorf("rank batch: %w", err)
	}
	out := make([]CandidateRanking, len(items))
	for i, it := range items {
		if it.Err != nil {
			out[i] = CandidateRanking{Ranking: Ranking{CandidateID: it.CandidateID}, Err: it.Err}
			continue
		}
		out[i] = CandidateRanking{Ranking: fromDomainRanking(it.Ranking)}
	}
	return out, nil
}

// Explain scores one pair and describes it. The embedded client has no language
// model, so the text is always the local fallback.
func (c *Client) Explain(ctx context.Context, candidateID, vacancyID string) (_ Explanation, err error) {
	start := time.Now()
	defer func() { c.obs.observe("explain", start, err) }()

	e, err := c.explainer.Explain(ctx, candidateID, vacancyID)
	if err != nil {
		return Explanation{}, fmt.Errorf("explain: %w", err)
	}
	return Explanation{
		Score:       e.Match.OverallScore,
		Text:        e.Text,
		KeyFactors:  e.KeyFactors,
		Suggestions: e.Suggestions,
		Fallback:    e.Fallback,
	}, nil
}

func toQuery(candidateID string, opts RankOptions) (matchuc.Query, error) {
	w, err := toDomainWeights(opts.Weights)
	if err != nil {
		return matchuc.Query{}, err
	}
	q := matchuc.Query{
		CandidateID: candidateID,
		Pool:        opts.Pool,
		MinScore:    opts.MinScore,
		Weights:     w,
	}
	if opts.TopK != 0 {
		k := opts.TopK
		q.TopK = &k
	}
	return q, nil
}
