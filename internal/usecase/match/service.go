package match

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/similarity"
)

// Limits and defaults for ranking queries.
const (
	MaxTopK              = 100
	DefaultTopK          = 5
	DefaultMinScore      = 0.3
	DefaultChunkSize     = 500
	DefaultFetchParallel = 8
	MaxBatchCandidates   = 100
)

// Options tune the ranker. Zero values fall back to the defaults above.
type Options struct {
	DefaultTopK     int
	DefaultMinScore *float64
	ChunkSize       int
	FetchParallel   int
}

// Metrics are optional collectors; nil fields are skipped.
type Metrics struct {
	RankDuration prometheus.Observer
	SkippedPairs prometheus.Counter
}

// Query describes one ranking call. Nil pointers take the configured defaults.
// An empty Pool ranks against every stored vacancy.
type Query struct {
	CandidateID string
	Pool        []string
	TopK        *int
	MinScore    *float64
	Weights     *domain.WeightSet
}

// BatchItem is the ranking outcome of one candidate in a batch.
type BatchItem struct {
	CandidateID string
	Ranking     domain.Ranking
	Err         error
}

// Service ranks vacancies for a candidate.
type Service struct {
	store   VectorReader
	weights WeightsProvider
	opts    Options
	metrics Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a ranking service.
func New(store VectorReader, weights WeightsProvider, opts Options, m Metrics, logger *zap.Logger) *Service {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = DefaultTopK
	}
	if opts.DefaultMinScore == nil {
		d := DefaultMinScore
		opts.DefaultMinScore = &d
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.FetchParallel <= 0 {
		opts.FetchParallel = DefaultFetchParallel
	}
	return &Service{store: store, weights: weights, opts: opts, metrics: m, logger: logger, now: time.Now}
}

type params struct {
	topK     int
	minScore float64
	weights  domain.WeightSet
}

// Rank scores the candidate against the pool and returns the best matches,
// ordered by score descending then vacancy id ascending.
func (s *Service) Rank(ctx context.Context, q Query) (domain.Ranking, error) {
	start := s.now()

	p, err := s.resolve(q)
	if err != nil {
		return domain.Ranking{}, err
	}
	if q.CandidateID == "" {
		return domain.Ranking{}, fmt.Errorf("candidate id is required: %w", domain.ErrInvalidArgument)
	}

	cand, err := s.loadCandidate(ctx, q.CandidateID)
	if err != nil {
		return domain.Ranking{}, err
	}

	pool, vacancies, err := s.loadPool(ctx, q.Pool)
	if err != nil {
		return domain.Ranking{}, err
	}

	r := s.score(q.CandidateID, cand, pool, vacancies, p)
	r.Elapsed = s.now().Sub(start)
	if s.metrics.RankDuration != nil {
		s.metrics.RankDuration.Observe(r.Elapsed.Seconds())
	}
	return r, nil
}

// RankBatch ranks several candidates against one pool. The pool is fetched once;
// per-candidate failures are reported in the item and do not fail the batch.
func (s *Service) RankBatch(ctx context.Context, candidateIDs []string, q Query) ([]BatchItem, error) {
	if len(candidateIDs) == 0 || len(candidateIDs) > MaxBatchCandidates {
		return nil, fmt.Errorf("candidate count %d outside 1..%d: %w",
			len(candidateIDs), MaxBatchCandidates, domain.ErrInvalidArgument)
	}
	p, err := s.resolve(q)
	if err != nil {
		return nil, err
	}

	pool, vacancies, err := s.loadPool(ctx, q.Pool)
	if err != nil {
		return nil, err
	}

	items := make([]BatchItem, len(candidateIDs))
	for i, id := range candidateIDs {
		start := s.now()
		items[i].CandidateID = id
		cand, err := s.loadCandidate(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err() //nolint:wrapcheck // cancellation passes through
			}
			s.logger.Warn("Batch ranking failed for candidate", zap.String("candidate_id", id), zap.Error(err))
			items[i].Err = err
			continue
		}
		items[i].Ranking = s.score(id, cand, pool, vacancies, p)
		items[i].Ranking.Elapsed = s.now().Sub(start)
	}
	return items, nil
}

func (s *Service) resolve(q Query) (params, error) {
	p := params{topK: s.opts.DefaultTopK, minScore: *s.opts.DefaultMinScore}
	if q.TopK != nil {
		p.topK = *q.TopK
	}
	if p.topK <= 0 || p.topK > MaxTopK {
		return params{}, fmt.Errorf("top_k %d outside 1..%d: %w", p.topK, MaxTopK, domain.ErrInvalidArgument)
	}
	if q.MinScore != nil {
		p.minScore = *q.MinScore
	}
	if math.IsNaN(p.minScore) || p.minScore < -1 || p.minScore > 1 {
		return params{}, fmt.Errorf("min_score %v outside [-1,1]: %w", p.minScore, domain.ErrInvalidArgument)
	}
	if q.Weights != nil {
		if err := q.Weights.Validate(); err != nil {
			return params{}, fmt.Errorf("weights override: %w: %w", domain.ErrInvalidArgument, err)
		}
		p.weights = *q.Weights
	} else {
		p.weights = s.weights.Get()
	}
	return p, nil
}

func (s *Service) loadCandidate(ctx context.Context, id string) (similarity.Vectors, error) {
	embs, err := s.store.GetEntity(ctx, domain.EntityCandidate, id)
	if err != nil {
		return nil, fmt.Errorf("load candidate %s: %w", id, err)
	}
	if len(embs) == 0 {
		return nil, fmt.Errorf("candidate %s: %w", id, domain.ErrEntityNotFound)
	}
	return similarity.FromEmbeddings(embs), nil
}

// loadPool resolves the vacancy ids and fetches their vectors.
// Ids of an explicit pool must all have at least one stored category.
func (s *Service) loadPool(ctx context.Context, explicit []string) ([]string, map[string]similarity.Vectors, error) {
	var ids []string
	if len(explicit) == 0 {
		all, err := s.store.ListAll(ctx, domain.EntityVacancy)
		if err != nil {
			return nil, nil, fmt.Errorf("list vacancies: %w", err)
		}
		ids = all
	} else {
		ids = dedupe(explicit)
		for _, id := range ids {
			if id == "" {
				return nil, nil, fmt.Errorf("empty vacancy id in pool: %w", domain.ErrInvalidArgument)
			}
		}
	}

	vecs, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	if len(explicit) > 0 {
		for _, id := range ids {
			if _, ok := vecs[id]; !ok {
				return nil, nil, fmt.Errorf("vacancy %s: %w", id, domain.ErrEntityNotFound)
			}
		}
	}
	return ids, vecs, nil
}

// fetch issues one BulkGet per category per chunk of ids. Chunks not yet
// started when ctx is cancelled are skipped.
func (s *Service) fetch(ctx context.Context, ids []string) (map[string]similarity.Vectors, error) {
	out := make(map[string]similarity.Vectors, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.FetchParallel)

	for lo := 0; lo < len(ids); lo += s.opts.ChunkSize {
		chunk := ids[lo:min(lo+s.opts.ChunkSize, len(ids))]
		for _, c := range domain.AllCategories {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err //nolint:wrapcheck // cancellation passes through
				}
				got, err := s.store.BulkGet(gctx, domain.EntityVacancy, chunk, c)
				if err != nil {
					return fmt.Errorf("fetch vacancies %s: %w", c, err)
				}
				mu.Lock()
				defer mu.Unlock()
				for id, e := range got {
					v := out[id]
					if v == nil {
						v = make(similarity.Vectors, len(domain.AllCategories))
						out[id] = v
					}
					v[c] = e.Vector
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // already wrapped per chunk
	}
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // cancellation passes through
	}
	return out, nil
}

func (s *Service) score(
	candidateID string,
	cand similarity.Vectors,
	pool []string,
	vacancies map[string]similarity.Vectors,
	p params,
) domain.Ranking {
	r := domain.Ranking{CandidateID: candidateID, Weights: p.weights}
	matches := make([]domain.MatchResult, 0, min(len(pool), p.topK*4))

	for _, vid := range pool {
		vac, ok := vacancies[vid]
		if !ok {
			// Listed but deleted before the fetch.
			r.Skipped++
			continue
		}
		m, err := similarity.ScorePair(candidateID, vid, cand, vac, p.weights)
		if err != nil {
			// Only domain.ErrInsufficientData is possible here.
			r.Skipped++
			s.logger.Debug("Pair skipped",
				zap.String("candidate_id", candidateID),
				zap.String("vacancy_id", vid),
				zap.Error(err),
			)
			continue
		}
		if m.OverallScore >= p.minScore {
			matches = append(matches, m)
		}
	}

	if s.metrics.SkippedPairs != nil && r.Skipped > 0 {
		s.metrics.SkippedPairs.Add(float64(r.Skipped))
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].OverallScore != matches[j].OverallScore {
			return matches[i].OverallScore > matches[j].OverallScore
		}
		return matches[i].VacancyID < matches[j].VacancyID
	})

	r.TotalFound = len(matches)
	if len(matches) > p.topK {
		matches = matches[:p.topK]
	}
	r.Matches = matches

	if ce := s.logger.Check(zap.DebugLevel, "Ranking done"); ce != nil {
		ce.Write(
			zap.String("candidate_id", candidateID),
			zap.Int("pool", len(pool)),
			zap.Int("found", r.TotalFound),
			zap.Int("skipped", r.Skipped),
		)
	}
	return r
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
