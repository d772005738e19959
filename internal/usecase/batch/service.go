package batch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	dombatch "github.com/kailas-cloud/vecmatch/internal/domain/batch"
)

// Defaults for Options zero values.
const (
	DefaultMaxBatchSize = 100
	DefaultMaxAttempts  = 3
	DefaultBackoffBase  = 200 * time.Millisecond
	DefaultBackoffMax   = 5 * time.Second
	DefaultConcurrency  = 4
)

// Options configure retries and provider backpressure.
type Options struct {
	MaxBatchSize int
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	// Concurrency caps in-flight provider calls across all batches.
	Concurrency int64
	// RPS limits provider calls per second. Zero disables the limiter.
	RPS float64
}

// Metrics are optional collectors; nil fields are skipped.
type Metrics struct {
	Slots   *prometheus.CounterVec // label: status
	Retries prometheus.Counter
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeTransient
	outcomePermanent
)

// Service embeds profile texts and writes them through to the vector store.
// One Service is shared by all requests so the provider cap is process-wide.
type Service struct {
	embed   Embedder
	store   Upserter
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	opts    Options
	metrics Metrics
	logger  *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates the embedding pipeline.
func New(embed Embedder, store Upserter, opts Options, m Metrics, logger *zap.Logger) *Service {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = DefaultBackoffMax
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	s := &Service{
		embed:   embed,
		store:   store,
		sem:     semaphore.NewWeighted(opts.Concurrency),
		opts:    opts,
		metrics: m,
		logger:  logger,
		sleep:   sleepCtx,
	}
	if opts.RPS > 0 {
		burst := max(1, int(opts.RPS))
		s.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return s
}

// MaxBatchSize reports the configured batch limit.
func (s *Service) MaxBatchSize() int { return s.opts.MaxBatchSize }

// Create embeds a single request. It is the one-element batch.
func (s *Service) Create(ctx context.Context, req dombatch.Request) dombatch.Result {
	return s.CreateBatch(ctx, []dombatch.Request{req})[0]
}

// CreateBatch processes every request independently and concurrently.
// Results are returned in input order; one failing slot never affects another.
func (s *Service) CreateBatch(ctx context.Context, reqs []dombatch.Request) []dombatch.Result {
	results := make([]dombatch.Result, len(reqs))

	if len(reqs) > s.opts.MaxBatchSize {
		err := fmt.Errorf("batch size %d exceeds %d: %w", len(reqs), s.opts.MaxBatchSize, domain.ErrInvalidArgument)
		for i, req := range reqs {
			results[i] = dombatch.NewError(req, err, 0)
			s.countSlot(dombatch.StatusError)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.process(ctx, i, req)
			s.countSlot(results[i].Status())
		}()
	}
	wg.Wait()
	return results
}

func (s *Service) process(ctx context.Context, slot int, req dombatch.Request) dombatch.Result {
	if err := validate(req); err != nil {
		return dombatch.NewError(req, fmt.Errorf("item %d: %w", slot, err), 0)
	}

	res, attempts, err := s.embedWithRetry(ctx, req)
	if err != nil {
		s.logger.Error("Embedding failed",
			zap.Int("slot", slot),
			zap.String("entity_id", req.EntityID),
			zap.String("category", req.Category.String()),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return dombatch.NewError(req, fmt.Errorf("item %d: %w", slot, err), attempts)
	}

	stored, err := s.store.Upsert(ctx, domain.CategoryEmbedding{
		EntityID:   req.EntityID,
		EntityType: req.EntityType,
		Category:   req.Category,
		Vector:     res.Embedding,
		Metadata:   maps.Clone(req.Metadata),
	})
	if err != nil {
		return dombatch.NewError(req, fmt.Errorf("item %d: store: %w", slot, err), attempts)
	}
	return dombatch.NewOK(req, stored, attempts)
}

// embedWithRetry is a bounded loop over explicit attempt outcomes.
func (s *Service) embedWithRetry(
	ctx context.Context, req dombatch.Request,
) (domain.EmbeddingResult, int, error) {
	for attempt := 1; ; attempt++ {
		res, err := s.call(ctx, req)
		switch classify(ctx, err) {
		case outcomeOK:
			return res, attempt, nil
		case outcomePermanent:
			return domain.EmbeddingResult{}, attempt, err
		case outcomeTransient:
			if attempt >= s.opts.MaxAttempts {
				return domain.EmbeddingResult{}, attempt, fmt.Errorf("gave up after %d attempts: %w", attempt, err)
			}
			if s.metrics.Retries != nil {
				s.metrics.Retries.Inc()
			}
			d := backoff(s.opts.BackoffBase, s.opts.BackoffMax, attempt-1)
			s.logger.Debug("Retrying embedding",
				zap.String("entity_id", req.EntityID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", d),
				zap.Error(err),
			)
			if err := s.sleep(ctx, d); err != nil {
				return domain.EmbeddingResult{}, attempt, fmt.Errorf("retry wait: %w", err)
			}
		}
	}
}

// call runs one provider request under the shared semaphore and rate limiter.
func (s *Service) call(ctx context.Context, req dombatch.Request) (domain.EmbeddingResult, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("acquire provider slot: %w", err)
	}
	defer s.sem.Release(1)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("provider rate limit: %w", err)
		}
	}
	res, err := s.embed.EmbedCategory(ctx, req.Text, req.Category)
	if err != nil {
		return domain.EmbeddingResult{}, err //nolint:wrapcheck // classified by caller
	}
	if len(res.Embedding) == 0 {
		return domain.EmbeddingResult{}, domain.NewPermanentError(0, errors.New("provider returned an empty vector"))
	}
	for _, x := range res.Embedding {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return domain.EmbeddingResult{}, domain.NewPermanentError(0, errors.New("provider returned a non-finite vector"))
		}
	}
	return res, nil
}

func classify(ctx context.Context, err error) outcome {
	switch {
	case err == nil:
		return outcomeOK
	case ctx.Err() != nil:
		return outcomePermanent
	case domain.IsTransient(err), errors.Is(err, domain.ErrRateLimited):
		return outcomeTransient
	default:
		return outcomePermanent
	}
}

func validate(req dombatch.Request) error {
	if strings.TrimSpace(req.EntityID) == "" {
		return fmt.Errorf("entity id is required: %w", domain.ErrInvalidArgument)
	}
	if !req.EntityType.Valid() {
		return fmt.Errorf("invalid entity type %q: %w", req.EntityType, domain.ErrInvalidArgument)
	}
	if !req.Category.Valid() {
		return fmt.Errorf("invalid category %d: %w", int(req.Category), domain.ErrInvalidArgument)
	}
	n := utf8.RuneCountInString(strings.TrimSpace(req.Text))
	if n == 0 {
		return fmt.Errorf("text is empty: %w", domain.ErrInvalidArgument)
	}
	if n > domain.MaxTextLength {
		return fmt.Errorf("text has %d characters, limit %d: %w", n, domain.MaxTextLength, domain.ErrInvalidArgument)
	}
	return nil
}

func (s *Service) countSlot(status dombatch.ItemStatus) {
	if s.metrics.Slots != nil {
		s.metrics.Slots.WithLabelValues(string(status)).Inc()
	}
}
