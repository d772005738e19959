package weights

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
)

// Snapshot is an immutable view of the current weights.
type Snapshot struct {
	Weights   domain.WeightSet
	UpdatedAt time.Time
	UpdatedBy string
}

// Service owns the process-wide WeightSet.
// Reads load an immutable snapshot; updates are serialized and swap the pointer.
type Service struct {
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a weight service seeded with initial weights.
func New(initial domain.WeightSet, logger *zap.Logger) (*Service, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("initial weights: %w", err)
	}
	s := &Service{now: time.Now, logger: logger}
	s.current.Store(&Snapshot{Weights: initial, UpdatedAt: s.now()})
	return s, nil
}

// Get returns the current weights.
func (s *Service) Get() domain.WeightSet {
	return s.current.Load().Weights
}

// Snapshot returns the current weights with update metadata.
func (s *Service) Snapshot() Snapshot {
	return *s.current.Load()
}

// Update validates and installs new weights. On validation failure the current weights stay.
func (s *Service) Update(w domain.WeightSet, updatedBy string) (Snapshot, error) {
	if err := w.Validate(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Snapshot{Weights: w, UpdatedAt: s.now(), UpdatedBy: updatedBy}
	s.current.Store(next)

	s.logger.Info("Matching weights updated",
		zap.Float64("skills", w.Of(domain.CategorySkills)),
		zap.Float64("career", w.Of(domain.CategoryCareer)),
		zap.Float64("culture", w.Of(domain.CategoryCulture)),
		zap.Float64("salary", w.Of(domain.CategorySalary)),
		zap.String("updated_by", updatedBy),
	)
	return *next, nil
}
