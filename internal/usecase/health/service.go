package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/version"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means matching works but an external model is unreachable.
	Degraded Status = "degraded"
	// Unhealthy means the vector store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Component names in the report.
const (
	ComponentDatabase    = "database"
	ComponentEmbedding   = "embedding"
	ComponentExplanation = "explanation"
)

const defaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status  Status
	Version string
	Checks  map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db          Pinger
	embedding   Checker
	explanation Checker
	timeout     time.Duration
	logger      *zap.Logger
}

// New creates a Service. embedding and explanation may be nil and are then left out of the report.
func New(db Pinger, embedding, explanation Checker, logger *zap.Logger) *Service {
	return &Service{
		db:          db,
		embedding:   embedding,
		explanation: explanation,
		timeout:     defaultCheckTimeout,
		logger:      logger,
	}
}

// Check runs all component checks in parallel, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	type component struct {
		name string
		fn   func(context.Context) error
	}
	components := []component{{ComponentDatabase, s.db.Ping}}
	if s.embedding != nil {
		components = append(components, component{ComponentEmbedding, s.embedding.HealthCheck})
	}
	if s.explanation != nil {
		components = append(components, component{ComponentExplanation, s.explanation.HealthCheck})
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(components))
	)
	for _, p := range components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := p.fn(cctx); err != nil {
				res = CheckError
				s.logger.Warn("Health check failed", zap.String("component", p.name), zap.Error(err))
			}
			mu.Lock()
			checks[p.name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := Healthy
	for name, v := range checks {
		if v != CheckError {
			continue
		}
		if name == ComponentDatabase {
			status = Unhealthy
			break
		}
		status = Degraded
	}

	return Report{Status: status, Version: version.Version, Checks: checks}
}
