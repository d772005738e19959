package vecmatch

import (
	"context"
	"errors"
	"time"

	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
)

// Health states reported by Client.Health.
const (
	StatusOK       = string(healthuc.Healthy)
	StatusDegraded = string(healthuc.Degraded)
	StatusError    = string(healthuc.Unhealthy)
)

var errUnhealthy = errors.New("vecmatch: storage unreachable")

// HealthStatus is the aggregated state of the store and embedder.
type HealthStatus struct {
	Status  string            // StatusOK, StatusDegraded or StatusError
	Version string            // library build version
	Checks  map[string]string // component name to "ok" or "error"
}

// Healthy reports whether ranking can be served. A degraded embedder still ranks.
func (h HealthStatus) Healthy() bool {
	return h.Status != StatusError
}

// Health checks every component concurrently.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()

	report := c.healthSvc.Check(ctx)
	out := HealthStatus{
		Status:  string(report.Status),
		Version: report.Version,
		Checks:  make(map[string]string, len(report.Checks)),
	}
	for k, v := range report.Checks {
		out.Checks[k] = string(v)
	}

	var err error
	if !out.Healthy() {
		err = errUnhealthy
	}
	c.obs.observe("health", start, err)
	return out
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
