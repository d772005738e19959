package health

import "context"

// Pinger checks vector store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker checks an external model provider.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
