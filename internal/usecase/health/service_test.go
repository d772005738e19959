package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockChecker struct {
	err   error
	block bool
}

func (m *mockChecker) HealthCheck(ctx context.Context) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.err
}

// --- Tests ---

func TestCheck(t *testing.T) {
	down := errors.New("down")
	tests := []struct {
		name        string
		db          error
		embedding   Checker
		explanation Checker
		status      Status
		want        map[string]CheckResult
	}{
		{
			name:        "all healthy",
			embedding:   &mockChecker{},
			explanation: &mockChecker{},
			status:      Healthy,
			want:        map[string]CheckResult{"database": CheckOK, "embedding": CheckOK, "explanation": CheckOK},
		},
		{
			name:        "database down is unhealthy",
			db:          down,
			embedding:   &mockChecker{err: down},
			explanation: &mockChecker{},
			status:      Unhealthy,
			want:        map[string]CheckResult{"database": CheckError, "embedding": CheckError, "explanation": CheckOK},
		},
		{
			name:        "embedding down is degraded",
			embedding:   &mockChecker{err: down},
			explanation: &mockChecker{},
			status:      Degraded,
			want:        map[string]CheckResult{"database": CheckOK, "embedding": CheckError, "explanation": CheckOK},
		},
		{
			name:        "explanation down is degraded",
			embedding:   &mockChecker{},
			explanation: &mockChecker{err: down},
			status:      Degraded,
			want:        map[string]CheckResult{"database": CheckOK, "embedding": CheckOK, "explanation": CheckError},
		},
		{
			name:   "only database configured",
			status: Healthy,
			want:   map[string]CheckResult{"database": CheckOK},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(&mockPinger{err: tt.db}, tt.embedding, tt.explanation, zap.NewNop())
			r := svc.Check(context.Background())

			if r.Status != tt.status {
				t.Errorf("status = %q, want %q", r.Status, tt.status)
			}
			if len(r.Checks) != len(tt.want) {
				t.Fatalf("checks = %v, want %v", r.Checks, tt.want)
			}
			for k, v := range tt.want {
				if r.Checks[k] != v {
					t.Errorf("%s = %q, want %q", k, r.Checks[k], v)
				}
			}
			if r.Version == "" {
				t.Error("version missing")
			}
		})
	}
}

func TestCheck_SlowComponentTimesOut(t *testing.T) {
	svc := New(&mockPinger{}, &mockChecker{block: true}, nil, zap.NewNop())
	svc.timeout = 20 * time.Millisecond

	start := time.Now()
	r := svc.Check(context.Background())
	if time.Since(start) > time.Second {
		t.Fatal("check did not honour the timeout")
	}
	if r.Checks[ComponentEmbedding] != CheckError || r.Status != Degraded {
		t.Fatalf("unexpected report: %+v", r)
	}
}
