package batch

import (
	"context"
	"math/rand/v2"
	"time"
)

const jitterFactor = 0.5

// backoff returns base*2^retry plus up to 50% jitter, never above maxDelay.
// retry is zero-based.
func backoff(base, maxDelay time.Duration, retry int) time.Duration {
	d := base
	for range retry {
		d *= 2
		if d >= maxDelay {
			d = maxDelay
			break
		}
	}
	d += time.Duration(rand.Float64() * jitterFactor * float64(d)) //nolint:gosec // jitter, not crypto
	return min(d, maxDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
