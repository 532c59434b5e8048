package backoff

import (
	"context"
	"time"
)

// Sleep blocks for the policy's delay at the given attempt, returning early
// with the context error if the context is cancelled.
func Sleep(ctx context.Context, policy Policy, attempt int) error {
	delay := Compute(policy, attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
