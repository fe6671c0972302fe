package usecase

import (
	"context"
	"fmt"
	"log"
	"time"
)

// RetryPolicy bounds the attempts made against a remote collaborator
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// retry runs fn until it succeeds or the attempts are exhausted.
// Every attempt gets its own deadline; backoff doubles up to MaxBackoff.
func retry(ctx context.Context, p RetryPolicy, stage string, orderID int64, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		lastErr = fn(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}

		log.Printf("[finalize][usecase] stage=%s attempt=%d/%d order_id=%d err=%v", stage, attempt, attempts, orderID, lastErr)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s aborted after %d attempts: %w", stage, attempt, lastErr)
		case <-time.After(backoff):
		}
		backoff *= 2
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", stage, attempts, lastErr)
}
