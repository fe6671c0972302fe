package usecase

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, AttemptTimeout: time.Second}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), policy, "render", 1, func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("timeout")
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Fatalf("expected success on third call, got err=%v calls=%d", err, calls)
		}
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		boom := errors.New("bucket unavailable")
		calls := 0
		err := retry(context.Background(), policy, "upload", 1, func(ctx context.Context) error {
			calls++
			return boom
		})
		if !errors.Is(err, boom) || calls != 3 {
			t.Fatalf("expected wrapped error after 3 calls, got err=%v calls=%d", err, calls)
		}
	})

	t.Run("each attempt has a deadline", func(t *testing.T) {
		p := RetryPolicy{Attempts: 2, InitialBackoff: time.Millisecond, AttemptTimeout: 20 * time.Millisecond}
		err := retry(context.Background(), p, "render", 1, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("stops when the caller gives up", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := RetryPolicy{Attempts: 5, InitialBackoff: time.Hour}
		calls := 0
		err := retry(ctx, p, "upload", 1, func(context.Context) error {
			calls++
			cancel()
			return errors.New("refused")
		})
		if err == nil || calls != 1 {
			t.Fatalf("expected abort after first call, got err=%v calls=%d", err, calls)
		}
	})
}
