package script

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/unalkalkan/podcaster/internal/apperrors"
)

// retry runs fn until it succeeds, fails with a non-retryable error or the
// retry budget is spent. It returns the number of attempts made.
func (g *Generator) retry(ctx context.Context, op string, fn func() error) (int, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, apperrors.New(apperrors.KindCanceled, "", err)
		}

		err := fn()
		if err == nil {
			return attempt + 1, nil
		}
		if ctx.Err() != nil {
			return attempt + 1, apperrors.New(apperrors.KindCanceled, "", ctx.Err())
		}
		if apperrors.IsCanceled(err) || !apperrors.IsRetryable(err) || attempt >= g.cfg.MaxRetries {
			return attempt + 1, err
		}

		delay := g.backoff(attempt)
		slog.Warn("model call failed, retrying", "provider", g.name, "operation", op,
			"attempt", attempt+1, "max_retries", g.cfg.MaxRetries, "delay", delay, "error", err)

		if err := g.sleep(ctx, delay); err != nil {
			return attempt + 1, apperrors.New(apperrors.KindCanceled, "", err)
		}
	}
}

// backoff returns base × 2^attempt scaled by a jitter factor in [0.8, 1.2)
func (g *Generator) backoff(attempt int) time.Duration {
	base := float64(g.cfg.RetryBaseDelay) * math.Pow(2, float64(attempt))
	return time.Duration(base * g.jitter())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
