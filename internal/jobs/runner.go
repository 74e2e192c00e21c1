package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/metrics"

	"go.uber.org/zap"
)

const maxRetryDelay = 30 * time.Second

// Job is one idempotent unit of scheduled work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner executes a job once per slot, under a lease, retrying store failures
// with exponential backoff.
type Runner struct {
	locker      Locker
	lockTTL     time.Duration
	maxAttempts int
	baseDelay   time.Duration
	metrics     *metrics.Metrics
	log         *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRunner(locker Locker, lockTTL time.Duration, maxAttempts int, baseDelay time.Duration, m *metrics.Metrics, log *zap.Logger) *Runner {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Runner{
		locker:      locker,
		lockTTL:     lockTTL,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		metrics:     m,
		log:         log,
		sleep:       sleepContext,
	}
}

// ErrSkipped means another replica holds the slot's lease.
var ErrSkipped = errors.New("job slot already taken")

// RunOnce runs job for slot. Two calls with the same slot run the job at most
// once while the lease lasts.
func (r *Runner) RunOnce(ctx context.Context, job Job, slot string) error {
	key := fmt.Sprintf("jobs:%s:%s", job.Name, slot)
	ok, err := r.locker.Acquire(ctx, key, r.lockTTL)
	if err != nil {
		// A broken lock backend must not stop the ledger jobs; they are idempotent.
		r.log.Warn("job lock unavailable, running unlocked", zap.String("job", job.Name), zap.Error(err))
	} else if !ok {
		r.metrics.JobRun(job.Name, "skipped", 0)
		r.log.Debug("job slot taken", zap.String("job", job.Name), zap.String("slot", slot))
		return ErrSkipped
	}

	start := time.Now()
	err = r.retry(ctx, job)
	elapsed := time.Since(start)
	if err != nil {
		r.metrics.JobRun(job.Name, "error", elapsed.Seconds())
		r.log.Error("job failed", zap.String("job", job.Name), zap.String("slot", slot), zap.Duration("elapsed", elapsed), zap.Error(err))
		return err
	}
	r.metrics.JobRun(job.Name, "ok", elapsed.Seconds())
	r.log.Debug("job done", zap.String("job", job.Name), zap.String("slot", slot), zap.Duration("elapsed", elapsed))
	return nil
}

func (r *Runner) retry(ctx context.Context, job Job) error {
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err = job.Run(ctx); err == nil || !retryable(err) || attempt == r.maxAttempts {
			return err
		}
		delay := Backoff(r.baseDelay, attempt)
		r.log.Warn("job attempt failed",
			zap.String("job", job.Name),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))
		if serr := r.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return err
}

// retryable is false for ledger errors, which a retry cannot fix, and for cancellation.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return domain.Code(err) == "INTERNAL"
}

// Backoff returns base * 2^(attempt-1), capped at 30s.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 1 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
