package jobs

import (
	"context"
	"errors"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/ranking"
	"promoledger/internal/service"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	JobResetDaily  = "reset-daily"
	JobActivateDue = "activate-due"
	JobRecompute   = "recompute-scores"
)

type Ledger interface {
	ResetDaily(ctx context.Context) (service.ResetResult, error)
	ActivateDue(ctx context.Context) (int64, error)
}

type Ranker interface {
	RecomputeAll(ctx context.Context) ([]ranking.Result, error)
}

// Scheduler drives the ledger's background jobs until its context ends.
type Scheduler struct {
	runner             *Runner
	ledger             Ledger
	ranker             Ranker
	activationInterval time.Duration
	rankingInterval    time.Duration
	log                *zap.Logger
	now                func() time.Time
}

func NewScheduler(runner *Runner, ledger Ledger, ranker Ranker, activationInterval, rankingInterval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:             runner,
		ledger:             ledger,
		ranker:             ranker,
		activationInterval: activationInterval,
		rankingInterval:    rankingInterval,
		log:                log,
		now:                time.Now,
	}
}

func (s *Scheduler) ResetDailyJob() Job {
	return Job{Name: JobResetDaily, Run: func(ctx context.Context) error {
		_, err := s.ledger.ResetDaily(ctx)
		return err
	}}
}

func (s *Scheduler) ActivateDueJob() Job {
	return Job{Name: JobActivateDue, Run: func(ctx context.Context) error {
		_, err := s.ledger.ActivateDue(ctx)
		return err
	}}
}

func (s *Scheduler) RecomputeJob() Job {
	return Job{Name: JobRecompute, Run: func(ctx context.Context) error {
		_, err := s.ranker.RecomputeAll(ctx)
		return err
	}}
}

// Run blocks until ctx is cancelled. The daily reset also runs once at start
// so a replica that was down over midnight catches up.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.daily(ctx) })
	g.Go(func() error { return s.every(ctx, s.activationInterval, s.ActivateDueJob()) })
	g.Go(func() error { return s.every(ctx, s.rankingInterval, s.RecomputeJob()) })
	s.log.Info("scheduler started",
		zap.Duration("activation_interval", s.activationInterval),
		zap.Duration("ranking_interval", s.rankingInterval))
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Scheduler) daily(ctx context.Context) error {
	job := s.ResetDailyJob()
	for {
		now := s.now()
		s.runSlot(ctx, job, domain.UTCDay(now))
		if err := sleepContext(ctx, domain.NextUTCMidnight(now).Sub(s.now())); err != nil {
			return err
		}
	}
}

func (s *Scheduler) every(ctx context.Context, interval time.Duration, job Job) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.runSlot(ctx, job, slotFor(s.now(), interval))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runSlot never fails the scheduler: a failed slot is logged and the next one retried.
func (s *Scheduler) runSlot(ctx context.Context, job Job, slot string) {
	if err := s.runner.RunOnce(ctx, job, slot); err != nil && !errors.Is(err, ErrSkipped) && ctx.Err() == nil {
		s.log.Warn("scheduled job slot failed", zap.String("job", job.Name), zap.String("slot", slot), zap.Error(err))
	}
}

// slotFor names the interval bucket containing t, shared by all replicas.
func slotFor(t time.Time, interval time.Duration) string {
	return t.UTC().Truncate(interval).Format(time.RFC3339)
}
