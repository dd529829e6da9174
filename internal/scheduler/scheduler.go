package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// AggregateRetrier replays queued customer counter updates.
type AggregateRetrier interface {
	RetryPending(ctx context.Context) (int, error)
}

// LowStockSweeper announces products at or under their threshold.
type LowStockSweeper interface {
	SweepLowStock(ctx context.Context) (int, error)
}

type Config struct {
	Location         *time.Location
	AggregateRetry   string
	LowStockSchedule string
	JobTimeout       time.Duration
}

type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

func New(cfg Config, retrier AggregateRetrier, sweeper LowStockSweeper) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithParser(cronParser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		timeout: cfg.JobTimeout,
	}
	if s.timeout <= 0 {
		s.timeout = time.Minute
	}

	if cfg.AggregateRetry != "" {
		if _, err := s.cron.AddFunc(cfg.AggregateRetry, s.job("aggregate_retry", retrier.RetryPending)); err != nil {
			return nil, err
		}
	}
	if cfg.LowStockSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.LowStockSchedule, s.job("low_stock_sweep", sweeper.SweepLowStock)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) job(name string, fn func(ctx context.Context) (int, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		n, err := fn(ctx)
		if err != nil {
			zap.S().Errorf("job %s failed: %s", name, err.Error())
			return
		}
		if n > 0 {
			zap.L().Info("job finished", zap.String("job", name), zap.Int("processed", n))
		}
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
