package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/newslens/newslens/internal/config"
)

// Scheduler drives periodic pipeline runs and the daily trend job. Ticks
// that arrive while a run is still in flight collapse into at most one
// pending run, so a slow run never builds a backlog.
type Scheduler struct {
	runner *Runner
	cfg    *config.Config
	logger *log.Logger
}

// NewScheduler builds a scheduler over an existing runner.
func NewScheduler(runner *Runner, cfg *config.Config, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{runner: runner, cfg: cfg, logger: logger}
}

// Run blocks until ctx is cancelled. An initial pipeline run fires
// immediately; afterwards runs repeat every interval and the trend job
// fires once per day at the configured UTC hour.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.Pipeline.IntervalMins) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	trendTimer := time.NewTimer(time.Until(s.nextTrendAt(time.Now().UTC())))
	defer trendTimer.Stop()

	// Capacity 1: a tick during a run parks exactly one catch-up run.
	pending := make(chan struct{}, 1)
	pending <- struct{}{}

	s.logger.Printf("scheduler: pipeline every %s, trends daily at %02d:00 UTC", interval, s.cfg.Pipeline.TrendHourUTC)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			select {
			case pending <- struct{}{}:
			default:
				s.logger.Printf("scheduler: run still pending, coalescing tick")
			}
		case <-trendTimer.C:
			if _, err := s.runner.RunTrends(ctx, time.Now()); err != nil {
				s.logger.Printf("scheduler: trend job failed: %v", err)
			}
			trendTimer.Reset(time.Until(s.nextTrendAt(time.Now().UTC())))
		case <-pending:
			if _, err := s.runner.RunAll(ctx); err != nil {
				s.logger.Printf("scheduler: pipeline run finished with errors: %v", err)
			}
		}
	}
}

// nextTrendAt returns the next daily trend fire time strictly after now.
func (s *Scheduler) nextTrendAt(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.Pipeline.TrendHourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
