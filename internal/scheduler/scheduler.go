// Package scheduler runs the agent's periodic housekeeping: closing editor
// sessions nobody touches anymore and dropping old finished jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/heimdex/heimdex-editor/internal/logging"
)

const (
	SessionSpec = "@every 1m"
	JobSpec     = "@hourly"
)

// SessionPruner closes sessions idle for longer than maxIdle.
type SessionPruner interface {
	PruneIdle(maxIdle time.Duration, now time.Time) int
}

// JobCleaner deletes finished jobs last updated before a cutoff.
type JobCleaner interface {
	DeleteFinishedJobs(ctx context.Context, before time.Time) (int64, error)
}

type Config struct {
	Sessions     SessionPruner
	Jobs         JobCleaner
	SessionIdle  time.Duration
	JobRetention time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

type Scheduler struct {
	cron   *cron.Cron
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) (*Scheduler, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := logging.WithComponent(cfg.Logger, "scheduler")

	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger))),
		cfg:    cfg,
		logger: logger,
	}

	if cfg.Sessions != nil && cfg.SessionIdle > 0 {
		if _, err := s.cron.AddFunc(SessionSpec, func() { s.PruneSessions() }); err != nil {
			return nil, fmt.Errorf("schedule session pruning: %w", err)
		}
	}
	if cfg.Jobs != nil && cfg.JobRetention > 0 {
		if _, err := s.cron.AddFunc(JobSpec, func() { s.CleanJobs(context.Background()) }); err != nil {
			return nil, fmt.Errorf("schedule job cleanup: %w", err)
		}
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", "entries", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop halts the schedule and waits for running tasks up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

// PruneSessions closes idle sessions now and returns how many were closed.
func (s *Scheduler) PruneSessions() int {
	n := s.cfg.Sessions.PruneIdle(s.cfg.SessionIdle, s.cfg.Now())
	if n > 0 {
		s.logger.Info("idle sessions closed", "count", n)
	}
	return n
}

// CleanJobs deletes finished jobs older than the retention.
func (s *Scheduler) CleanJobs(ctx context.Context) (int64, error) {
	cutoff := s.cfg.Now().Add(-s.cfg.JobRetention)
	n, err := s.cfg.Jobs.DeleteFinishedJobs(ctx, cutoff)
	if err != nil {
		s.logger.Error("job cleanup failed", "error", err)
		return 0, err
	}
	if n > 0 {
		s.logger.Info("finished jobs deleted", "count", n, "before", cutoff.Format(time.RFC3339))
	}
	return n, nil
}
