package catalog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// JobHandler executes one workflow job. Progress and output are reported
// through the repository; the returned error becomes the job's error.
type JobHandler interface {
	Handle(ctx context.Context, job *Job) error
}

// Runner polls for pending jobs and runs them one at a time.
type Runner struct {
	repo         Repository
	handler      JobHandler
	logger       *slog.Logger
	pollInterval time.Duration
	wake         chan struct{}
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(repo Repository, handler JobHandler, logger *slog.Logger) *Runner {
	return &Runner{
		repo:         repo,
		handler:      handler,
		logger:       logger,
		pollInterval: 5 * time.Second,
		wake:         make(chan struct{}, 1),
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started")

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
		case <-r.wake:
		}
		if r.paused.Load() {
			continue
		}
		for r.processNextJob(ctx) {
			if ctx.Err() != nil || r.paused.Load() {
				break
			}
		}
	}
}

// Wake makes the runner look for pending jobs now instead of at the next poll.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
	r.Wake()
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// processNextJob runs the oldest pending job and reports whether there was one.
func (r *Runner) processNextJob(ctx context.Context) bool {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return false
	}
	if len(jobs) == 0 {
		return false
	}

	job := jobs[0]
	Execute(ctx, r.repo, r.handler, job, r.logger)
	return true
}

// Execute moves job through running to completed or failed around handler.
// Both the local runner and the queue worker use it.
func Execute(ctx context.Context, repo Repository, handler JobHandler, job *Job, logger *slog.Logger) error {
	logger = logger.With("job_id", job.ID, "type", job.Type)
	logger.Info("processing job")

	if err := repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, ""); err != nil {
		logger.Error("failed to mark job running", "error", err)
		return err
	}

	start := time.Now()
	if err := handler.Handle(ctx, job); err != nil {
		logger.Error("job failed", "error", err, "duration", time.Since(start))
		repo.UpdateJobStatus(context.WithoutCancel(ctx), job.ID, JobStatusFailed, truncateStr(err.Error(), 512))
		return err
	}

	repo.UpdateJobProgress(ctx, job.ID, 100)
	repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
	logger.Info("job completed", "duration", time.Since(start))
	return nil
}

func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[len(s)-maxLen:]
}

func (r *Runner) GetActiveJobCount(ctx context.Context) int {
	jobs, err := r.repo.ListJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Status == JobStatusRunning || j.Status == JobStatusQueued {
			count++
		}
	}
	return count
}
