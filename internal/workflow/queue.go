package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/heimdex/heimdex-editor/internal/catalog"
)

const (
	TaskRunWorkflow = "workflow:run"

	queueName = "default"
)

// TaskPayload is the body of a workflow:run task.
type TaskPayload struct {
	JobID string `json:"job_id"`
}

// Queue dispatches workflow jobs through Redis with asynq and runs them in
// this process's asynq server.
type Queue struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	inspector *asynq.Inspector
	repo      catalog.Repository
	timeout   time.Duration
	logger    *slog.Logger
}

func NewQueue(redisAddr string, repo catalog.Repository, timeout time.Duration, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{queueName: 1},
	})
	return &Queue{
		client:    asynq.NewClient(redisOpt),
		server:    server,
		mux:       asynq.NewServeMux(),
		inspector: asynq.NewInspector(redisOpt),
		repo:      repo,
		timeout:   timeout,
		logger:    logger,
	}
}

// isTaskConflict checks whether the error indicates a task ID conflict.
func isTaskConflict(err error) bool {
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "task ID conflicts") || strings.Contains(msg, "duplicate task")
}

// taskID keys tasks by cut so saving the same cut twice never runs it twice.
func taskID(job *catalog.Job) string {
	return "workflow:" + job.CutID
}

// Dispatch enqueues the job and marks it queued so the local runner leaves it alone.
func (q *Queue) Dispatch(ctx context.Context, job *catalog.Job) error {
	data, err := json.Marshal(TaskPayload{JobID: job.ID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	opts := []asynq.Option{asynq.TaskID(taskID(job)), asynq.Queue(queueName), asynq.MaxRetry(2)}
	if q.timeout > 0 {
		opts = append(opts, asynq.Timeout(q.timeout))
	}
	task := asynq.NewTask(TaskRunWorkflow, data, opts...)

	_, err = q.client.EnqueueContext(ctx, task)
	if err != nil && isTaskConflict(err) {
		// a finished task with the same id lingers in Redis; clear it and retry
		if delErr := q.inspector.DeleteTask(queueName, taskID(job)); delErr == nil {
			q.logger.Info("cleared stale workflow task", "task_id", taskID(job))
			_, err = q.client.EnqueueContext(ctx, task)
		}
	}
	if err != nil {
		if isTaskConflict(err) {
			return fmt.Errorf("workflow for cut %s is already running", job.CutID)
		}
		return fmt.Errorf("enqueue: %w", err)
	}

	q.logger.Info("workflow queued", "job_id", job.ID, "task_id", taskID(job))
	return q.repo.UpdateJobStatus(ctx, job.ID, catalog.JobStatusQueued, "")
}

func (q *Queue) RegisterHandler(taskType string, handler asynq.Handler) {
	q.mux.Handle(taskType, handler)
}

func (q *Queue) Start() error {
	q.logger.Info("workflow queue worker starting")
	return q.server.Start(q.mux)
}

func (q *Queue) Stop() {
	q.server.Shutdown()
	q.client.Close()
	q.inspector.Close()
}

// TaskHandler runs workflow:run tasks through the same job lifecycle as the
// local runner.
type TaskHandler struct {
	repo    catalog.Repository
	handler catalog.JobHandler
	logger  *slog.Logger
}

func NewTaskHandler(repo catalog.Repository, handler catalog.JobHandler, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TaskHandler{repo: repo, handler: handler, logger: logger}
}

func (h *TaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p TaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w: %w", err, asynq.SkipRetry)
	}

	job, err := h.repo.GetJob(ctx, p.JobID)
	if errors.Is(err, catalog.ErrNotFound) {
		h.logger.Warn("workflow task for unknown job", "job_id", p.JobID)
		return fmt.Errorf("job %s: %w", p.JobID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}
	if job.Status == catalog.JobStatusCompleted {
		return nil
	}

	return catalog.Execute(ctx, h.repo, h.handler, job, h.logger)
}
