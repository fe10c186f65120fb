package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/heimdex/heimdex-labels/internal/logging"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 5
)

// Runner drains pending save jobs one at a time.
type Runner struct {
	service      *Service
	repo         Repository
	logger       *slog.Logger
	pollInterval time.Duration
	maxAttempts  int
	running      atomic.Bool
	paused       atomic.Bool
}

func NewRunner(service *Service, repo Repository, logger *slog.Logger, pollInterval time.Duration, maxAttempts int) *Runner {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Runner{
		service:      service,
		repo:         repo,
		logger:       logging.WithComponent(logger, "runner"),
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
	}
}

func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}

	r.logger.Info("job runner started", "poll_interval", r.pollInterval, "max_attempts", r.maxAttempts)

	if n, err := r.repo.RequeueRunningJobs(ctx); err != nil {
		r.logger.Error("failed to requeue interrupted jobs", "error", err)
	} else if n > 0 {
		r.logger.Info("requeued interrupted jobs", "count", n)
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopping")
			r.running.Store(false)
			return
		case <-ticker.C:
			if !r.paused.Load() {
				r.processNextJob(ctx)
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("job runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("job runner resumed")
}

func (r *Runner) IsPaused() bool {
	return r.paused.Load()
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) processNextJob(ctx context.Context) {
	jobs, err := r.repo.ListPendingJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	job := jobs[0]
	logger := logging.WithLabelHash(logging.WithJobID(r.logger, job.ID), job.LabelHash).With("type", job.Type)

	switch job.Type {
	case JobTypeSave:
		r.processSaveJob(ctx, job, logger)
	default:
		logger.Warn("unknown job type")
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, "unknown job type")
	}
}

func (r *Runner) processSaveJob(ctx context.Context, job *Job, logger *slog.Logger) {
	if err := r.repo.UpdateJobStatus(ctx, job.ID, JobStatusRunning, ""); err != nil {
		logger.Error("failed to mark job running", "error", err)
		return
	}
	attempts, err := r.repo.IncrementJobAttempts(ctx, job.ID)
	if err != nil {
		logger.Error("failed to count attempt", "error", err)
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusPending, "")
		return
	}
	logger.Info("processing job", "attempt", attempts)

	err = r.service.ExecuteSave(ctx, job)
	switch {
	case err == nil:
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, "")
		logger.Info("save job completed")
	case IsConflict(err):
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, fmt.Sprintf("conflict: %v", err))
		logger.Warn("save rejected, label row changed on the platform", "error", err)
	case IsRetryable(err) && attempts < r.maxAttempts:
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusPending, err.Error())
		logger.Warn("save failed, will retry", "attempt", attempts, "error", err)
	default:
		r.repo.UpdateJobStatus(ctx, job.ID, JobStatusFailed, err.Error())
		logger.Error("save job failed", "attempt", attempts, "error", err)
	}
}

// GetActiveJobCount returns how many jobs are queued or running.
func (r *Runner) GetActiveJobCount(ctx context.Context) int {
	jobs, err := r.repo.ListJobs(ctx, 100)
	if err != nil {
		return 0
	}
	count := 0
	for _, j := range jobs {
		if j.Active() {
			count++
		}
	}
	return count
}
