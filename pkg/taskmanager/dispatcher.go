package taskmanager

import (
	"context"
	"time"

	"github.com/appdraft/appdraft-backend/internal/logger"
	"github.com/appdraft/appdraft-backend/pkg/domain/entities"

	"go.uber.org/zap"
)

// JobRepository is the durable queue the dispatcher drains.
type JobRepository interface {
	ClaimJob() (*entities.SyncJobEntity, error)
	CompleteJob(id string) error
	FailJob(id string, lastError string, final bool) error
	ReclaimStaleJobs(olderThan time.Duration) (int64, error)
}

// JobHandler executes one claimed job. A returned error marks the job
// failed; whether it is re-queued is decided by the retry budget.
type JobHandler func(ctx context.Context, job *entities.SyncJobEntity) error

// Dispatcher claims pending job rows and feeds them to the worker pool.
// Jobs survive process restarts because claiming happens against the
// database, at-least-once.
type Dispatcher struct {
	jobs       JobRepository
	pool       *TaskManager
	handlers   map[string]JobHandler
	pollEvery  time.Duration
	jobCeiling time.Duration
	cancel     context.CancelFunc
}

func NewDispatcher(jobs JobRepository, pool *TaskManager, jobCeiling time.Duration) *Dispatcher {
	return &Dispatcher{
		jobs:       jobs,
		pool:       pool,
		handlers:   make(map[string]JobHandler),
		pollEvery:  2 * time.Second,
		jobCeiling: jobCeiling,
	}
}

// Register routes a job type tag to its handler.
func (d *Dispatcher) Register(jobType string, handler JobHandler) {
	d.handlers[jobType] = handler
}

func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	// Jobs stranded in progress by a previous crash go back to pending.
	if reclaimed, err := d.jobs.ReclaimStaleJobs(d.jobCeiling); err != nil {
		logger.Error("failed to reclaim stale jobs", zap.Error(err))
	} else if reclaimed > 0 {
		logger.Info("reclaimed stale jobs", zap.Int64("count", reclaimed))
	}

	go d.loop(ctx)
}

func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	ticker := time.NewTicker(d.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		job, err := d.jobs.ClaimJob()
		if err != nil {
			logger.Error("failed to claim job", zap.Error(err))
			return
		}
		if job == nil {
			return
		}
		d.pool.AddTask(func() {
			d.execute(ctx, job)
		})
	}
}

func (d *Dispatcher) execute(ctx context.Context, job *entities.SyncJobEntity) {
	handler, ok := d.handlers[job.JobType]
	if !ok {
		logger.Error("no handler for job type",
			zap.String("jobType", job.JobType),
			zap.String("jobId", job.ID.String()))
		if err := d.jobs.FailJob(job.ID.String(), "no handler registered", true); err != nil {
			logger.Error("failed to mark job failed", zap.Error(err))
		}
		return
	}

	// Jobs exceeding the hard ceiling are treated as failed and take the
	// same recovery path as an explicit failure.
	jobCtx, cancel := context.WithTimeout(ctx, d.jobCeiling)
	defer cancel()

	err := handler(jobCtx, job)
	if err == nil {
		if err := d.jobs.CompleteJob(job.ID.String()); err != nil {
			logger.Error("failed to mark job completed", zap.Error(err))
		}
		return
	}

	final := entities.JobFailureIsFinal(job.Attempts, err)
	logger.Error("job failed",
		zap.String("jobId", job.ID.String()),
		zap.String("jobType", job.JobType),
		zap.Int("attempts", job.Attempts),
		zap.Bool("final", final),
		zap.Error(err))
	if err := d.jobs.FailJob(job.ID.String(), err.Error(), final); err != nil {
		logger.Error("failed to mark job failed", zap.Error(err))
	}
}
