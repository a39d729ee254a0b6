package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/facturo/facturo/internal/metrics"
	"github.com/facturo/facturo/internal/repository"
)

// Worker polls the jobs table and dispatches rows to registered handlers.
// A pool of goroutines claims jobs independently; SKIP LOCKED in the
// dequeue query keeps them from stepping on each other.
type Worker struct {
	db       *sql.DB
	queries  *repository.Queries
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New builds a Worker. Register handlers before calling Start.
func New(db *sql.DB, queries *repository.Queries, config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		db:       db,
		queries:  queries,
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Register maps a handler's Type() to the handler. Registering the same
// type twice replaces the earlier handler.
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("Replacing job handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
	w.logger.Debug("Registered job handler", "job_type", jobType)
}

// Start recovers jobs orphaned by a previous crash, then launches the
// configured number of polling goroutines.
func (w *Worker) Start(ctx context.Context) {
	if err := w.recoverStaleJobs(ctx); err != nil {
		w.logger.Error("Stale job recovery failed", "error", err)
	}

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.poll(ctx, i+1)
	}

	w.logger.Info("Job worker running", "concurrency", w.config.Concurrency)
}

// Stop signals the pool to drain and waits up to ShutdownTimeout for
// in-flight jobs to finish.
func (w *Worker) Stop() {
	w.logger.Info("Draining job worker")
	close(w.stopCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Job worker stopped")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Shutdown timeout reached with jobs still in flight")
	}
}

// recoverStaleJobs flips long-running jobs back to pending. A job stuck
// in running past the threshold means its worker died mid-execution.
func (w *Worker) recoverStaleJobs(ctx context.Context) error {
	count, err := w.queries.RecoverStaleJobs(ctx, w.config.StaleJobThreshold.Seconds())
	if err != nil {
		return fmt.Errorf("recover stale jobs: %w", err)
	}
	if count > 0 {
		w.logger.Warn("Requeued stale jobs", "count", count, "threshold", w.config.StaleJobThreshold)
	}
	return nil
}

func (w *Worker) poll(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.runNext(ctx, logger); err != nil && err != sql.ErrNoRows {
				logger.Error("Job processing error", "error", err)
			}
		}
	}
}

// runNext claims one job and executes it. The claim happens in its own
// transaction so the row is marked running before the handler starts;
// the handler itself runs outside any transaction. Returns sql.ErrNoRows
// when the queue is empty.
func (w *Worker) runNext(ctx context.Context, logger *slog.Logger) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := w.queries.WithTx(tx)

	job, err := qtx.DequeueJob(ctx)
	if err != nil {
		return err
	}
	if err := qtx.UpdateJobStarted(ctx, job.ID); err != nil {
		return fmt.Errorf("mark job started: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit claim: %w", err)
	}

	logger = logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts+1)
	logger.Info("Job started")
	metrics.JobStarted(job.JobType)
	start := time.Now()

	if err := w.dispatch(ctx, job); err != nil {
		logger.Error("Job failed", "error", err)
		w.recordFailure(ctx, job, err)
		return fmt.Errorf("execute job: %w", err)
	}

	metrics.JobCompleted(job.JobType, time.Since(start))
	logger.Info("Job completed", "duration_ms", time.Since(start).Milliseconds())
	if err := w.queries.UpdateJobCompleted(ctx, job.ID); err != nil {
		logger.Error("Job succeeded but completion update failed", "error", err)
		return fmt.Errorf("update job completed: %w", err)
	}
	return nil
}

// dispatch runs the handler for the job under the per-job timeout.
func (w *Worker) dispatch(ctx context.Context, job repository.Job) error {
	handler, ok := w.handlers[job.JobType]
	if !ok {
		return NewPermanentError(fmt.Errorf("no handler for job type %q", job.JobType))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	return handler.Handle(jobCtx, job.Payload)
}

// recordFailure writes the error to the job row. UpdateJobFailed either
// reschedules with backoff or parks the job as failed once max_attempts
// is reached. UpdateJobStarted already bumped attempts, so job.Attempts+1
// is the attempt that just failed.
func (w *Worker) recordFailure(ctx context.Context, job repository.Job, jobErr error) {
	params := repository.UpdateJobFailedParams{
		ID:           job.ID,
		ErrorMessage: sql.NullString{String: jobErr.Error(), Valid: true},
	}

	if IsPermanent(jobErr) {
		metrics.JobFailed(job.JobType)
		w.logger.Warn("Job failed permanently, not retrying", "job_id", job.ID, "error", jobErr.Error())
		if err := w.queries.UpdateJobPermanentlyFailed(ctx, params); err != nil {
			w.logger.Error("Could not record permanent job failure", "job_id", job.ID, "error", err)
		}
		return
	}

	if job.Attempts+1 >= job.MaxAttempts {
		metrics.JobFailed(job.JobType)
	} else {
		metrics.JobRetried(job.JobType)
	}
	if err := w.queries.UpdateJobFailed(ctx, params); err != nil {
		w.logger.Error("Could not record job failure", "job_id", job.ID, "error", err)
	}
}
