package worker

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/obe-backend/internal/data/repos"
	"github.com/yungbote/obe-backend/internal/jobs/runtime"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
	"github.com/yungbote/obe-backend/internal/services"
)

type Config struct {
	Concurrency    int           `yaml:"concurrency" validate:"gte=0,lte=64"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxAttempts    int           `yaml:"max_attempts" validate:"gte=0"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	StaleRunning   time.Duration `yaml:"stale_running"`
	HeartbeatEvery time.Duration `yaml:"heartbeat_every"`
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 30 * time.Minute
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = 15 * time.Second
	}
	return c
}

// JobObserver receives one measurement per finished run.
type JobObserver interface {
	ObserveJob(jobType, status string, dur time.Duration)
}

// Worker polls job_run for queued rows. It is only started when temporal is
// not configured; with temporal the workflow drives each run instead.
type Worker struct {
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	metrics  JobObserver
	cfg      Config

	wg sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier, metrics JobObserver, cfg Config) *Worker {
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		metrics:  metrics,
		cfg:      cfg.withDefaults(),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "job_types", w.registry.Types())
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

// Wait blocks until every loop has returned after ctx was canceled.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain while there is work instead of waiting a tick per job.
			for ctx.Err() == nil && w.RunOnce(ctx) {
			}
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job was run.
func (w *Worker) RunOnce(ctx context.Context) bool {
	job, err := w.repo.ClaimNextRunnable(dbctx.New(ctx), w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "error", err)
		return false
	}
	if job == nil {
		return false
	}

	start := time.Now()
	jc := runtime.NewContext(ctx, job, w.repo, w.notify, w.log)
	jc.Progress("running", 0, "Started")
	runErr := runtime.Execute(w.registry, jc, w.cfg.HeartbeatEvery)
	if w.metrics != nil {
		w.metrics.ObserveJob(job.JobType, jc.Job.Status, time.Since(start))
	}
	if runErr != nil {
		w.log.Warn("Job run failed", "job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts, "error", runErr)
	}
	return true
}
