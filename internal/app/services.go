package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/obe-backend/internal/data/db"
	"github.com/yungbote/obe-backend/internal/grading"
	"github.com/yungbote/obe-backend/internal/jobs/pipeline/grading_cascade"
	jobrt "github.com/yungbote/obe-backend/internal/jobs/runtime"
	"github.com/yungbote/obe-backend/internal/jobs/worker"
	"github.com/yungbote/obe-backend/internal/observability"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
	"github.com/yungbote/obe-backend/internal/services"
	"github.com/yungbote/obe-backend/internal/temporalx/jobrun"
	"github.com/yungbote/obe-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Registry    *grading.Registry
	Coordinator *grading.Coordinator

	Outcomes  services.OutcomeService
	Weights   services.WeightService
	RawScores services.RawScoreService
	Scores    services.ScoreService

	JobNotifier services.JobNotifier
	JobService  services.JobService
	Recalc      services.RecalcDispatcher
	JobRegistry *jobrt.Registry

	// Exactly one of these drives queued jobs.
	JobWorker      *worker.Worker
	TemporalRunner *temporalworker.Runner
}

func wireServices(gdb *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")
	stores := r.Stores()

	registry := grading.NewRegistry(db.NewTxRunner(gdb), stores, log)
	coord := grading.NewCoordinator(
		registry,
		grading.NewCpmkAggregator(stores, c.Locker, metrics, log),
		grading.NewCplAggregator(stores, c.Locker, metrics, log),
		stores,
		grading.CoordinatorConfig{
			Parallelism: cfg.Recalc.Parallelism,
			Timeout:     cfg.Recalc.Timeout,
		},
		metrics,
		log,
	)

	notify := services.NewJobNotifier(log, c.JobEvents)
	jobSvc := services.NewJobService(gdb, log, r.JobRun, notify, c.Temporal, cfg.Temporal.TaskQueue)
	recalc := services.NewRecalcDispatcher(cfg.Recalc.Mode, coord, jobSvc, log)
	outcomes := services.NewOutcomeService(gdb, log, r.Course, r.Cpmk, r.Cpl)

	jobRegistry := jobrt.NewRegistry()
	if err := jobRegistry.Register(grading_cascade.New(log, coord)); err != nil {
		return Services{}, fmt.Errorf("register grading cascade pipeline: %w", err)
	}

	out := Services{
		Registry:    registry,
		Coordinator: coord,
		Outcomes:    outcomes,
		Weights:     services.NewWeightService(log, registry, recalc, outcomes),
		RawScores:   services.NewRawScoreService(log, r.Technique, r.RawScore, coord),
		Scores:      services.NewScoreService(coord, r.CpmkScore, r.CplScore),
		JobNotifier: notify,
		JobService:  jobSvc,
		Recalc:      recalc,
		JobRegistry: jobRegistry,
	}

	if c.Temporal != nil {
		runner, err := temporalworker.NewRunner(log, c.Temporal, cfg.Temporal, &jobrun.Activities{
			Log:            log,
			Jobs:           r.JobRun,
			Registry:       jobRegistry,
			Notify:         notify,
			Metrics:        metrics,
			HeartbeatEvery: cfg.Worker.HeartbeatEvery,
		})
		if err != nil {
			return Services{}, fmt.Errorf("init temporal runner: %w", err)
		}
		out.TemporalRunner = runner
	} else {
		out.JobWorker = worker.NewWorker(log, r.JobRun, jobRegistry, notify, metrics, cfg.Worker)
	}
	return out, nil
}
