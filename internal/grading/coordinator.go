package grading

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

const (
	defaultParallelism = 4
	// maxSnapshotRefresh bounds how often one compute chases a newer
	// weights version before it is reported as skipped.
	maxSnapshotRefresh = 3
)

var errUpstreamCpmkFailed = errors.New("cpmk recompute failed for this student; cpl score left unchanged")

type CoordinatorConfig struct {
	// Parallelism bounds concurrent computes inside one phase.
	Parallelism int
	// Timeout is the per-cascade deadline; zero disables it.
	Timeout time.Duration
}

// Coordinator turns every mutation into the recomputes it makes necessary.
// CPMK scores of a cascade are all persisted before any CPL score that reads
// them is computed.
type Coordinator struct {
	registry *Registry
	cpmk     *CpmkAggregator
	cpl      *CplAggregator
	stores   Stores
	cfg      CoordinatorConfig
	metrics  Recorder
	log      *logger.Logger
	tracer   trace.Tracer
}

func NewCoordinator(registry *Registry, cpmk *CpmkAggregator, cpl *CplAggregator, stores Stores, cfg CoordinatorConfig, metrics Recorder, baseLog *logger.Logger) *Coordinator {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultParallelism
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Coordinator{
		registry: registry,
		cpmk:     cpmk,
		cpl:      cpl,
		stores:   stores,
		cfg:      cfg,
		metrics:  metrics,
		log:      baseLog.With("component", "RecalculationCoordinator"),
		tracer:   otel.Tracer("obe-backend/grading"),
	}
}

type cascadePlan struct {
	trigger Trigger
	snap    *WeightSnapshot
	cpmkID  *uuid.UUID
	cplID   *uuid.UUID
	scopes  []types.Scope
	// cpmkIDs are recomputed in phase 1; empty skips the phase.
	cpmkIDs []uuid.UUID
	cplIDs  []uuid.UUID
}

func (c *Coordinator) OnRawScoreUpserted(ctx context.Context, scope types.Scope, techniqueID uuid.UUID) (*CascadeReport, error) {
	return c.onRawScore(ctx, TriggerRawScoreUpserted, scope, techniqueID)
}

func (c *Coordinator) OnRawScoreDeleted(ctx context.Context, scope types.Scope, techniqueID uuid.UUID) (*CascadeReport, error) {
	return c.onRawScore(ctx, TriggerRawScoreDeleted, scope, techniqueID)
}

func (c *Coordinator) onRawScore(ctx context.Context, trigger Trigger, scope types.Scope, techniqueID uuid.UUID) (*CascadeReport, error) {
	dbc := dbctx.New(ctx)
	tech, err := c.stores.Techniques.GetByID(dbc, techniqueID)
	if err != nil {
		return nil, err
	}
	if tech == nil {
		return nil, ErrTechniqueNotFound
	}
	cpmk, snap, err := c.cpmkSnapshot(ctx, tech.CpmkID)
	if err != nil {
		return nil, err
	}
	return c.run(ctx, cascadePlan{
		trigger: trigger,
		snap:    snap,
		cpmkID:  &cpmk.ID,
		scopes:  []types.Scope{scope},
		cpmkIDs: []uuid.UUID{cpmk.ID},
		cplIDs:  snap.CplIDsForCpmk(cpmk.ID),
	}), nil
}

// OnTechniqueWeightChanged recomputes every student period with a raw score
// or a computed score under the CPMK. The second set covers periods whose
// only raw scores belonged to a technique that was just removed.
func (c *Coordinator) OnTechniqueWeightChanged(ctx context.Context, cpmkID uuid.UUID) (*CascadeReport, error) {
	cpmk, snap, err := c.cpmkSnapshot(ctx, cpmkID)
	if err != nil {
		return nil, err
	}
	weights, _ := snap.Cpmk(cpmk.ID)
	techniqueIDs := make([]uuid.UUID, 0, len(weights.Techniques))
	for _, t := range weights.Techniques {
		techniqueIDs = append(techniqueIDs, t.ID)
	}
	scopes, err := c.affectedScopes(ctx, techniqueIDs, []uuid.UUID{cpmk.ID})
	if err != nil {
		return nil, err
	}
	return c.run(ctx, cascadePlan{
		trigger: TriggerTechniqueWeightChanged,
		snap:    snap,
		cpmkID:  &cpmk.ID,
		scopes:  scopes,
		cpmkIDs: []uuid.UUID{cpmk.ID},
		cplIDs:  snap.CplIDsForCpmk(cpmk.ID),
	}), nil
}

// OnCpmkCplMappingChanged recomputes only the CPL score; CPMK scores do not
// depend on mappings. A removed mapping is recomputed too and now adds 0.
func (c *Coordinator) OnCpmkCplMappingChanged(ctx context.Context, cpmkID, cplID uuid.UUID) (*CascadeReport, error) {
	cpmk, snap, err := c.cpmkSnapshot(ctx, cpmkID)
	if err != nil {
		return nil, err
	}
	scopes, err := c.stores.CpmkScores.DistinctScopesByCpmkIDs(dbctx.New(ctx), []uuid.UUID{cpmk.ID})
	if err != nil {
		return nil, err
	}
	return c.run(ctx, cascadePlan{
		trigger: TriggerMappingChanged,
		snap:    snap,
		cpmkID:  &cpmk.ID,
		cplID:   &cplID,
		scopes:  scopes,
		cplIDs:  []uuid.UUID{cplID},
	}), nil
}

// RecalculateCourse recomputes every CPMK and CPL score of a course.
func (c *Coordinator) RecalculateCourse(ctx context.Context, courseID uuid.UUID) (*CascadeReport, error) {
	snap, err := c.registry.Snapshot(ctx, courseID)
	if err != nil {
		return nil, err
	}
	scopes, err := c.affectedScopes(ctx, snap.TechniqueIDs(), snap.CpmkIDs())
	if err != nil {
		return nil, err
	}
	return c.run(ctx, cascadePlan{
		trigger: TriggerCourseRecalculate,
		snap:    snap,
		scopes:  scopes,
		cpmkIDs: snap.CpmkIDs(),
		cplIDs:  snap.CplIDs(),
	}), nil
}

// GetCpmkScore returns the last persisted value; it never computes on read.
func (c *Coordinator) GetCpmkScore(ctx context.Context, scope types.Scope, cpmkID uuid.UUID) (*types.CpmkScore, error) {
	row, err := c.stores.CpmkScores.Get(dbctx.New(ctx), scope, cpmkID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrScoreNotFound
	}
	return row, nil
}

func (c *Coordinator) GetCplScore(ctx context.Context, scope types.Scope, cplID, courseID uuid.UUID) (*types.CplScore, error) {
	row, err := c.stores.CplScores.Get(dbctx.New(ctx), scope, cplID, courseID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrScoreNotFound
	}
	return row, nil
}

func (c *Coordinator) cpmkSnapshot(ctx context.Context, cpmkID uuid.UUID) (*types.Cpmk, *WeightSnapshot, error) {
	cpmk, err := c.stores.Cpmks.GetByID(dbctx.New(ctx), cpmkID)
	if err != nil {
		return nil, nil, err
	}
	if cpmk == nil {
		return nil, nil, ErrCpmkNotFound
	}
	snap, err := c.registry.Snapshot(ctx, cpmk.CourseID)
	if err != nil {
		return nil, nil, err
	}
	return cpmk, snap, nil
}

func (c *Coordinator) affectedScopes(ctx context.Context, techniqueIDs, cpmkIDs []uuid.UUID) ([]types.Scope, error) {
	dbc := dbctx.New(ctx)
	fromRaw, err := c.stores.RawScores.DistinctScopesByTechniqueIDs(dbc, techniqueIDs)
	if err != nil {
		return nil, err
	}
	fromComputed, err := c.stores.CpmkScores.DistinctScopesByCpmkIDs(dbc, cpmkIDs)
	if err != nil {
		return nil, err
	}
	seen := make(map[types.Scope]struct{}, len(fromRaw)+len(fromComputed))
	out := make([]types.Scope, 0, len(fromRaw)+len(fromComputed))
	for _, list := range [][]types.Scope{fromRaw, fromComputed} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *Coordinator) run(ctx context.Context, plan cascadePlan) *CascadeReport {
	ctx, span := c.tracer.Start(ctx, "grading.cascade", trace.WithAttributes(
		attribute.String("trigger", string(plan.trigger)),
		attribute.String("course_id", plan.snap.CourseID.String()),
		attribute.Int64("weights_version", plan.snap.Version),
		attribute.Int("tuples", len(plan.scopes)),
	))
	defer span.End()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	report := &CascadeReport{
		Trigger:        plan.trigger,
		CourseID:       plan.snap.CourseID,
		CpmkID:         plan.cpmkID,
		CplID:          plan.cplID,
		WeightsVersion: plan.snap.Version,
		Tuples:         len(plan.scopes),
		Skipped:        []StaleComputeSkipped{},
		StartedAt:      time.Now(),
	}
	b := &reportBuilder{report: report}

	var (
		failedMu sync.Mutex
		failed   = map[types.Scope]struct{}{}
	)

	if len(plan.cpmkIDs) > 0 {
		var g errgroup.Group
		g.SetLimit(c.cfg.Parallelism)
		for _, scope := range plan.scopes {
			for _, cpmkID := range plan.cpmkIDs {
				g.Go(func() error {
					key := CpmkLockKey(scope, cpmkID)
					err := ctx.Err()
					if err == nil {
						err = c.withCurrentSnapshot(ctx, plan.snap, func(snap *WeightSnapshot) error {
							_, err := c.cpmk.ComputeCpmkScore(ctx, snap, scope, cpmkID)
							return err
						})
					}
					if err != nil {
						c.skip(b, PhaseCpmk, key, scope, err)
						failedMu.Lock()
						failed[scope] = struct{}{}
						failedMu.Unlock()
						return nil
					}
					b.computed(PhaseCpmk)
					return nil
				})
			}
		}
		_ = g.Wait()
	}

	if len(plan.cplIDs) > 0 {
		var g errgroup.Group
		g.SetLimit(c.cfg.Parallelism)
		for _, scope := range plan.scopes {
			_, upstreamFailed := failed[scope]
			for _, cplID := range plan.cplIDs {
				g.Go(func() error {
					key := CplLockKey(scope, cplID, plan.snap.CourseID)
					err := ctx.Err()
					if err == nil && upstreamFailed {
						err = errUpstreamCpmkFailed
					}
					if err == nil {
						err = c.withCurrentSnapshot(ctx, plan.snap, func(snap *WeightSnapshot) error {
							_, err := c.cpl.ComputeCplScore(ctx, snap, scope, cplID, snap.CourseID)
							return err
						})
					}
					if err != nil {
						c.skip(b, PhaseCpl, key, scope, err)
						return nil
					}
					b.computed(PhaseCpl)
					return nil
				})
			}
		}
		_ = g.Wait()
	}

	sort.SliceStable(report.Skipped, func(i, j int) bool {
		if report.Skipped[i].Phase != report.Skipped[j].Phase {
			return report.Skipped[i].Phase == PhaseCpmk
		}
		return report.Skipped[i].Key < report.Skipped[j].Key
	})
	report.FinishedAt = time.Now()

	span.SetAttributes(
		attribute.Int("cpmk_recomputed", report.CpmkRecomputed),
		attribute.Int("cpl_recomputed", report.CplRecomputed),
		attribute.Int("skipped", len(report.Skipped)),
	)
	c.metrics.ObserveCascade(report)
	c.log.Info("Cascade finished",
		"trigger", string(report.Trigger),
		"course_id", report.CourseID,
		"weights_version", report.WeightsVersion,
		"tuples", report.Tuples,
		"cpmk_recomputed", report.CpmkRecomputed,
		"cpl_recomputed", report.CplRecomputed,
		"skipped", len(report.Skipped),
		"duration", report.Duration().String(),
	)
	return report
}

// withCurrentSnapshot runs compute against snap and, while the target row
// already carries a newer weights version, again against a fresh snapshot.
// A newer row may have been computed from inputs this cascade has since
// changed, so dropping the write would leave it stale.
func (c *Coordinator) withCurrentSnapshot(ctx context.Context, snap *WeightSnapshot, compute func(*WeightSnapshot) error) error {
	err := compute(snap)
	for i := 0; i < maxSnapshotRefresh && errors.Is(err, ErrSnapshotSuperseded); i++ {
		fresh, serr := c.registry.Snapshot(ctx, snap.CourseID)
		if serr != nil {
			return serr
		}
		c.log.Debug("Recomputing with newer weights", "course_id", snap.CourseID, "from_version", snap.Version, "to_version", fresh.Version)
		snap = fresh
		err = compute(snap)
	}
	return err
}

func (c *Coordinator) skip(b *reportBuilder, phase, key string, scope types.Scope, err error) {
	s := b.skip(phase, key, scope, err)
	c.log.Warn("Stale compute skipped",
		"phase", phase,
		"student_id", scope.StudentID,
		"semester", scope.Semester,
		"academic_term", scope.AcademicTerm,
		"error", s.Reason,
	)
}
