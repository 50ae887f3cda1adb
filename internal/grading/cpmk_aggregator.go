package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

// WeightedCpmkScore is Σ(raw × weight / 100) over every technique, rounded
// to two places. A technique with no raw score contributes 0.
func WeightedCpmkScore(techniques []TechniqueWeight, raw map[uuid.UUID]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, t := range techniques {
		v, ok := raw[t.ID]
		if !ok {
			continue
		}
		total = total.Add(contribution(v, t.Weight))
	}
	return RoundScore(total)
}

type CpmkAggregator struct {
	stores  Stores
	locker  KeyLocker
	log     *logger.Logger
	metrics Recorder
	now     func() time.Time
}

func NewCpmkAggregator(stores Stores, locker KeyLocker, metrics Recorder, baseLog *logger.Logger) *CpmkAggregator {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &CpmkAggregator{
		stores:  stores,
		locker:  locker,
		log:     baseLog.With("component", "CpmkAggregator"),
		metrics: metrics,
		now:     time.Now,
	}
}

// ComputeCpmkScore recomputes and upserts one CpmkScore from snap's weights.
func (a *CpmkAggregator) ComputeCpmkScore(ctx context.Context, snap *WeightSnapshot, scope types.Scope, cpmkID uuid.UUID) (row *types.CpmkScore, err error) {
	start := time.Now()
	defer func() { a.metrics.ObserveCompute(PhaseCpmk, time.Since(start), err) }()

	weights, ok := snap.Cpmk(cpmkID)
	if !ok {
		return nil, fmt.Errorf("%w: %s not in course %s", ErrCpmkNotFound, cpmkID, snap.CourseID)
	}

	unlock, err := a.locker.Lock(ctx, CpmkLockKey(scope, cpmkID))
	if err != nil {
		return nil, fmt.Errorf("lock cpmk score: %w", err)
	}
	defer unlock()

	dbc := dbctx.New(ctx)
	ids := make([]uuid.UUID, 0, len(weights.Techniques))
	for _, t := range weights.Techniques {
		ids = append(ids, t.ID)
	}
	raws, err := a.stores.RawScores.ListForScope(dbc, scope, ids)
	if err != nil {
		return nil, fmt.Errorf("load raw scores: %w", err)
	}
	byTechnique := make(map[uuid.UUID]decimal.Decimal, len(raws))
	for _, r := range raws {
		byTechnique[r.TechniqueID] = r.Score
	}

	existing, err := a.stores.CpmkScores.Get(dbc, scope, cpmkID)
	if err != nil {
		return nil, fmt.Errorf("load cpmk score: %w", err)
	}
	if existing != nil && existing.WeightsVersion > snap.Version {
		return existing, fmt.Errorf("%w: row v%d, snapshot v%d", ErrSnapshotSuperseded, existing.WeightsVersion, snap.Version)
	}

	score := WeightedCpmkScore(weights.Techniques, byTechnique)
	row, err = a.stores.CpmkScores.Upsert(dbc, &types.CpmkScore{
		StudentID:      scope.StudentID,
		CpmkID:         cpmkID,
		CourseID:       snap.CourseID,
		Semester:       scope.Semester,
		AcademicTerm:   scope.AcademicTerm,
		Score:          score,
		WeightsVersion: snap.Version,
		ComputedAt:     a.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert cpmk score: %w", err)
	}
	a.log.Debug("CPMK score computed", "student_id", scope.StudentID, "cpmk_id", cpmkID, "score", score.StringFixed(2), "weights_version", snap.Version)
	return row, nil
}
