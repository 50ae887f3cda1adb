package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/obe-backend/internal/pkg/errors"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

// WeightedCplScore is Σ(cpmkScore × mappingWeight / 100), rounded to two
// places. A CPMK without a persisted score contributes 0.
func WeightedCplScore(mappings []MappingWeight, cpmkScores map[uuid.UUID]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, m := range mappings {
		v, ok := cpmkScores[m.CpmkID]
		if !ok {
			continue
		}
		total = total.Add(contribution(v, m.Weight))
	}
	return RoundScore(total)
}

type CplAggregator struct {
	stores  Stores
	locker  KeyLocker
	log     *logger.Logger
	metrics Recorder
	now     func() time.Time
}

func NewCplAggregator(stores Stores, locker KeyLocker, metrics Recorder, baseLog *logger.Logger) *CplAggregator {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &CplAggregator{
		stores:  stores,
		locker:  locker,
		log:     baseLog.With("component", "CplAggregator"),
		metrics: metrics,
		now:     time.Now,
	}
}

// ComputeCplScore recomputes one course's contribution to a CPL from the
// persisted CPMK scores. It never recomputes CPMK scores itself.
func (a *CplAggregator) ComputeCplScore(ctx context.Context, snap *WeightSnapshot, scope types.Scope, cplID, courseID uuid.UUID) (row *types.CplScore, err error) {
	start := time.Now()
	defer func() { a.metrics.ObserveCompute(PhaseCpl, time.Since(start), err) }()

	if courseID != snap.CourseID {
		return nil, fmt.Errorf("%w: snapshot is for course %s, not %s", pkgerrors.ErrInvalidArgument, snap.CourseID, courseID)
	}
	dbc := dbctx.New(ctx)
	cpl, err := a.stores.Cpls.GetByID(dbc, cplID)
	if err != nil {
		return nil, fmt.Errorf("load cpl: %w", err)
	}
	if cpl == nil {
		return nil, fmt.Errorf("%w: %s", ErrCplNotFound, cplID)
	}

	unlock, err := a.locker.Lock(ctx, CplLockKey(scope, cplID, courseID))
	if err != nil {
		return nil, fmt.Errorf("lock cpl score: %w", err)
	}
	defer unlock()

	mappings := snap.MappingsToCpl(cplID)
	ids := make([]uuid.UUID, 0, len(mappings))
	for _, m := range mappings {
		ids = append(ids, m.CpmkID)
	}
	rows, err := a.stores.CpmkScores.ListForScope(dbc, scope, ids)
	if err != nil {
		return nil, fmt.Errorf("load cpmk scores: %w", err)
	}
	byCpmk := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, r := range rows {
		byCpmk[r.CpmkID] = r.Score
	}

	existing, err := a.stores.CplScores.Get(dbc, scope, cplID, courseID)
	if err != nil {
		return nil, fmt.Errorf("load cpl score: %w", err)
	}
	if existing != nil && existing.WeightsVersion > snap.Version {
		return existing, fmt.Errorf("%w: row v%d, snapshot v%d", ErrSnapshotSuperseded, existing.WeightsVersion, snap.Version)
	}

	score := WeightedCplScore(mappings, byCpmk)
	row, err = a.stores.CplScores.Upsert(dbc, &types.CplScore{
		StudentID:      scope.StudentID,
		CplID:          cplID,
		CourseID:       courseID,
		Semester:       scope.Semester,
		AcademicTerm:   scope.AcademicTerm,
		Score:          score,
		WeightsVersion: snap.Version,
		ComputedAt:     a.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert cpl score: %w", err)
	}
	a.log.Debug("CPL score computed", "student_id", scope.StudentID, "cpl_id", cplID, "course_id", courseID, "score", score.StringFixed(2), "weights_version", snap.Version)
	return row, nil
}
