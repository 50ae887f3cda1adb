package grading

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/obe-backend/internal/data/repos/testutil"
	pkgerrors "github.com/yungbote/obe-backend/internal/pkg/errors"
)

func TestRegistryTechniqueBudget(t *testing.T) {
	e := newEngine(t, CoordinatorConfig{})
	s := e.seedScenario(t)
	ctx := context.Background()

	t.Run("third technique overflows and writes nothing", func(t *testing.T) {
		before, err := e.registry.Snapshot(ctx, s.course.ID)
		require.NoError(t, err)

		_, _, err = e.registry.AddTechniqueWeight(ctx, s.c1.ID, "T3", dec("50"))
		var overflow *WeightOverflowError
		require.ErrorAs(t, err, &overflow)
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
		assert.Equal(t, s.c1.ID, overflow.CpmkID)
		assert.Equal(t, "100.00", overflow.CurrentTotal.StringFixed(2))
		assert.Equal(t, "50.00", overflow.Requested.StringFixed(2))

		after, err := e.registry.Snapshot(ctx, s.course.ID)
		require.NoError(t, err)
		w, _ := after.Cpmk(s.c1.ID)
		assert.Len(t, w.Techniques, 2)
		assert.Equal(t, "100.00", w.TechniqueTotal().StringFixed(2))
		assert.Equal(t, before.Version, after.Version, "rolled back edit must not bump the version")
	})

	t.Run("update excludes itself from the current sum", func(t *testing.T) {
		_, err := e.registry.UpdateTechniqueWeight(ctx, s.t1.ID, dec("61"))
		var overflow *WeightOverflowError
		require.ErrorAs(t, err, &overflow)
		assert.Equal(t, "40.00", overflow.CurrentTotal.StringFixed(2))

		change, err := e.registry.UpdateTechniqueWeight(ctx, s.t1.ID, dec("50"))
		require.NoError(t, err)
		assert.Equal(t, "90.00", change.NewTotal.StringFixed(2))
		assert.Equal(t, s.course.ID, change.CourseID)
	})

	t.Run("removal returns the obligation", func(t *testing.T) {
		change, err := e.registry.RemoveTechnique(ctx, s.t2.ID)
		require.NoError(t, err)
		assert.Equal(t, s.c1.ID, change.CpmkID)
		assert.Equal(t, "50.00", change.NewTotal.StringFixed(2))

		_, err = e.registry.RemoveTechnique(ctx, s.t2.ID)
		assert.ErrorIs(t, err, ErrTechniqueNotFound)
	})

	t.Run("range validation", func(t *testing.T) {
		_, _, err := e.registry.AddTechniqueWeight(ctx, s.c1.ID, "bad", dec("-5"))
		assert.ErrorIs(t, err, ErrInvalidWeight)
		_, _, err = e.registry.AddTechniqueWeight(ctx, uuid.New(), "ghost", dec("5"))
		assert.ErrorIs(t, err, ErrCpmkNotFound)
	})
}

// Any sequence of edits that each pass validation keeps every sum <= 100.
func TestRegistryWeightInvariantHolds(t *testing.T) {
	e := newEngine(t, CoordinatorConfig{})
	ctx := context.Background()
	course := testutil.SeedCourse(t, ctx, e.db, "IF302")
	cpmk := testutil.SeedCpmk(t, ctx, e.db, course.ID, "C1")

	rng := rand.New(rand.NewSource(42))
	var live []uuid.UUID
	for i := 0; i < 60; i++ {
		w := decimal.NewFromInt(int64(rng.Intn(200))).Mul(dec("0.25"))
		switch op := rng.Intn(3); {
		case op == 0 || len(live) == 0:
			tech, _, err := e.registry.AddTechniqueWeight(ctx, cpmk.ID, "t", w)
			if err == nil {
				live = append(live, tech.ID)
			}
			requireBudgetOrOverflow(t, err)
		case op == 1:
			_, err := e.registry.UpdateTechniqueWeight(ctx, live[rng.Intn(len(live))], w)
			requireBudgetOrOverflow(t, err)
		default:
			idx := rng.Intn(len(live))
			_, err := e.registry.RemoveTechnique(ctx, live[idx])
			require.NoError(t, err)
			live = append(live[:idx], live[idx+1:]...)
		}

		weights, err := e.registry.CpmkWeights(ctx, cpmk.ID)
		require.NoError(t, err)
		require.False(t, weights.TechniqueTotal().GreaterThan(Hundred), "step %d total %s", i, weights.TechniqueTotal())
	}
}

func requireBudgetOrOverflow(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	var overflow *WeightOverflowError
	require.True(t, errors.As(err, &overflow), "unexpected error %v", err)
}

func TestRegistryMappings(t *testing.T) {
	e := newEngine(t, CoordinatorConfig{})
	s := e.seedScenario(t)
	ctx := context.Background()
	l2 := testutil.SeedCpl(t, ctx, e.db, "L2")
	l3 := testutil.SeedCpl(t, ctx, e.db, "L3")

	t.Run("duplicate pair", func(t *testing.T) {
		_, _, err := e.registry.AddCplMapping(ctx, s.c1.ID, s.l1.ID, dec("0"))
		assert.ErrorIs(t, err, ErrMappingExists)
		assert.ErrorIs(t, err, pkgerrors.ErrConflict)
	})

	t.Run("budget counts every mapping of the cpmk", func(t *testing.T) {
		_, _, err := e.registry.AddCplMapping(ctx, s.c1.ID, l2.ID, dec("1"))
		var overflow *WeightOverflowError
		require.ErrorAs(t, err, &overflow)
		assert.Equal(t, "100.00", overflow.CurrentTotal.StringFixed(2))
	})

	t.Run("batch fails atomically naming the cpmk", func(t *testing.T) {
		_, err := e.registry.UpdateCplMapping(ctx, s.mapping.ID, dec("60"))
		require.NoError(t, err)

		_, _, err = e.registry.AddCplMappingsBatch(ctx, []MappingInput{
			{CpmkID: s.c1.ID, CplID: l2.ID, Weight: dec("30")},
			{CpmkID: s.c1.ID, CplID: l3.ID, Weight: dec("20")},
		})
		var overflow *WeightOverflowError
		require.ErrorAs(t, err, &overflow)
		assert.Equal(t, s.c1.ID, overflow.CpmkID)
		assert.Equal(t, "90.00", overflow.CurrentTotal.StringFixed(2))

		w, err := e.registry.CpmkWeights(ctx, s.c1.ID)
		require.NoError(t, err)
		require.Len(t, w.Mappings, 1, "no row of a failed batch may be written")

		_, _, err = e.registry.AddCplMappingsBatch(ctx, []MappingInput{
			{CpmkID: s.c1.ID, CplID: l2.ID, Weight: dec("10")},
			{CpmkID: s.c1.ID, CplID: l2.ID, Weight: dec("10")},
		})
		assert.ErrorIs(t, err, ErrMappingExists)

		rows, changes, err := e.registry.AddCplMappingsBatch(ctx, []MappingInput{
			{CpmkID: s.c1.ID, CplID: l2.ID, Weight: dec("30")},
			{CpmkID: s.c1.ID, CplID: l3.ID, Weight: dec("10")},
		})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		require.Len(t, changes, 2)
		assert.Equal(t, "100.00", changes[1].NewTotal.StringFixed(2))
	})

	t.Run("remove", func(t *testing.T) {
		change, err := e.registry.RemoveCplMapping(ctx, s.mapping.ID)
		require.NoError(t, err)
		assert.Equal(t, s.l1.ID, change.CplID)
		_, err = e.registry.RemoveCplMapping(ctx, s.mapping.ID)
		assert.ErrorIs(t, err, ErrMappingNotFound)
	})
}

func TestSnapshotVersionAndImmutability(t *testing.T) {
	e := newEngine(t, CoordinatorConfig{})
	s := e.seedScenario(t)
	ctx := context.Background()

	snap, err := e.registry.Snapshot(ctx, s.course.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Version, "two techniques and one mapping")

	w, ok := snap.Cpmk(s.c1.ID)
	require.True(t, ok)
	for i := range w.Techniques {
		w.Techniques[i].Weight = dec("1")
	}

	again, _ := snap.Cpmk(s.c1.ID)
	t1, ok := again.Technique(s.t1.ID)
	require.True(t, ok)
	assert.Equal(t, "60.00", t1.Weight.StringFixed(2))

	_, err = e.registry.UpdateTechniqueWeight(ctx, s.t1.ID, dec("55"))
	require.NoError(t, err)
	again, _ = snap.Cpmk(s.c1.ID)
	t1, _ = again.Technique(s.t1.ID)
	assert.Equal(t, "60.00", t1.Weight.StringFixed(2), "old snapshot keeps old weights")

	next, err := e.registry.Snapshot(ctx, s.course.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.Version)
	assert.Equal(t, []uuid.UUID{s.l1.ID}, next.CplIDs())

	_, err = e.registry.Snapshot(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrCourseNotFound)
}
