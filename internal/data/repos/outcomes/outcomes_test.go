package outcomes

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yungbote/obe-backend/internal/data/db"
	"github.com/yungbote/obe-backend/internal/data/repos/testutil"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
)

func TestCourseRepoBumpWeightsVersion(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewCourseRepo(gdb, testutil.Logger(t))

	course, err := repo.Create(dbc, &types.Course{Code: "IF-" + uuid.NewString()[:8], Name: "Algoritma", Credits: 3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for want := int64(1); want <= 3; want++ {
		got, err := repo.BumpWeightsVersion(dbc, course.ID)
		if err != nil {
			t.Fatalf("BumpWeightsVersion: %v", err)
		}
		if got != want {
			t.Fatalf("BumpWeightsVersion: expected %d got %d", want, got)
		}
	}
	if _, err := repo.BumpWeightsVersion(dbc, uuid.New()); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("BumpWeightsVersion missing: expected ErrRecordNotFound, got %v", err)
	}

	loaded, err := repo.GetByID(dbc, course.ID)
	if err != nil || loaded == nil {
		t.Fatalf("GetByID: err=%v row=%v", err, loaded)
	}
	if loaded.WeightsVersion != 3 {
		t.Fatalf("GetByID: expected version 3 got %d", loaded.WeightsVersion)
	}
}

func TestTechniqueRepo(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)

	course := testutil.SeedCourse(t, ctx, tx, "IF101")
	cpmk := testutil.SeedCpmk(t, ctx, tx, course.ID, "CPMK-1")
	repo := NewTechniqueRepo(gdb, log)

	quiz, err := repo.Create(dbc, &types.AssessmentTechnique{CpmkID: cpmk.ID, Name: "Quiz", Weight: decimal.RequireFromString("60")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.Create(dbc, &types.AssessmentTechnique{CpmkID: cpmk.ID, Name: "UTS", Weight: decimal.RequireFromString("40")}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rows, err := repo.ListByCpmkID(dbc, cpmk.ID)
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListByCpmkID: err=%v len=%d", err, len(rows))
	}

	if err := repo.UpdateWeight(dbc, quiz.ID, decimal.RequireFromString("55.50")); err != nil {
		t.Fatalf("UpdateWeight: %v", err)
	}
	got, err := repo.GetByID(dbc, quiz.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v row=%v", err, got)
	}
	if got.Weight.StringFixed(2) != "55.50" {
		t.Fatalf("UpdateWeight: expected 55.50 got %s", got.Weight.StringFixed(2))
	}

	if err := repo.Delete(dbc, quiz.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(dbc, quiz.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("Delete twice: expected ErrRecordNotFound, got %v", err)
	}
}

func TestMappingRepoUniquePair(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	log := testutil.Logger(t)

	course := testutil.SeedCourse(t, ctx, tx, "IF102")
	cpmk := testutil.SeedCpmk(t, ctx, tx, course.ID, "CPMK-1")
	cpl := testutil.SeedCpl(t, ctx, tx, "CPL-1")
	repo := NewMappingRepo(gdb, log)

	created, err := repo.Create(dbc, []*types.CpmkCplMapping{{CpmkID: cpmk.ID, CplID: cpl.ID, Weight: decimal.RequireFromString("70")}})
	if err != nil || len(created) != 1 {
		t.Fatalf("Create: err=%v len=%d", err, len(created))
	}

	// A nested transaction keeps the outer test tx usable after the failure.
	err = tx.Transaction(func(inner *gorm.DB) error {
		_, err := repo.Create(dbc.WithTx(inner), []*types.CpmkCplMapping{{CpmkID: cpmk.ID, CplID: cpl.ID, Weight: decimal.RequireFromString("10")}})
		return err
	})
	if !db.IsUniqueViolation(err) {
		t.Fatalf("Create duplicate: expected unique violation, got %v", err)
	}

	pair, err := repo.GetByCpmkAndCpl(dbc, cpmk.ID, cpl.ID)
	if err != nil || pair == nil || pair.ID != created[0].ID {
		t.Fatalf("GetByCpmkAndCpl: err=%v row=%v", err, pair)
	}
	byCpl, err := repo.ListByCplID(dbc, cpl.ID)
	if err != nil || len(byCpl) != 1 {
		t.Fatalf("ListByCplID: err=%v len=%d", err, len(byCpl))
	}
	if err := repo.Delete(dbc, pair.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	gone, err := repo.GetByID(dbc, pair.ID)
	if err != nil || gone != nil {
		t.Fatalf("GetByID after delete: err=%v row=%v", err, gone)
	}
}
