package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/obe-backend/internal/data/repos/testutil"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"gorm.io/datatypes"
)

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now()
	jobType := "test_job_" + uuid.NewString()[:8]

	queued := &types.JobRun{
		ID:          uuid.New(),
		RequestedBy: "dosen-1",
		JobType:     jobType,
		EntityType:  "cpmk",
		EntityID:    ptrUUID(uuid.New()),
		DedupeKey:   "cpmk-weights:a",
		Status:      "queued",
		Stage:       "queued",
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-3 * time.Hour),
		UpdatedAt:   now.Add(-3 * time.Hour),
	}
	failed := &types.JobRun{
		ID:          uuid.New(),
		JobType:     jobType,
		EntityType:  "cpmk",
		EntityID:    ptrUUID(uuid.New()),
		Status:      "failed",
		Stage:       "failed",
		Attempts:    0,
		LastErrorAt: ptrTime(now.Add(-2 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-2 * time.Hour),
		UpdatedAt:   now.Add(-2 * time.Hour),
	}
	staleRunning := &types.JobRun{
		ID:          uuid.New(),
		JobType:     jobType,
		EntityType:  "cpmk",
		EntityID:    ptrUUID(uuid.New()),
		Status:      "running",
		Stage:       "running",
		Attempts:    0,
		HeartbeatAt: ptrTime(now.Add(-10 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-1 * time.Hour),
		UpdatedAt:   now.Add(-1 * time.Hour),
	}

	created, err := repo.Create(dbc, []*types.JobRun{queued, failed, staleRunning})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("Create: expected 3, got %d", len(created))
	}

	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{queued.ID, failed.ID, staleRunning.ID}); err != nil || len(rows) != 3 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	got, err := repo.GetByID(dbc, queued.ID)
	if err != nil || got == nil || got.RequestedBy != "dosen-1" {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	missing, err := repo.GetByID(dbc, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("GetByID missing: err=%v got=%v", err, missing)
	}

	dup, err := repo.FindQueuedByDedupeKey(dbc, jobType, "cpmk-weights:a")
	if err != nil {
		t.Fatalf("FindQueuedByDedupeKey: %v", err)
	}
	if dup == nil || dup.ID != queued.ID {
		t.Fatalf("FindQueuedByDedupeKey: expected %v got %v", queued.ID, dup)
	}

	entityJobs, err := repo.ListByEntity(dbc, "cpmk", *queued.EntityID, 5)
	if err != nil || len(entityJobs) != 1 {
		t.Fatalf("ListByEntity: err=%v len=%d", err, len(entityJobs))
	}

	// ClaimNextRunnable should walk the runnable set in created_at ASC order.
	claim1, err := repo.ClaimNextRunnable(dbc, 3, 1*time.Hour, 1*time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #1: %v", err)
	}
	if claim1 == nil || claim1.ID != queued.ID {
		t.Fatalf("ClaimNextRunnable #1: expected %v got %v", queued.ID, claim1)
	}
	if claim1.Status != "running" || claim1.Attempts != 1 {
		t.Fatalf("ClaimNextRunnable #1: expected running/1 got %s/%d", claim1.Status, claim1.Attempts)
	}

	// Once claimed the job no longer absorbs duplicates.
	dup, err = repo.FindQueuedByDedupeKey(dbc, jobType, "cpmk-weights:a")
	if err != nil || dup != nil {
		t.Fatalf("FindQueuedByDedupeKey after claim: err=%v got=%v", err, dup)
	}

	claim2, err := repo.ClaimNextRunnable(dbc, 3, 1*time.Hour, 1*time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #2: %v", err)
	}
	if claim2 == nil || claim2.ID != failed.ID {
		t.Fatalf("ClaimNextRunnable #2: expected %v got %v", failed.ID, claim2)
	}

	claim3, err := repo.ClaimNextRunnable(dbc, 3, 1*time.Hour, 1*time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #3: %v", err)
	}
	if claim3 == nil || claim3.ID != staleRunning.ID {
		t.Fatalf("ClaimNextRunnable #3: expected %v got %v", staleRunning.ID, claim3)
	}

	claim4, err := repo.ClaimNextRunnable(dbc, 3, 1*time.Hour, 1*time.Hour)
	if err != nil {
		t.Fatalf("ClaimNextRunnable #4: %v", err)
	}
	if claim4 != nil && claim4.JobType == jobType {
		t.Fatalf("ClaimNextRunnable #4: expected nothing of %s, got %v", jobType, claim4.ID)
	}

	if err := repo.UpdateFields(dbc, queued.ID, map[string]interface{}{"status": "succeeded", "stage": "done", "progress": 100}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	ok, err := repo.UpdateFieldsUnlessStatus(dbc, queued.ID, []string{"succeeded"}, map[string]interface{}{"status": "failed"})
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if ok {
		t.Fatalf("UpdateFieldsUnlessStatus: expected terminal status to be kept")
	}

	if err := repo.Heartbeat(dbc, failed.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func ptrUUID(u uuid.UUID) *uuid.UUID { return &u }
