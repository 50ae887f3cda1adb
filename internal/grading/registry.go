package grading

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yungbote/obe-backend/internal/data/db"
	types "github.com/yungbote/obe-backend/internal/domain"
	"github.com/yungbote/obe-backend/internal/pkg/dbctx"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
)

const (
	kindTechnique = "technique"
	kindMapping   = "mapping"
)

// WeightChange is the recalculation obligation left by a committed edit.
type WeightChange struct {
	CourseID uuid.UUID       `json:"course_id"`
	CpmkID   uuid.UUID       `json:"cpmk_id"`
	CplID    uuid.UUID       `json:"cpl_id,omitempty"`
	Version  int64           `json:"weights_version"`
	NewTotal decimal.Decimal `json:"new_total"`
}

type MappingInput struct {
	CpmkID uuid.UUID       `json:"cpmk_id" validate:"required"`
	CplID  uuid.UUID       `json:"cpl_id" validate:"required"`
	Weight decimal.Decimal `json:"weight"`
}

// Registry owns technique weights and CPMK→CPL mappings. Every edit runs in
// one transaction that first bumps the course weights version, then re-reads
// the CPMK's current weights and checks the budget.
type Registry struct {
	tx     db.TxRunner
	stores Stores
	log    *logger.Logger
}

func NewRegistry(tx db.TxRunner, stores Stores, baseLog *logger.Logger) *Registry {
	return &Registry{
		tx:     tx,
		stores: stores,
		log:    baseLog.With("component", "WeightRegistry"),
	}
}

func (r *Registry) AddTechniqueWeight(ctx context.Context, cpmkID uuid.UUID, name string, weight decimal.Decimal) (*types.AssessmentTechnique, WeightChange, error) {
	if err := ValidateWeight(weight); err != nil {
		return nil, WeightChange{}, err
	}
	var (
		created *types.AssessmentTechnique
		change  WeightChange
	)
	err := r.tx.InTx(ctx, func(dbc dbctx.Context) error {
		cpmk, version, err := r.lockCpmk(dbc, cpmkID)
		if err != nil {
			return err
		}
		current, err := r.techniqueTotal(dbc, cpmkID, uuid.Nil)
		if err != nil {
			return err
		}
		if err := checkBudget(cpmkID, kindTechnique, current, weight); err != nil {
			return err
		}
		created, err = r.stores.Techniques.Create(dbc, &types.AssessmentTechnique{
			CpmkID: cpmkID,
			Name:   name,
			Weight: weight,
		})
		if err != nil {
			return fmt.Errorf("create technique: %w", err)
		}
		change = WeightChange{CourseID: cpmk.CourseID, CpmkID: cpmkID, Version: version, NewTotal: current.Add(weight)}
		return nil
	})
	if err != nil {
		return nil, WeightChange{}, err
	}
	r.log.Info("Technique added", "cpmk_id", cpmkID, "technique_id", created.ID, "weight", weight.String(), "total", change.NewTotal.String())
	return created, change, nil
}

func (r *Registry) UpdateTechniqueWeight(ctx context.Context, techniqueID uuid.UUID, weight decimal.Decimal) (WeightChange, error) {
	if err := ValidateWeight(weight); err != nil {
		return WeightChange{}, err
	}
	var change WeightChange
	err := r.tx.InTx(ctx, func(dbc dbctx.Context) error {
		tech, err := r.stores.Techniques.GetByID(dbc, techniqueID)
		if err != nil {
			return err
		}
		if tech == nil {
			return ErrTechniqueNotFound
		}
		cpmk, version, err := r.lockCpmk(dbc, tech.CpmkID)
		if err != nil {
			return err
		}
		current, err := r.techniqueTotal(dbc, tech.CpmkID, techniqueID)
		if err != nil {
			return err
		}
		if err := checkBudget(tech.CpmkID, kindTechnique, current, weight); err != nil {
			return err
		}
		if err := r.stores.Techniques.UpdateWeight(dbc, techniqueID, weight); err != nil {
			return fmt.Errorf("update technique weight: %w", err)
		}
		change = WeightChange{CourseID: cpmk.CourseID, CpmkID: tech.CpmkID, Version: version, NewTotal: current.Add(weight)}
		return nil
	})
	if err != nil {
		return WeightChange{}, err
	}
	r.log.Info("Technique weight updated", "technique_id", techniqueID, "weight", weight.String(), "total", change.NewTotal.String())
	return change, nil
}

// RemoveTechnique deletes the technique with its raw scores. Removal only
// lowers the sum, so there is no budget check.
func (r *Registry) RemoveTechnique(ctx context.Context, techniqueID uuid.UUID) (WeightChange, error) {
	var change WeightChange
	err := r.tx.InTx(ctx, func(dbc dbctx.Context) error {
		tech, err := r.stores.Techniques.GetByID(dbc, techniqueID)
		if err != nil {
			return err
		}
		if tech == nil {
			return ErrTechniqueNotFound
		}
		cpmk, version, err := r.lockCpmk(dbc, tech.CpmkID)
		if err != nil {
			return err
		}
		if _, err := r.stores.RawScores.DeleteByTechniqueID(dbc, techniqueID); err != nil {
			return fmt.Errorf("delete raw scores: %w", err)
		}
		if err := r.stores.Techniques.Delete(dbc, techniqueID); err != nil {
			return fmt.Errorf("delete technique: %w", err)
		}
		total, err := r.techniqueTotal(dbc, tech.CpmkID, uuid.Nil)
		if err != nil {
			return err
		}
		change = WeightChange{CourseID: cpmk.CourseID, CpmkID: tech.CpmkID, Version: version, NewTotal: total}
		return nil
	})
	if err != nil {
		return WeightChange{}, err
	}
	r.log.Info("Technique removed", "technique_id", techniqueID, "cpmk_id", change.CpmkID)
	return change, nil
}

func (r *Registry) AddCplMapping(ctx context.Context, cpmkID, cplID uuid.UUID, weight decimal.Decimal) (*types.CpmkCplMapping, WeightChange, error) {
	rows, changes, err := r.AddCplMappingsBatch(ctx, []MappingInput{{CpmkID: cpmkID, CplID: cplID, Weight: weight}})
	if err != nil {
		return nil, WeightChange{}, err
	}
	return rows[0], changes[0], nil
}

// AddCplMappingsBatch validates every per-CPMK sum (existing + batch) and
// every pair before writing any row; on a violation nothing is written and
// the error names the offending CPMK.
func (r *Registry) AddCplMappingsBatch(ctx context.Context, inputs []MappingInput) ([]*types.CpmkCplMapping, []WeightChange, error) {
	if len(inputs) == 0 {
		return []*types.CpmkCplMapping{}, []WeightChange{}, nil
	}
	for _, in := range inputs {
		if err := ValidateWeight(in.Weight); err != nil {
			return nil, nil, fmt.Errorf("cpmk %s: %w", in.CpmkID, err)
		}
	}

	var (
		created []*types.CpmkCplMapping
		changes []WeightChange
	)
	err := r.tx.InTx(ctx, func(dbc dbctx.Context) error {
		type pair struct{ cpmk, cpl uuid.UUID }
		seen := map[pair]struct{}{}
		pending := map[uuid.UUID]decimal.Decimal{}
		current := map[uuid.UUID]decimal.Decimal{}
		courses := map[uuid.UUID]uuid.UUID{}
		versions := map[uuid.UUID]int64{}
		var cpmkOrder []uuid.UUID

		for _, in := range inputs {
			if _, ok := courses[in.CpmkID]; !ok {
				cpmk, err := r.stores.Cpmks.GetByID(dbc, in.CpmkID)
				if err != nil {
					return err
				}
				if cpmk == nil {
					return fmt.Errorf("%w: %s", ErrCpmkNotFound, in.CpmkID)
				}
				courses[in.CpmkID] = cpmk.CourseID
				cpmkOrder = append(cpmkOrder, in.CpmkID)
			}
			cpl, err := r.stores.Cpls.GetByID(dbc, in.CplID)
			if err != nil {
				return err
			}
			if cpl == nil {
				return fmt.Errorf("%w: %s", ErrCplNotFound, in.CplID)
			}
			p := pair{in.CpmkID, in.CplID}
			if _, dup := seen[p]; dup {
				return fmt.Errorf("%w: cpmk %s cpl %s appears twice in batch", ErrMappingExists, in.CpmkID, in.CplID)
			}
			seen[p] = struct{}{}
			existing, err := r.stores.Mappings.GetByCpmkAndCpl(dbc, in.CpmkID, in.CplID)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("%w: cpmk %s cpl %s", ErrMappingExists, in.CpmkID, in.CplID)
			}
		}

		// Row locks are taken in id order so two batches spanning the same
		// courses cannot deadlock.
		courseSet := map[uuid.UUID]struct{}{}
		for _, courseID := range courses {
			courseSet[courseID] = struct{}{}
		}
		for _, courseID := range sortedIDs(courseSet) {
			v, err := r.bumpVersion(dbc, courseID)
			if err != nil {
				return err
			}
			versions[courseID] = v
		}

		for _, cpmkID := range cpmkOrder {
			total, err := r.mappingTotal(dbc, cpmkID, uuid.Nil)
			if err != nil {
				return err
			}
			current[cpmkID] = total
			pending[cpmkID] = decimal.Zero
		}

		for _, in := range inputs {
			if err := checkBudget(in.CpmkID, kindMapping, current[in.CpmkID].Add(pending[in.CpmkID]), in.Weight); err != nil {
				return err
			}
			pending[in.CpmkID] = pending[in.CpmkID].Add(in.Weight)
		}

		rows := make([]*types.CpmkCplMapping, 0, len(inputs))
		for _, in := range inputs {
			rows = append(rows, &types.CpmkCplMapping{CpmkID: in.CpmkID, CplID: in.CplID, Weight: in.Weight})
		}
		out, err := r.stores.Mappings.Create(dbc, rows)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrMappingExists
			}
			return fmt.Errorf("create mappings: %w", err)
		}
		created = out

		changes = make([]WeightChange, 0, len(inputs))
		for _, in := range inputs {
			courseID := courses[in.CpmkID]
			changes = append(changes, WeightChange{
				CourseID: courseID,
				CpmkID:   in.CpmkID,
				CplID:    in.CplID,
				Version:  versions[courseID],
				NewTotal: current[in.CpmkID].Add(pending[in.CpmkID]),
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	r.log.Info("Mappings added", "count", len(created))
	return created, changes, nil
}

func (r *Registry) UpdateCplMapping(ctx context.Context, mappingID uuid.UUID, weight decimal.Decimal) (WeightChange, error) {
	if err := ValidateWeight(weight); err != nil {
		return WeightChange{}, err
	}
	var change WeightChange
	err := r.tx.InTx(ctx, func(dbc dbctx.Context) error {
		m, err := r.stores.Mappings.GetByID(dbc, mappingID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrMappingNotFound
		}
		cpmk, version, err := r.lockCpmk(dbc, m.CpmkID)
		if err != nil {
			return err
		}
		current, err := r.mappingTotal(dbc, m.CpmkID, mappingID)
		if err != nil {
			return err
		}
		if err := checkBudget(m.CpmkID, kindMapping, current, weight); err != nil {
			return err
		}
		if err := r.stores.Mappings.UpdateWeight(dbc, mappingID, weight); err != nil {
			return fmt.Errorf("update mapping weight: %w", err)
		}
		change = WeightChange{CourseID: cpmk.CourseID, CpmkID: m.CpmkID, CplID: m.CplID, Version: version, NewTotal: current.Add(weight)}
		return nil
	})
	if err != nil {
		return WeightChange{}, err
	}
	r.log.Info("Mapping weight updated", "mapping_id", mappingID, "weight", weight.String(), "total", change.NewTotal.String())
	return change, nil
}

func (r *Registry) RemoveCplMapping(ctx context.Context, mappingID uuid.UUID) (WeightChange, error) {
	var change WeightChange
	err := r.tx.InTx(ctx, func(dbc dbctx.Context) error {
		m, err := r.stores.Mappings.GetByID(dbc, mappingID)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrMappingNotFound
		}
		cpmk, version, err := r.lockCpmk(dbc, m.CpmkID)
		if err != nil {
			return err
		}
		if err := r.stores.Mappings.Delete(dbc, mappingID); err != nil {
			return fmt.Errorf("delete mapping: %w", err)
		}
		total, err := r.mappingTotal(dbc, m.CpmkID, uuid.Nil)
		if err != nil {
			return err
		}
		change = WeightChange{CourseID: cpmk.CourseID, CpmkID: m.CpmkID, CplID: m.CplID, Version: version, NewTotal: total}
		return nil
	})
	if err != nil {
		return WeightChange{}, err
	}
	r.log.Info("Mapping removed", "mapping_id", mappingID, "cpmk_id", change.CpmkID, "cpl_id", change.CplID)
	return change, nil
}

// Snapshot reads the course version and every weight under it in one
// consistent read.
func (r *Registry) Snapshot(ctx context.Context, courseID uuid.UUID) (*WeightSnapshot, error) {
	var snap *WeightSnapshot
	err := r.tx.InReadTx(ctx, func(dbc dbctx.Context) error {
		course, err := r.stores.Courses.GetByID(dbc, courseID)
		if err != nil {
			return err
		}
		if course == nil {
			return ErrCourseNotFound
		}
		cpmks, err := r.stores.Cpmks.ListByCourseID(dbc, courseID)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(cpmks))
		for _, c := range cpmks {
			ids = append(ids, c.ID)
		}
		techniques, err := r.stores.Techniques.ListByCpmkIDs(dbc, ids)
		if err != nil {
			return err
		}
		mappings, err := r.stores.Mappings.ListByCpmkIDs(dbc, ids)
		if err != nil {
			return err
		}

		byCpmk := make(map[uuid.UUID]*CpmkWeights, len(cpmks))
		list := make([]CpmkWeights, 0, len(cpmks))
		for _, c := range cpmks {
			byCpmk[c.ID] = &CpmkWeights{CpmkID: c.ID, Code: c.Code}
		}
		for _, t := range techniques {
			if w, ok := byCpmk[t.CpmkID]; ok {
				w.Techniques = append(w.Techniques, TechniqueWeight{ID: t.ID, Name: t.Name, Weight: t.Weight})
			}
		}
		for _, m := range mappings {
			if w, ok := byCpmk[m.CpmkID]; ok {
				w.Mappings = append(w.Mappings, MappingWeight{ID: m.ID, CpmkID: m.CpmkID, CplID: m.CplID, Weight: m.Weight})
			}
		}
		for _, c := range cpmks {
			list = append(list, *byCpmk[c.ID])
		}
		snap = NewWeightSnapshot(courseID, course.WeightsVersion, list)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// CpmkWeights returns the current weights and totals of one CPMK.
func (r *Registry) CpmkWeights(ctx context.Context, cpmkID uuid.UUID) (CpmkWeights, error) {
	cpmk, err := r.stores.Cpmks.GetByID(dbctx.New(ctx), cpmkID)
	if err != nil {
		return CpmkWeights{}, err
	}
	if cpmk == nil {
		return CpmkWeights{}, ErrCpmkNotFound
	}
	snap, err := r.Snapshot(ctx, cpmk.CourseID)
	if err != nil {
		return CpmkWeights{}, err
	}
	w, ok := snap.Cpmk(cpmkID)
	if !ok {
		return CpmkWeights{}, ErrCpmkNotFound
	}
	return w, nil
}

// lockCpmk re-reads the CPMK inside the transaction and bumps its course's
// weights version before any sum is read.
func (r *Registry) lockCpmk(dbc dbctx.Context, cpmkID uuid.UUID) (*types.Cpmk, int64, error) {
	cpmk, err := r.stores.Cpmks.GetByID(dbc, cpmkID)
	if err != nil {
		return nil, 0, err
	}
	if cpmk == nil {
		return nil, 0, ErrCpmkNotFound
	}
	version, err := r.bumpVersion(dbc, cpmk.CourseID)
	if err != nil {
		return nil, 0, err
	}
	return cpmk, version, nil
}

func (r *Registry) bumpVersion(dbc dbctx.Context, courseID uuid.UUID) (int64, error) {
	version, err := r.stores.Courses.BumpWeightsVersion(dbc, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrCourseNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("bump weights version: %w", err)
	}
	return version, nil
}

func (r *Registry) techniqueTotal(dbc dbctx.Context, cpmkID, exclude uuid.UUID) (decimal.Decimal, error) {
	rows, err := r.stores.Techniques.ListByCpmkID(dbc, cpmkID)
	if err != nil {
		return decimal.Zero, err
	}
	ws := make([]decimal.Decimal, 0, len(rows))
	for _, t := range rows {
		if t.ID != exclude {
			ws = append(ws, t.Weight)
		}
	}
	return sumWeights(ws), nil
}

func (r *Registry) mappingTotal(dbc dbctx.Context, cpmkID, exclude uuid.UUID) (decimal.Decimal, error) {
	rows, err := r.stores.Mappings.ListByCpmkIDs(dbc, []uuid.UUID{cpmkID})
	if err != nil {
		return decimal.Zero, err
	}
	ws := make([]decimal.Decimal, 0, len(rows))
	for _, m := range rows {
		if m.ID != exclude {
			ws = append(ws, m.Weight)
		}
	}
	return sumWeights(ws), nil
}

func checkBudget(cpmkID uuid.UUID, kind string, current, requested decimal.Decimal) error {
	if current.Add(requested).GreaterThan(Hundred) {
		return &WeightOverflowError{
			CpmkID:       cpmkID,
			Kind:         kind,
			CurrentTotal: current,
			Requested:    requested,
		}
	}
	return nil
}
