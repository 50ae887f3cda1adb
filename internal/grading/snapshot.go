package grading

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TechniqueWeight struct {
	ID     uuid.UUID       `json:"id"`
	Name   string          `json:"name"`
	Weight decimal.Decimal `json:"weight"`
}

type MappingWeight struct {
	ID     uuid.UUID       `json:"id"`
	CpmkID uuid.UUID       `json:"cpmk_id"`
	CplID  uuid.UUID       `json:"cpl_id"`
	Weight decimal.Decimal `json:"weight"`
}

type CpmkWeights struct {
	CpmkID     uuid.UUID         `json:"cpmk_id"`
	Code       string            `json:"code"`
	Techniques []TechniqueWeight `json:"techniques"`
	Mappings   []MappingWeight   `json:"mappings"`
}

func (c CpmkWeights) Technique(id uuid.UUID) (TechniqueWeight, bool) {
	for _, t := range c.Techniques {
		if t.ID == id {
			return t, true
		}
	}
	return TechniqueWeight{}, false
}

func (c CpmkWeights) TechniqueTotal() decimal.Decimal {
	total := decimal.Zero
	for _, t := range c.Techniques {
		total = total.Add(t.Weight)
	}
	return total
}

func (c CpmkWeights) MappingTotal() decimal.Decimal {
	total := decimal.Zero
	for _, m := range c.Mappings {
		total = total.Add(m.Weight)
	}
	return total
}

func (c CpmkWeights) clone() CpmkWeights {
	out := c
	out.Techniques = append([]TechniqueWeight(nil), c.Techniques...)
	out.Mappings = append([]MappingWeight(nil), c.Mappings...)
	return out
}

// WeightSnapshot is an immutable view of one course's weights at Version.
// Aggregators take it as an argument so every compute in a cascade uses the
// same weights even while edits land.
type WeightSnapshot struct {
	CourseID uuid.UUID
	Version  int64

	order []uuid.UUID
	cpmks map[uuid.UUID]CpmkWeights
}

// NewWeightSnapshot copies its input; later changes to cpmks do not leak in.
func NewWeightSnapshot(courseID uuid.UUID, version int64, cpmks []CpmkWeights) *WeightSnapshot {
	s := &WeightSnapshot{
		CourseID: courseID,
		Version:  version,
		order:    make([]uuid.UUID, 0, len(cpmks)),
		cpmks:    make(map[uuid.UUID]CpmkWeights, len(cpmks)),
	}
	for _, c := range cpmks {
		if _, dup := s.cpmks[c.CpmkID]; dup {
			continue
		}
		s.order = append(s.order, c.CpmkID)
		s.cpmks[c.CpmkID] = c.clone()
	}
	return s
}

func (s *WeightSnapshot) Cpmk(id uuid.UUID) (CpmkWeights, bool) {
	c, ok := s.cpmks[id]
	if !ok {
		return CpmkWeights{}, false
	}
	return c.clone(), true
}

func (s *WeightSnapshot) CpmkIDs() []uuid.UUID {
	return append([]uuid.UUID(nil), s.order...)
}

func (s *WeightSnapshot) TechniqueIDs() []uuid.UUID {
	var out []uuid.UUID
	for _, id := range s.order {
		for _, t := range s.cpmks[id].Techniques {
			out = append(out, t.ID)
		}
	}
	return out
}

// MappingsToCpl returns the mappings into cplID from CPMKs of this course.
func (s *WeightSnapshot) MappingsToCpl(cplID uuid.UUID) []MappingWeight {
	var out []MappingWeight
	for _, id := range s.order {
		for _, m := range s.cpmks[id].Mappings {
			if m.CplID == cplID {
				out = append(out, m)
			}
		}
	}
	return out
}

// CplIDs lists every CPL mapped from any CPMK of the course, sorted.
func (s *WeightSnapshot) CplIDs() []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	for _, id := range s.order {
		for _, m := range s.cpmks[id].Mappings {
			seen[m.CplID] = struct{}{}
		}
	}
	return sortedIDs(seen)
}

// CplIDsForCpmk lists the CPLs cpmkID maps to, sorted.
func (s *WeightSnapshot) CplIDsForCpmk(cpmkID uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	for _, m := range s.cpmks[cpmkID].Mappings {
		seen[m.CplID] = struct{}{}
	}
	return sortedIDs(seen)
}

func sortedIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
