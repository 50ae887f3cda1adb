package grading

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CplScore is tracked per contributing course; averaging across courses
// happens in reporting, not here.
type CplScore struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cpl_score_key,priority:1" json:"student_id"`
	CplID          uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_cpl_score_key,priority:2" json:"cpl_id"`
	CourseID       uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_cpl_score_key,priority:3" json:"course_id"`
	Semester       int             `gorm:"column:semester;not null;uniqueIndex:idx_cpl_score_key,priority:4" json:"semester"`
	AcademicTerm   string          `gorm:"column:academic_term;not null;uniqueIndex:idx_cpl_score_key,priority:5" json:"academic_term"`
	Score          decimal.Decimal `gorm:"column:score;type:numeric(6,2);not null" json:"score"`
	WeightsVersion int64           `gorm:"column:weights_version;not null;default:0" json:"weights_version"`
	ComputedAt     time.Time       `gorm:"column:computed_at;not null" json:"computed_at"`
}

func (CplScore) TableName() string { return "cpl_score" }
