package grading

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawScore is a student's grade for one assessment technique in one period.
type RawScore struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_raw_score_key,priority:1" json:"student_id"`
	TechniqueID  uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_raw_score_key,priority:2" json:"technique_id"`
	Semester     int             `gorm:"column:semester;not null;uniqueIndex:idx_raw_score_key,priority:3" json:"semester"`
	AcademicTerm string          `gorm:"column:academic_term;not null;uniqueIndex:idx_raw_score_key,priority:4" json:"academic_term"`
	Score        decimal.Decimal `gorm:"column:score;type:numeric(6,2);not null" json:"score"`
	GradedBy     string          `gorm:"column:graded_by" json:"graded_by,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (RawScore) TableName() string { return "raw_score" }

func (r RawScore) Scope() Scope {
	return Scope{StudentID: r.StudentID, Semester: r.Semester, AcademicTerm: r.AcademicTerm}
}
