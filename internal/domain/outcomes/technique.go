package outcomes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssessmentTechnique is a gradable instrument (quiz, project, exam) weighted
// inside exactly one CPMK. Weights under one CPMK sum to at most 100.
type AssessmentTechnique struct {
	ID     uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CpmkID uuid.UUID       `gorm:"type:uuid;not null;index" json:"cpmk_id"`
	Name   string          `gorm:"column:name;not null" json:"name"`
	Weight decimal.Decimal `gorm:"column:weight;type:numeric(6,2);not null" json:"weight"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (AssessmentTechnique) TableName() string { return "assessment_technique" }
