package outcomes

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Course (mata kuliah) owns CPMKs and, through them, assessment techniques.
// WeightsVersion is bumped in the same transaction as every weight or mapping
// edit below the course; computed scores record the version they were built from.
type Course struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code           string    `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Name           string    `gorm:"column:name;not null" json:"name"`
	Credits        int       `gorm:"column:credits;not null;default:0" json:"credits"`
	WeightsVersion int64     `gorm:"column:weights_version;not null;default:0" json:"weights_version"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Course) TableName() string { return "course" }
