package outcomes

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cpl is a program-level graduate learning outcome (capaian pembelajaran lulusan).
type Cpl struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string    `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Cpl) TableName() string { return "cpl" }
