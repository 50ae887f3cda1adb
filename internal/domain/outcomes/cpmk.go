package outcomes

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Cpmk is a course-level learning outcome (capaian pembelajaran mata kuliah).
type Cpmk struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_cpmk_course_code,priority:1" json:"course_id"`
	Code        string    `gorm:"column:code;not null;uniqueIndex:idx_cpmk_course_code,priority:2" json:"code"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Cpmk) TableName() string { return "cpmk" }
