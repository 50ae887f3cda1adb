package outcomes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CpmkCplMapping links a CPMK to a CPL with a percentage weight. Mappings
// leaving one CPMK sum to at most 100.
type CpmkCplMapping struct {
	ID     uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CpmkID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cpmk_cpl_pair,priority:1" json:"cpmk_id"`
	CplID  uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_cpmk_cpl_pair,priority:2" json:"cpl_id"`
	Weight decimal.Decimal `gorm:"column:weight;type:numeric(6,2);not null" json:"weight"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (CpmkCplMapping) TableName() string { return "cpmk_cpl_mapping" }
