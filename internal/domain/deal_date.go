package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DealDate is one labeled milestone belonging to exactly one deal. Offsets
// are resolved into Date before storage; OffsetDays/OffsetFrom are kept as
// provenance only and never re-resolved at read time. Rows are replaced
// wholesale on edit (delete-all, insert-new), never diffed.
type DealDate struct {
	DealDateID uuid.UUID  `gorm:"column:deal_date_id;type:uuid;primaryKey" json:"deal_date_id"`
	DealID     uuid.UUID  `gorm:"column:deal_id;type:uuid;not null;index" json:"deal_id"`
	Label      string     `gorm:"column:label;not null" json:"label"`
	Date       *time.Time `gorm:"column:date" json:"date"`
	OffsetDays *int       `gorm:"column:offset_days" json:"offset_days"`
	OffsetFrom *string    `gorm:"column:offset_from" json:"offset_from"`
	SortOrder  int        `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	CreatedAt  time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt  time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (DealDate) TableName() string {
	return "DealDates"
}

func (d *DealDate) BeforeCreate(tx *gorm.DB) error {
	if d.DealDateID == uuid.Nil {
		d.DealDateID = uuid.New()
	}
	return nil
}
