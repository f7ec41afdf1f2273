package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Deal event types.
const (
	EventStatusChanged    = "status_changed"
	EventDecisionRecorded = "extension_decision"
)

// DealEvent is one append-only audit row: every status change, explicit or
// reconciled, lands here with a JSON payload describing the transition.
type DealEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	DealID    uuid.UUID      `gorm:"column:deal_id;type:uuid;not null;index" json:"deal_id"`
	EventType string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	EventData datatypes.JSON `gorm:"column:event_data;type:json;not null" json:"event_data"`
	CreatedAt time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (DealEvent) TableName() string {
	return "DealEvents"
}

func (e *DealEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
