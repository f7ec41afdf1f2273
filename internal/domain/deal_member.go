package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DealMember joins a deal to a broker in the directory. SplitPercent nil
// means "share evenly across all listed members". Broker display fields live
// in the directory, not here.
type DealMember struct {
	DealMemberID uuid.UUID `gorm:"column:deal_member_id;type:uuid;primaryKey" json:"deal_member_id"`
	DealID       uuid.UUID `gorm:"column:deal_id;type:uuid;not null;index" json:"deal_id"`
	BrokerID     uuid.UUID `gorm:"column:broker_id;type:uuid;not null" json:"broker_id"`
	SplitPercent *float64  `gorm:"column:split_percent;type:decimal(9,6)" json:"split_percent"`
	CreatedAt    time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (DealMember) TableName() string {
	return "DealMembers"
}

func (m *DealMember) BeforeCreate(tx *gorm.DB) error {
	if m.DealMemberID == uuid.Nil {
		m.DealMemberID = uuid.New()
	}
	return nil
}
