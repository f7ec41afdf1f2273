package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Broker is a row in the broker directory. The engine only reads it to
// decorate member rows with a display name and email.
type Broker struct {
	BrokerID  uuid.UUID `gorm:"column:broker_id;type:uuid;primaryKey" json:"broker_id"`
	Fullname  string    `gorm:"column:fullname;not null" json:"fullname"`
	Email     string    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Broker) TableName() string {
	return "Brokers"
}

func (b *Broker) BeforeCreate(tx *gorm.DB) error {
	if b.BrokerID == uuid.Nil {
		b.BrokerID = uuid.New()
	}
	return nil
}
