package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Deal statuses. active and due_diligence are the only statuses the
// reconciler may change on its own; closed and cancelled are terminal.
const (
	StatusActive       = "active"
	StatusDueDiligence = "due_diligence"
	StatusClosing      = "closing"
	StatusClosed       = "closed"
	StatusCancelled    = "cancelled"
)

// Deal types.
const (
	DealTypeSale  = "sale"
	DealTypeLease = "lease"
)

// Extension-decision values recorded on a deal once the broker answers the
// due-diligence prompt.
const (
	DecisionFiled    = "filed"
	DecisionDeclined = "declined"
)

// AdditionalSplit is an off-the-top deduction (referral fee, co-broker
// payout) applied against the post-house amount.
type AdditionalSplit struct {
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
}

// AdditionalSplits stores the deduction list as a json column but exposes it
// as a typed slice so the calculator and the API both see an array.
type AdditionalSplits []AdditionalSplit

// Scan implements sql.Scanner for reading from DB (json column).
func (a *AdditionalSplits) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("unsupported type for AdditionalSplits")
	}
}

// Value implements driver.Valuer for writing to DB.
func (a AdditionalSplits) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	bs, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(bs), nil
}

// Deal is the central entity: one property transaction moving through
// escrow. Dated milestones and member rows are owned exclusively by the deal
// and cascade on delete.
type Deal struct {
	DealID           uuid.UUID        `gorm:"column:deal_id;type:uuid;primaryKey" json:"deal_id"`
	BrokerID         uuid.UUID        `gorm:"column:broker_id;type:uuid;not null" json:"broker_id"`
	Price            *float64         `gorm:"column:price;type:decimal(18,2)" json:"price"`
	CommissionRate   float64          `gorm:"column:commission_rate;type:decimal(9,6);not null" json:"commission_rate"`
	BrokerSplit      float64          `gorm:"column:broker_split;type:decimal(9,6);not null" json:"broker_split"`
	AdditionalSplits AdditionalSplits `gorm:"column:additional_splits;type:json" json:"additional_splits"`
	DealType         string           `gorm:"column:deal_type;type:varchar(10);default:'sale'" json:"deal_type"`
	Status           string           `gorm:"column:status;type:varchar(20);default:'active'" json:"status"`

	EffectiveDate  *time.Time `gorm:"column:effective_date" json:"effective_date"`
	EscrowOpenDate *time.Time `gorm:"column:escrow_open_date" json:"escrow_open_date"`

	// Legacy fixed-offset schedule. Used only when no DealDate rows exist.
	FeasibilityDays  *int       `gorm:"column:feasibility_days" json:"feasibility_days"`
	DDExtensionDate  *time.Time `gorm:"column:dd_extension_date" json:"dd_extension_date"`
	InsideCloseDays  *int       `gorm:"column:inside_close_days" json:"inside_close_days"`
	OutsideCloseDays *int       `gorm:"column:outside_close_days" json:"outside_close_days"`

	// Extension decision, recorded against the milestone date it answered so
	// an amended schedule prompts again.
	ExtensionDecision    *string    `gorm:"column:extension_decision;type:varchar(10)" json:"extension_decision"`
	ExtensionDecisionFor *time.Time `gorm:"column:extension_decision_for" json:"extension_decision_for"`

	ActualCloseDate *time.Time `gorm:"column:actual_close_date" json:"actual_close_date"`
	CancelReason    *string    `gorm:"column:cancel_reason" json:"cancel_reason"`
	Notes           string     `gorm:"column:notes;type:text" json:"notes"`

	DealDates   []DealDate   `gorm:"foreignKey:DealID;references:DealID;constraint:OnDelete:CASCADE" json:"deal_dates"`
	DealMembers []DealMember `gorm:"foreignKey:DealID;references:DealID;constraint:OnDelete:CASCADE" json:"deal_members"`

	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Deal) TableName() string {
	return "Deals"
}

// BeforeCreate sets deal_id if not already set (DBs without default uuid).
func (d *Deal) BeforeCreate(tx *gorm.DB) error {
	if d.DealID == uuid.Nil {
		d.DealID = uuid.New()
	}
	return nil
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusClosed || status == StatusCancelled
}
