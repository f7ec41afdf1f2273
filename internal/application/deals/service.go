package deals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dealdesk-backend/internal/domain"
	"dealdesk-backend/internal/lifecycle"
	"dealdesk-backend/internal/timeline"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service is the deal store boundary: reads join dates and members onto the
// deal, writes patch status or replace child rows wholesale.
type Service struct {
	DB *gorm.DB
}

type DateInput struct {
	Label      string
	Date       *time.Time
	OffsetDays *int
	OffsetFrom *string
	SortOrder  int
}

type MemberInput struct {
	BrokerID     uuid.UUID
	SplitPercent *float64
}

type CreateDealInput struct {
	BrokerID         uuid.UUID
	Price            *float64
	CommissionRate   float64
	BrokerSplit      float64
	AdditionalSplits domain.AdditionalSplits
	DealType         string
	EffectiveDate    *time.Time
	EscrowOpenDate   *time.Time
	FeasibilityDays  *int
	DDExtensionDate  *time.Time
	InsideCloseDays  *int
	OutsideCloseDays *int
	Notes            string
	Dates            []DateInput
	Members          []MemberInput
}

type UpdateDealInput struct {
	DealID           uuid.UUID
	Price            *float64
	CommissionRate   float64
	BrokerSplit      float64
	AdditionalSplits domain.AdditionalSplits
	DealType         string
	EffectiveDate    *time.Time
	EscrowOpenDate   *time.Time
	FeasibilityDays  *int
	DDExtensionDate  *time.Time
	InsideCloseDays  *int
	OutsideCloseDays *int
	Notes            string
	Dates            []DateInput
	Members          []MemberInput
}

// statusChange is the event_data payload for a status_changed event. Via
// names the code path that issued the write.
type statusChange struct {
	From string `json:"from"`
	To   string `json:"to"`
	Via  string `json:"via"`
}

func recordStatusChange(tx *gorm.DB, dealID uuid.UUID, from, to, via string) error {
	payload, err := json.Marshal(statusChange{From: from, To: to, Via: via})
	if err != nil {
		return err
	}
	event := domain.DealEvent{DealID: dealID, EventType: domain.EventStatusChanged, EventData: datatypes.JSON(payload)}
	return tx.Create(&event).Error
}

// GetDeal fetches one deal with its dated milestones (in sort order) and
// member roster joined.
func (s *Service) GetDeal(ctx context.Context, dealID uuid.UUID) (*domain.Deal, error) {
	var deal domain.Deal
	err := s.DB.WithContext(ctx).
		Preload("DealDates", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("DealMembers").
		Where("deal_id = ?", dealID).First(&deal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDealNotFound
		}
		return nil, err
	}
	return &deal, nil
}

// ListDeals returns every deal owned by a broker, newest first.
func (s *Service) ListDeals(ctx context.Context, brokerID uuid.UUID) ([]domain.Deal, error) {
	var deals []domain.Deal
	err := s.DB.WithContext(ctx).
		Preload("DealDates", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("DealMembers").
		Where("broker_id = ?", brokerID).
		Order(`"createdAt" DESC`).
		Find(&deals).Error
	return deals, err
}

// ListOpenDeals returns every non-terminal deal, the set a reconciliation
// pass or the board operates on.
func (s *Service) ListOpenDeals(ctx context.Context) ([]domain.Deal, error) {
	var deals []domain.Deal
	err := s.DB.WithContext(ctx).
		Preload("DealDates", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("DealMembers").
		Where("status NOT IN ?", []string{domain.StatusClosed, domain.StatusCancelled}).
		Order(`"createdAt" DESC`).
		Find(&deals).Error
	return deals, err
}

// CreateDeal inserts a deal with its dates and members in one transaction.
func (s *Service) CreateDeal(ctx context.Context, in CreateDealInput) (*domain.Deal, error) {
	dealType := in.DealType
	if dealType == "" {
		dealType = domain.DealTypeSale
	}
	deal := &domain.Deal{
		BrokerID:         in.BrokerID,
		Price:            in.Price,
		CommissionRate:   in.CommissionRate,
		BrokerSplit:      in.BrokerSplit,
		AdditionalSplits: in.AdditionalSplits,
		DealType:         dealType,
		Status:           domain.StatusActive,
		EffectiveDate:    in.EffectiveDate,
		EscrowOpenDate:   in.EscrowOpenDate,
		FeasibilityDays:  in.FeasibilityDays,
		DDExtensionDate:  in.DDExtensionDate,
		InsideCloseDays:  in.InsideCloseDays,
		OutsideCloseDays: in.OutsideCloseDays,
		Notes:            in.Notes,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(deal).Error; err != nil {
			return fmt.Errorf("Failed to create deal: %v", err)
		}
		if err := insertDates(tx, deal.DealID, in.Dates); err != nil {
			return err
		}
		return insertMembers(tx, deal.DealID, in.Members)
	})
	if err != nil {
		return nil, err
	}
	return s.GetDeal(ctx, deal.DealID)
}

// UpdateDeal rewrites a deal's commercial terms and replaces its dates and
// members wholesale (delete-all then insert-new, never diffed).
func (s *Service) UpdateDeal(ctx context.Context, in UpdateDealInput) (*domain.Deal, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var deal domain.Deal
		if err := tx.Where("deal_id = ?", in.DealID).First(&deal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDealNotFound
			}
			return err
		}

		updates := map[string]interface{}{
			"price":              in.Price,
			"commission_rate":    in.CommissionRate,
			"broker_split":       in.BrokerSplit,
			"additional_splits":  in.AdditionalSplits,
			"deal_type":          in.DealType,
			"effective_date":     in.EffectiveDate,
			"escrow_open_date":   in.EscrowOpenDate,
			"feasibility_days":   in.FeasibilityDays,
			"dd_extension_date":  in.DDExtensionDate,
			"inside_close_days":  in.InsideCloseDays,
			"outside_close_days": in.OutsideCloseDays,
			"notes":              in.Notes,
		}
		if err := tx.Model(&domain.Deal{}).Where("deal_id = ?", in.DealID).Updates(updates).Error; err != nil {
			return err
		}

		if err := tx.Where("deal_id = ?", in.DealID).Delete(&domain.DealDate{}).Error; err != nil {
			return err
		}
		if err := insertDates(tx, in.DealID, in.Dates); err != nil {
			return err
		}
		if err := tx.Where("deal_id = ?", in.DealID).Delete(&domain.DealMember{}).Error; err != nil {
			return err
		}
		return insertMembers(tx, in.DealID, in.Members)
	})
	if err != nil {
		return nil, err
	}
	return s.GetDeal(ctx, in.DealID)
}

// DeleteDeal removes a deal and the milestone, member, and event rows it owns.
func (s *Service) DeleteDeal(ctx context.Context, dealID uuid.UUID) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var deal domain.Deal
		if err := tx.Where("deal_id = ?", dealID).First(&deal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDealNotFound
			}
			return err
		}
		if err := tx.Where("deal_id = ?", dealID).Delete(&domain.DealDate{}).Error; err != nil {
			return err
		}
		if err := tx.Where("deal_id = ?", dealID).Delete(&domain.DealMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("deal_id = ?", dealID).Delete(&domain.DealEvent{}).Error; err != nil {
			return err
		}
		return tx.Where("deal_id = ?", dealID).Delete(&domain.Deal{}).Error
	})
}

// UpdateStatus applies an explicit status change, validated against the
// state machine.
func (s *Service) UpdateStatus(ctx context.Context, dealID uuid.UUID, newStatus string) (*domain.Deal, error) {
	deal, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanTransition(deal.Status, newStatus) {
		return nil, ErrInvalidTransition
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Deal{}).
			Where("deal_id = ?", dealID).
			Update("status", newStatus).Error; err != nil {
			return err
		}
		return recordStatusChange(tx, dealID, deal.Status, newStatus, "explicit")
	})
	if err != nil {
		return nil, err
	}
	deal.Status = newStatus
	return deal, nil
}

// CloseDeal moves a closing deal to closed and stamps the actual close date.
func (s *Service) CloseDeal(ctx context.Context, dealID uuid.UUID, closeDate time.Time) (*domain.Deal, error) {
	deal, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanTransition(deal.Status, domain.StatusClosed) {
		return nil, ErrInvalidTransition
	}
	closeDate = timeline.Truncate(closeDate)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Deal{}).
			Where("deal_id = ?", dealID).
			Updates(map[string]interface{}{"status": domain.StatusClosed, "actual_close_date": closeDate}).Error; err != nil {
			return err
		}
		return recordStatusChange(tx, dealID, deal.Status, domain.StatusClosed, "close")
	})
	if err != nil {
		return nil, err
	}
	deal.Status = domain.StatusClosed
	deal.ActualCloseDate = &closeDate
	return deal, nil
}

// CancelDeal cancels any non-terminal deal with a reason.
func (s *Service) CancelDeal(ctx context.Context, dealID uuid.UUID, reason string) (*domain.Deal, error) {
	deal, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanTransition(deal.Status, domain.StatusCancelled) {
		return nil, ErrInvalidTransition
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Deal{}).
			Where("deal_id = ?", dealID).
			Updates(map[string]interface{}{"status": domain.StatusCancelled, "cancel_reason": reason}).Error; err != nil {
			return err
		}
		return recordStatusChange(tx, dealID, deal.Status, domain.StatusCancelled, "cancel")
	})
	if err != nil {
		return nil, err
	}
	deal.Status = domain.StatusCancelled
	deal.CancelReason = &reason
	return deal, nil
}

// MoveDeal applies a board drag-and-drop: set the deal's status to the
// target column's canonical status. A same-column move is rejected here so
// no write is ever issued for it. Board moves are explicit human overrides,
// so they may go backwards as well as forwards; only terminal deals refuse.
func (s *Service) MoveDeal(ctx context.Context, dealID uuid.UUID, column string) (*domain.Deal, error) {
	target, ok := lifecycle.StatusFor(column)
	if !ok {
		return nil, ErrUnknownColumn
	}
	deal, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if domain.IsTerminal(deal.Status) {
		return nil, ErrDealTerminal
	}
	if current, _ := lifecycle.ColumnFor(deal.Status); current == column {
		return nil, ErrSameColumn
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Deal{}).
			Where("deal_id = ?", dealID).
			Update("status", target).Error; err != nil {
			return err
		}
		return recordStatusChange(tx, dealID, deal.Status, target, "board")
	})
	if err != nil {
		return nil, err
	}
	deal.Status = target
	return deal, nil
}

// ApplyAdvancement persists one silent advancement from a reconciliation
// pass. The status predicate makes the write idempotent: a deal that already
// moved past fromStatus is left alone, and no event row is written for it.
func (s *Service) ApplyAdvancement(ctx context.Context, dealID uuid.UUID, fromStatus, toStatus string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Deal{}).
			Where("deal_id = ? AND status = ?", dealID, fromStatus).
			Update("status", toStatus)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return recordStatusChange(tx, dealID, fromStatus, toStatus, "reconciler")
	})
}

// ResolveExtensionDecision records the broker's answer to the due-diligence
// prompt. "Filed" keeps the deal in due diligence (the caller then amends
// the schedule); "declined" moves it straight to closing. The answer is
// stamped with the milestone date it applies to, so an amended schedule
// prompts again.
func (s *Service) ResolveExtensionDecision(ctx context.Context, dealID uuid.UUID, filed bool) (*domain.Deal, error) {
	deal, err := s.GetDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.Status != domain.StatusDueDiligence {
		return nil, ErrNoDecisionDue
	}

	sched := timeline.ScheduleOf(deal)
	var milestone *timeline.Milestone
	for i := range sched.Milestones {
		m := &sched.Milestones[i]
		if !lifecycle.DecisionLabels[m.Label] {
			continue
		}
		if milestone == nil || m.Date.After(milestone.Date) {
			milestone = m
		}
	}
	if milestone == nil {
		return nil, ErrNoDecisionDue
	}

	decision := domain.DecisionDeclined
	status := domain.StatusClosing
	if filed {
		decision = domain.DecisionFiled
		status = domain.StatusDueDiligence
	}

	updates := map[string]interface{}{
		"extension_decision":     decision,
		"extension_decision_for": milestone.Date,
		"status":                 status,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Deal{}).
			Where("deal_id = ?", dealID).
			Updates(updates).Error; err != nil {
			return err
		}
		payload, err := json.Marshal(map[string]interface{}{
			"decision":        decision,
			"milestone_label": milestone.Label,
			"milestone_date":  milestone.Date,
			"status":          status,
		})
		if err != nil {
			return err
		}
		event := domain.DealEvent{DealID: dealID, EventType: domain.EventDecisionRecorded, EventData: datatypes.JSON(payload)}
		return tx.Create(&event).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetDeal(ctx, dealID)
}

// ListEvents returns a deal's audit trail, oldest first.
func (s *Service) ListEvents(ctx context.Context, dealID uuid.UUID) ([]domain.DealEvent, error) {
	var events []domain.DealEvent
	err := s.DB.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order(`"createdAt" ASC`).
		Find(&events).Error
	return events, err
}

func insertDates(tx *gorm.DB, dealID uuid.UUID, dates []DateInput) error {
	for _, d := range dates {
		row := domain.DealDate{
			DealID:     dealID,
			Label:      d.Label,
			Date:       d.Date,
			OffsetDays: d.OffsetDays,
			OffsetFrom: d.OffsetFrom,
			SortOrder:  d.SortOrder,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("Failed to create deal date: %v", err)
		}
	}
	return nil
}

func insertMembers(tx *gorm.DB, dealID uuid.UUID, members []MemberInput) error {
	for _, m := range members {
		row := domain.DealMember{
			DealID:       dealID,
			BrokerID:     m.BrokerID,
			SplitPercent: m.SplitPercent,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("Failed to create deal member: %v", err)
		}
	}
	return nil
}
