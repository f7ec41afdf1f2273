package deals

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"dealdesk-backend/internal/domain"
	"dealdesk-backend/internal/lifecycle"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupService(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Deal{}, &domain.DealDate{}, &domain.DealMember{}, &domain.DealEvent{}, &domain.Broker{}))
	return &Service{DB: db}
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }

func createFixture(t *testing.T, s *Service) *domain.Deal {
	deal, err := s.CreateDeal(context.Background(), CreateDealInput{
		BrokerID:       uuid.New(),
		Price:          floatPtr(1_000_000),
		CommissionRate: 0.03,
		BrokerSplit:    0.5,
		EscrowOpenDate: datePtr(2025, 1, 1),
		Dates: []DateInput{
			{Label: "Loan Contingency", Date: datePtr(2025, 2, 1), SortOrder: 2},
			{Label: "Feasibility Ends", Date: datePtr(2025, 1, 31), SortOrder: 1},
		},
		Members: []MemberInput{
			{BrokerID: uuid.New(), SplitPercent: floatPtr(0.6)},
			{BrokerID: uuid.New()},
		},
	})
	require.NoError(t, err)
	return deal
}

func TestCreateAndGetDeal_PreloadsInSortOrder(t *testing.T) {
	s := setupService(t)
	deal := createFixture(t, s)

	got, err := s.GetDeal(context.Background(), deal.DealID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
	require.Len(t, got.DealDates, 2)
	assert.Equal(t, "Feasibility Ends", got.DealDates[0].Label)
	assert.Equal(t, "Loan Contingency", got.DealDates[1].Label)
	assert.Len(t, got.DealMembers, 2)
}

func TestGetDeal_NotFound(t *testing.T) {
	s := setupService(t)
	_, err := s.GetDeal(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrDealNotFound)
}

func TestUpdateDeal_ReplacesDatesAndMembersWholesale(t *testing.T) {
	s := setupService(t)
	deal := createFixture(t, s)

	updated, err := s.UpdateDeal(context.Background(), UpdateDealInput{
		DealID:         deal.DealID,
		Price:          floatPtr(900_000),
		CommissionRate: 0.025,
		BrokerSplit:    0.5,
		Dates: []DateInput{
			{Label: "Inspection", Date: datePtr(2025, 3, 1), SortOrder: 1},
		},
		Members: []MemberInput{{BrokerID: uuid.New()}},
	})
	require.NoError(t, err)
	require.Len(t, updated.DealDates, 1)
	assert.Equal(t, "Inspection", updated.DealDates[0].Label)
	require.Len(t, updated.DealMembers, 1)

	// No orphan child rows survive the wholesale replace.
	var dateCount, memberCount int64
	s.DB.Model(&domain.DealDate{}).Count(&dateCount)
	s.DB.Model(&domain.DealMember{}).Count(&memberCount)
	assert.Equal(t, int64(1), dateCount)
	assert.Equal(t, int64(1), memberCount)
}

func TestDeleteDeal_CascadesToOwnedRows(t *testing.T) {
	s := setupService(t)
	deal := createFixture(t, s)

	require.NoError(t, s.DeleteDeal(context.Background(), deal.DealID))

	_, err := s.GetDeal(context.Background(), deal.DealID)
	assert.ErrorIs(t, err, ErrDealNotFound)

	var dateCount, memberCount int64
	s.DB.Model(&domain.DealDate{}).Count(&dateCount)
	s.DB.Model(&domain.DealMember{}).Count(&memberCount)
	assert.Zero(t, dateCount)
	assert.Zero(t, memberCount)
}

func TestUpdateStatus_ValidatesTransitions(t *testing.T) {
	s := setupService(t)
	deal := createFixture(t, s)

	got, err := s.UpdateStatus(context.Background(), deal.DealID, domain.StatusDueDiligence)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDueDiligence, got.Status)

	// closed is unreachable from due diligence.
	_, err = s.UpdateStatus(context.Background(), deal.DealID, domain.StatusClosed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCloseDeal_StampsActualCloseDate(t *testing.T) {
	s := setupService(t)
	deal := createFixture(t, s)
	ctx := context.Background()

	_, err := s.CloseDeal(ctx, deal.DealID, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.UpdateStatus(ctx, deal.DealID, domain.StatusDueDiligence)
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, deal.DealID, domain.StatusClosing)
	require.NoError(t, err)

	closed, err := s.CloseDeal(ctx, deal.DealID, time.Date(2025, 5, 15, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	require.NotNil(t, closed.ActualCloseDate)
	assert.Equal(t, time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC), *closed.ActualCloseDate)
}

func TestCancelDeal_RecordsReason(t *testing.T) {
	s := setupService(t)
	deal := createFixture(t, s)

	cancelled, err := s.CancelDeal(context.Background(), deal.DealID, "Buyer walked")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "Buyer walked", *cancelled.CancelReason)

	_, err = s.CancelDeal(context.Background(), deal.DealID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMoveDeal(t *testing.T) {
	s := setupService(t)
	deal := createFixture(t, s)
	ctx := context.Background()

	_, err := s.MoveDeal(ctx, deal.DealID, lifecycle.ColumnPreEscrow)
	assert.ErrorIs(t, err, ErrSameColumn)

	_, err = s.MoveDeal(ctx, deal.DealID, "archived")
	assert.ErrorIs(t, err, ErrUnknownColumn)

	moved, err := s.MoveDeal(ctx, deal.DealID, lifecycle.ColumnClosing)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosing, moved.Status)

	// Manual drags may also go backwards.
	moved, err = s.MoveDeal(ctx, deal.DealID, lifecycle.ColumnDueDiligence)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDueDiligence, moved.Status)

	_, err = s.CancelDeal(ctx, deal.DealID, "done")
	require.NoError(t, err)
	_, err = s.MoveDeal(ctx, deal.DealID, lifecycle.ColumnClosing)
	assert.ErrorIs(t, err, ErrDealTerminal)
}

func TestApplyAdvancement_IdempotentPredicate(t *testing.T) {
	s := setupService(t)
	deal := createFixture(t, s)
	ctx := context.Background()

	require.NoError(t, s.ApplyAdvancement(ctx, deal.DealID, domain.StatusActive, domain.StatusDueDiligence))
	got, err := s.GetDeal(ctx, deal.DealID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDueDiligence, got.Status)

	// Re-applying the same advancement matches zero rows and changes nothing.
	require.NoError(t, s.ApplyAdvancement(ctx, deal.DealID, domain.StatusActive, domain.StatusDueDiligence))
	got, err = s.GetDeal(ctx, deal.DealID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDueDiligence, got.Status)
}

func TestResolveExtensionDecision(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	deal, err := s.CreateDeal(ctx, CreateDealInput{
		BrokerID:        uuid.New(),
		CommissionRate:  0.03,
		BrokerSplit:     0.5,
		EscrowOpenDate:  datePtr(2025, 1, 1),
		FeasibilityDays: intPtr(30),
	})
	require.NoError(t, err)

	// Only due-diligence deals owe an answer.
	_, err = s.ResolveExtensionDecision(ctx, deal.DealID, true)
	assert.ErrorIs(t, err, ErrNoDecisionDue)

	_, err = s.UpdateStatus(ctx, deal.DealID, domain.StatusDueDiligence)
	require.NoError(t, err)

	filed, err := s.ResolveExtensionDecision(ctx, deal.DealID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDueDiligence, filed.Status)
	require.NotNil(t, filed.ExtensionDecision)
	assert.Equal(t, domain.DecisionFiled, *filed.ExtensionDecision)
	require.NotNil(t, filed.ExtensionDecisionFor)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), filed.ExtensionDecisionFor.UTC())

	declined, err := s.ResolveExtensionDecision(ctx, deal.DealID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosing, declined.Status)
}

func TestStatusWrites_AppendDealEvents(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	deal := createFixture(t, s)

	_, err := s.UpdateStatus(ctx, deal.DealID, domain.StatusDueDiligence)
	require.NoError(t, err)

	events, err := s.ListEvents(ctx, deal.DealID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventStatusChanged, events[0].EventType)

	var change statusChange
	require.NoError(t, json.Unmarshal(events[0].EventData, &change))
	assert.Equal(t, domain.StatusActive, change.From)
	assert.Equal(t, domain.StatusDueDiligence, change.To)
	assert.Equal(t, "explicit", change.Via)

	// A board move appends its own entry tagged with its code path.
	_, err = s.MoveDeal(ctx, deal.DealID, lifecycle.ColumnClosing)
	require.NoError(t, err)
	events, err = s.ListEvents(ctx, deal.DealID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.NoError(t, json.Unmarshal(events[1].EventData, &change))
	assert.Equal(t, "board", change.Via)
}

func TestApplyAdvancement_RecordsEventOnlyOnActualWrite(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	deal := createFixture(t, s)

	require.NoError(t, s.ApplyAdvancement(ctx, deal.DealID, domain.StatusActive, domain.StatusDueDiligence))
	events, err := s.ListEvents(ctx, deal.DealID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventStatusChanged, events[0].EventType)

	// Stale re-apply matches no row and must not append a duplicate event.
	require.NoError(t, s.ApplyAdvancement(ctx, deal.DealID, domain.StatusActive, domain.StatusDueDiligence))
	events, err = s.ListEvents(ctx, deal.DealID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestResolveExtensionDecision_AppendsDecisionEvent(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	deal, err := s.CreateDeal(ctx, CreateDealInput{
		BrokerID:        uuid.New(),
		CommissionRate:  0.03,
		BrokerSplit:     0.5,
		EscrowOpenDate:  datePtr(2025, 1, 1),
		FeasibilityDays: intPtr(30),
	})
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, deal.DealID, domain.StatusDueDiligence)
	require.NoError(t, err)

	_, err = s.ResolveExtensionDecision(ctx, deal.DealID, false)
	require.NoError(t, err)

	events, err := s.ListEvents(ctx, deal.DealID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventDecisionRecorded, events[1].EventType)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(events[1].EventData, &payload))
	assert.Equal(t, domain.DecisionDeclined, payload["decision"])
	assert.Equal(t, "Feasibility Ends", payload["milestone_label"])
	assert.Equal(t, domain.StatusClosing, payload["status"])
}

func TestDeleteDeal_RemovesEventRows(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()
	deal := createFixture(t, s)

	_, err := s.UpdateStatus(ctx, deal.DealID, domain.StatusDueDiligence)
	require.NoError(t, err)
	require.NoError(t, s.DeleteDeal(ctx, deal.DealID))

	var count int64
	require.NoError(t, s.DB.Model(&domain.DealEvent{}).Where("deal_id = ?", deal.DealID).Count(&count).Error)
	assert.Zero(t, count)
}
