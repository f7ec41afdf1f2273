package reconcile

import (
	"context"
	"time"

	dealsvc "dealdesk-backend/internal/application/deals"
	"dealdesk-backend/internal/domain"
	"dealdesk-backend/internal/lifecycle"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Service runs one reconciliation pass: load the open deal set, decide,
// persist silent advancements, re-fetch so later passes see fresh statuses.
type Service struct {
	Deals *dealsvc.Service
	Rdb   *redis.Client
}

// AppliedAdvancement is one silent status change that was written back.
type AppliedAdvancement struct {
	DealID    uuid.UUID `json:"deal_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
}

// WriteFailure is one advancement whose write failed. Not retried here: the
// deal's status is unchanged, so the next pass re-attempts it naturally.
type WriteFailure struct {
	DealID uuid.UUID `json:"deal_id"`
	Reason string    `json:"reason"`
}

// PendingDecision mirrors the lifecycle prompt with just the fields the
// caller needs to surface it.
type PendingDecision struct {
	DealID         uuid.UUID `json:"deal_id"`
	MilestoneLabel string    `json:"milestone_label"`
	MilestoneDate  time.Time `json:"milestone_date"`
}

// Result of one pass. Deals is the authoritative set re-fetched after the
// writes; callers replace any local projection with it rather than patching.
type Result struct {
	Skipped         bool                 `json:"skipped"`
	Advancements    []AppliedAdvancement `json:"advancements"`
	PendingDecision *PendingDecision     `json:"pending_decision"`
	Failures        []WriteFailure       `json:"failures"`
	Deals           []domain.Deal        `json:"deals"`
}

// Run evaluates every open deal against today. The session-scoped revision
// stamp keeps a pass from re-firing on a deal set it has already processed;
// a failed write for one deal never blocks the others.
func (s *Service) Run(ctx context.Context, sessionID string, today time.Time) (*Result, error) {
	deals, err := s.Deals.ListOpenDeals(ctx)
	if err != nil {
		return nil, err
	}

	g := &guard{rdb: s.Rdb}
	stamp := RevisionStamp(deals)
	if g.alreadyProcessed(ctx, sessionID, stamp) {
		// Replay the cached prompt: skipping the pass must not swallow an
		// unanswered decision.
		return &Result{
			Skipped:         true,
			Advancements:    []AppliedAdvancement{},
			PendingDecision: g.pendingDecision(ctx, sessionID),
			Failures:        []WriteFailure{},
			Deals:           deals,
		}, nil
	}

	outcome := lifecycle.Reconcile(deals, today)

	result := &Result{Advancements: []AppliedAdvancement{}, Failures: []WriteFailure{}}
	for _, adv := range outcome.Advancements {
		if err := s.Deals.ApplyAdvancement(ctx, adv.Deal.DealID, adv.Deal.Status, adv.NewStatus); err != nil {
			log.Error().Str("deal_id", adv.Deal.DealID.String()).Err(err).Msg("Silent advancement write failed")
			result.Failures = append(result.Failures, WriteFailure{DealID: adv.Deal.DealID, Reason: err.Error()})
			continue
		}
		log.Info().
			Str("deal_id", adv.Deal.DealID.String()).
			Str("from", adv.Deal.Status).
			Str("to", adv.NewStatus).
			Msg("Deal advanced")
		result.Advancements = append(result.Advancements, AppliedAdvancement{
			DealID:    adv.Deal.DealID,
			OldStatus: adv.Deal.Status,
			NewStatus: adv.NewStatus,
		})
	}
	if outcome.PendingDecision != nil {
		result.PendingDecision = &PendingDecision{
			DealID:         outcome.PendingDecision.Deal.DealID,
			MilestoneLabel: outcome.PendingDecision.MilestoneLabel,
			MilestoneDate:  outcome.PendingDecision.MilestoneDate,
		}
	}

	// Re-read so subsequent passes (and the caller's board) see the updated
	// statuses instead of the set we just advanced past.
	fresh, err := s.Deals.ListOpenDeals(ctx)
	if err != nil {
		return nil, err
	}
	result.Deals = fresh
	// A pass with failed writes leaves no stamp, so the next pass in this
	// session re-attempts the lost advancements instead of skipping.
	if len(result.Failures) == 0 {
		g.record(ctx, sessionID, RevisionStamp(fresh))
		g.recordPending(ctx, sessionID, result.PendingDecision)
	}
	return result, nil
}
