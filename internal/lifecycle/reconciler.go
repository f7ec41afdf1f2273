// Package lifecycle holds the deal state machine: which transitions are
// legal, how statuses map onto board columns, and the reconciliation pass
// that decides when a deal silently advances or needs a human answer.
package lifecycle

import (
	"time"

	"dealdesk-backend/internal/domain"
	"dealdesk-backend/internal/timeline"
)

// DecisionLabels marks the milestone labels whose passing requires a human
// answer ("extension filed?") instead of a silent advance. Exported so the
// set can be extended without touching the reconciler.
var DecisionLabels = map[string]bool{
	timeline.LabelFeasibilityEnds: true,
	timeline.LabelDDExtension:     true,
}

// nextStatus is the silent-advancement sequence. closing is the end of the
// line: closing deals only move on explicit human action.
var nextStatus = map[string]string{
	domain.StatusActive:       domain.StatusDueDiligence,
	domain.StatusDueDiligence: domain.StatusClosing,
}

var validTransitions = map[string]map[string]bool{
	domain.StatusActive: {
		domain.StatusDueDiligence: true,
		domain.StatusCancelled:    true,
	},
	domain.StatusDueDiligence: {
		domain.StatusClosing:   true,
		domain.StatusCancelled: true,
	},
	domain.StatusClosing: {
		domain.StatusClosed:    true,
		domain.StatusCancelled: true,
	},
}

// CanTransition reports whether a status change is legal. Terminal statuses
// admit nothing.
func CanTransition(from, to string) bool {
	return validTransitions[from][to]
}

// Advancement is one silent status change the pass decided on.
type Advancement struct {
	Deal      *domain.Deal `json:"deal"`
	NewStatus string       `json:"new_status"`
}

// PendingDecision is the single human prompt a pass may surface.
type PendingDecision struct {
	Deal           *domain.Deal `json:"deal"`
	MilestoneLabel string       `json:"milestone_label"`
	MilestoneDate  time.Time    `json:"milestone_date"`
}

// Outcome is what one reconciliation pass decided. Advancements are
// unbounded; at most one pending decision is surfaced per pass.
type Outcome struct {
	Advancements    []Advancement
	PendingDecision *PendingDecision
}

// Reconcile evaluates every in-flight deal against today and returns the
// silent advancements plus at most one pending decision. It is pure: it
// mutates nothing and is safe to re-run, since each rule compares the deal's
// current status against the target rather than only checking dates.
func Reconcile(deals []domain.Deal, today time.Time) Outcome {
	var out Outcome
	for i := range deals {
		deal := &deals[i]
		switch deal.Status {
		case domain.StatusActive, domain.StatusDueDiligence:
		default:
			continue
		}

		if pending := pendingDecisionFor(deal, today); pending != nil {
			if out.PendingDecision == nil {
				out.PendingDecision = pending
			}
			// One prompt at a time; deals past the first keep their turn
			// for a later pass rather than advancing underneath the user.
			continue
		}

		if target, ok := boundaryCrossed(deal, today); ok {
			out.Advancements = append(out.Advancements, Advancement{Deal: deal, NewStatus: target})
		}
	}
	return out
}

// pendingDecisionFor returns the prompt a due-diligence deal owes the user:
// its decision milestone has been reached and no answer is recorded for that
// milestone's date. Amending the schedule moves the date, which voids the
// old answer and prompts again.
func pendingDecisionFor(deal *domain.Deal, today time.Time) *PendingDecision {
	if deal.Status != domain.StatusDueDiligence {
		return nil
	}
	m := decisionMilestone(deal)
	if m == nil || timeline.DaysBetween(today, m.Date) > 0 {
		return nil
	}
	if deal.ExtensionDecision != nil && deal.ExtensionDecisionFor != nil &&
		timeline.Truncate(*deal.ExtensionDecisionFor).Equal(m.Date) {
		return nil
	}
	return &PendingDecision{Deal: deal, MilestoneLabel: m.Label, MilestoneDate: m.Date}
}

// decisionMilestone picks the milestone whose passing ends due diligence:
// the latest decision-labeled entry in the schedule.
func decisionMilestone(deal *domain.Deal) *timeline.Milestone {
	s := timeline.ScheduleOf(deal)
	var found *timeline.Milestone
	for i := range s.Milestones {
		m := &s.Milestones[i]
		if !DecisionLabels[m.Label] {
			continue
		}
		if found == nil || m.Date.After(found.Date) {
			found = m
		}
	}
	return found
}

// boundaryCrossed reports the status a deal should silently advance to, if
// its phase boundary has passed.
//
// active deals cross into due diligence when escrow opens. due-diligence
// deals only advance here when a recorded "declined" answer exists for the
// passed decision milestone and the explicit transition write was lost; a
// recorded "filed" never auto-advances.
func boundaryCrossed(deal *domain.Deal, today time.Time) (string, bool) {
	target, ok := nextStatus[deal.Status]
	if !ok {
		return "", false
	}

	switch deal.Status {
	case domain.StatusActive:
		if deal.EscrowOpenDate == nil {
			return "", false
		}
		if timeline.DaysBetween(today, *deal.EscrowOpenDate) <= 0 {
			return target, true
		}
	case domain.StatusDueDiligence:
		m := decisionMilestone(deal)
		if m == nil || timeline.DaysBetween(today, m.Date) > 0 {
			return "", false
		}
		if deal.ExtensionDecision != nil && *deal.ExtensionDecision == domain.DecisionDeclined {
			return target, true
		}
	}
	return "", false
}
