// Package commission computes deal-wide and per-broker take-home amounts.
// Every function is pure and total: a nil price means zero commission, and
// the only failure mode is a rate or percent outside [0, 1].
package commission

import (
	"errors"
	"math"

	"dealdesk-backend/internal/domain"

	"github.com/google/uuid"
)

// HouseRate is the brokerage's fixed retention from a broker's split,
// taken before any additional deductions. Not configurable per deal.
const HouseRate = 0.30

var ErrInvalidRate = errors.New("Rate or split percent must be between 0 and 1")

// Deduction is one additional split resolved to an amount.
type Deduction struct {
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
	Amount  float64 `json:"amount"`
}

// Breakdown is the deal-wide money waterfall.
type Breakdown struct {
	Commission        float64     `json:"commission"`
	BrokerSplitAmount float64     `json:"broker_split_amount"`
	HouseCut          float64     `json:"house_cut"`
	AfterHouse        float64     `json:"after_house"`
	Deductions        []Deduction `json:"deductions"`
	TotalDeductions   float64     `json:"total_deductions"`
	TakeHome          float64     `json:"take_home"`
}

// MemberBreakdown is one participating broker's slice of the waterfall.
type MemberBreakdown struct {
	BrokerID        uuid.UUID   `json:"broker_id"`
	SplitPercent    float64     `json:"split_percent"`
	Share           float64     `json:"share"`
	Deductions      []Deduction `json:"deductions"`
	TotalDeductions float64     `json:"total_deductions"`
	TakeHome        float64     `json:"take_home"`
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func validFraction(f float64) bool {
	return f >= 0 && f <= 1
}

func validateTerms(deal *domain.Deal) error {
	if !validFraction(deal.CommissionRate) || !validFraction(deal.BrokerSplit) {
		return ErrInvalidRate
	}
	for _, s := range deal.AdditionalSplits {
		if !validFraction(s.Percent) {
			return ErrInvalidRate
		}
	}
	return nil
}

// Deductions resolves each additional split against the same base. Splits
// are independent, never compounded against a shrinking remainder.
func Deductions(base float64, splits domain.AdditionalSplits) ([]Deduction, float64) {
	out := make([]Deduction, 0, len(splits))
	total := 0.0
	for _, s := range splits {
		amount := round2(base * s.Percent)
		out = append(out, Deduction{Label: s.Label, Percent: s.Percent, Amount: amount})
		total += amount
	}
	return out, round2(total)
}

// ResolveMemberSplit returns the fraction of the post-house amount a broker
// keeps. Empty roster means full share (pre-multi-broker deals); a listed
// member with no explicit percent shares evenly with every listed member;
// an id not on the roster at all also gets the full share.
func ResolveMemberSplit(members []domain.DealMember, brokerID uuid.UUID) float64 {
	if len(members) == 0 {
		return 1
	}
	for _, m := range members {
		if m.BrokerID == brokerID {
			if m.SplitPercent == nil {
				return 1 / float64(len(members))
			}
			return *m.SplitPercent
		}
	}
	return 1
}

// ForDeal computes the deal-wide waterfall from a deal's commercial terms.
func ForDeal(deal *domain.Deal) (*Breakdown, error) {
	if err := validateTerms(deal); err != nil {
		return nil, err
	}

	price := 0.0
	if deal.Price != nil {
		price = *deal.Price
	}
	commission := round2(price * deal.CommissionRate)
	splitAmount := round2(commission * deal.BrokerSplit)
	houseCut := round2(splitAmount * HouseRate)
	// The net is the split amount minus the rounded house cut, not an
	// independently rounded 70%: at half-cent boundaries the two differ, and
	// only the subtraction keeps houseCut + afterHouse equal to splitAmount.
	afterHouse := round2(splitAmount - houseCut)
	deductions, total := Deductions(afterHouse, deal.AdditionalSplits)

	return &Breakdown{
		Commission:        commission,
		BrokerSplitAmount: splitAmount,
		HouseCut:          houseCut,
		AfterHouse:        afterHouse,
		Deductions:        deductions,
		TotalDeductions:   total,
		TakeHome:          round2(afterHouse - total),
	}, nil
}

// ForMember computes one broker's take-home: their share of the post-house
// amount, less each additional split applied against that share.
func ForMember(deal *domain.Deal, brokerID uuid.UUID) (*MemberBreakdown, error) {
	whole, err := ForDeal(deal)
	if err != nil {
		return nil, err
	}
	for _, m := range deal.DealMembers {
		if m.SplitPercent != nil && !validFraction(*m.SplitPercent) {
			return nil, ErrInvalidRate
		}
	}

	split := ResolveMemberSplit(deal.DealMembers, brokerID)
	share := round2(whole.AfterHouse * split)
	deductions, total := Deductions(share, deal.AdditionalSplits)

	return &MemberBreakdown{
		BrokerID:        brokerID,
		SplitPercent:    split,
		Share:           share,
		Deductions:      deductions,
		TotalDeductions: total,
		TakeHome:        round2(share - total),
	}, nil
}
