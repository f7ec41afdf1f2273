package commission

import (
	"testing"

	"dealdesk-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }

func millionDeal() *domain.Deal {
	return &domain.Deal{
		Price:          floatPtr(1_000_000),
		CommissionRate: 0.03,
		BrokerSplit:    0.50,
	}
}

func TestForDeal_NoAdditionalSplits(t *testing.T) {
	b, err := ForDeal(millionDeal())
	require.NoError(t, err)
	assert.Equal(t, 30_000.0, b.Commission)
	assert.Equal(t, 15_000.0, b.BrokerSplitAmount)
	assert.Equal(t, 4_500.0, b.HouseCut)
	assert.Equal(t, 10_500.0, b.AfterHouse)
	assert.Equal(t, 0.0, b.TotalDeductions)
	assert.Equal(t, 10_500.0, b.TakeHome)
}

func TestForDeal_ReferralSplit(t *testing.T) {
	deal := millionDeal()
	deal.AdditionalSplits = domain.AdditionalSplits{{Label: "Referral", Percent: 0.25}}

	b, err := ForDeal(deal)
	require.NoError(t, err)
	require.Len(t, b.Deductions, 1)
	assert.Equal(t, 2_625.0, b.Deductions[0].Amount)
	assert.Equal(t, 2_625.0, b.TotalDeductions)
	assert.Equal(t, 7_875.0, b.TakeHome)
}

func TestDeductions_IndependentNotCompounded(t *testing.T) {
	splits := domain.AdditionalSplits{
		{Label: "A", Percent: 0.10},
		{Label: "B", Percent: 0.10},
	}
	rows, total := Deductions(1000, splits)
	require.Len(t, rows, 2)
	// Both against the same base: 100 + 100, not 100 + 90.
	assert.Equal(t, 100.0, rows[0].Amount)
	assert.Equal(t, 100.0, rows[1].Amount)
	assert.Equal(t, 200.0, total)
}

func TestForDeal_NilPriceIsZeroNotError(t *testing.T) {
	deal := &domain.Deal{CommissionRate: 0.03, BrokerSplit: 0.5}
	b, err := ForDeal(deal)
	require.NoError(t, err)
	assert.Equal(t, 0.0, b.Commission)
	assert.Equal(t, 0.0, b.TakeHome)
}

func TestForDeal_InvalidRates(t *testing.T) {
	for _, deal := range []*domain.Deal{
		{Price: floatPtr(100), CommissionRate: 1.5, BrokerSplit: 0.5},
		{Price: floatPtr(100), CommissionRate: -0.01, BrokerSplit: 0.5},
		{Price: floatPtr(100), CommissionRate: 0.03, BrokerSplit: 2},
		{Price: floatPtr(100), CommissionRate: 0.03, BrokerSplit: 0.5,
			AdditionalSplits: domain.AdditionalSplits{{Label: "Bad", Percent: 1.01}}},
	} {
		_, err := ForDeal(deal)
		assert.ErrorIs(t, err, ErrInvalidRate)
	}
}

func TestResolveMemberSplit(t *testing.T) {
	a, b, outsider := uuid.New(), uuid.New(), uuid.New()

	// Empty roster: full share for anyone.
	assert.Equal(t, 1.0, ResolveMemberSplit(nil, a))

	// All-null roster: even split among listed members.
	even := []domain.DealMember{{BrokerID: a}, {BrokerID: b}}
	assert.Equal(t, 0.5, ResolveMemberSplit(even, a))
	assert.Equal(t, 0.5, ResolveMemberSplit(even, b))

	// Explicit percent wins.
	explicit := []domain.DealMember{
		{BrokerID: a, SplitPercent: floatPtr(0.7)},
		{BrokerID: b, SplitPercent: floatPtr(0.3)},
	}
	assert.Equal(t, 0.7, ResolveMemberSplit(explicit, a))

	// Unlisted broker gets the full share.
	assert.Equal(t, 1.0, ResolveMemberSplit(explicit, outsider))
}

func TestForMember_EvenSplit(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	deal := millionDeal()
	deal.DealMembers = []domain.DealMember{{BrokerID: a}, {BrokerID: b}}

	for _, id := range []uuid.UUID{a, b} {
		mb, err := ForMember(deal, id)
		require.NoError(t, err)
		assert.Equal(t, 0.5, mb.SplitPercent)
		assert.Equal(t, 5_250.0, mb.Share)
		assert.Equal(t, 5_250.0, mb.TakeHome)
	}
}

func TestForMember_DeductionsAgainstShare(t *testing.T) {
	a := uuid.New()
	deal := millionDeal()
	deal.AdditionalSplits = domain.AdditionalSplits{{Label: "Referral", Percent: 0.25}}
	deal.DealMembers = []domain.DealMember{{BrokerID: a, SplitPercent: floatPtr(0.5)}}

	mb, err := ForMember(deal, a)
	require.NoError(t, err)
	assert.Equal(t, 5_250.0, mb.Share)
	assert.Equal(t, 1_312.5, mb.TotalDeductions)
	assert.Equal(t, 3_937.5, mb.TakeHome)
}

func TestForMember_SoloDealFullShare(t *testing.T) {
	a := uuid.New()
	mb, err := ForMember(millionDeal(), a)
	require.NoError(t, err)
	assert.Equal(t, 1.0, mb.SplitPercent)
	assert.Equal(t, 10_500.0, mb.Share)
}

func TestForMember_InvalidMemberSplit(t *testing.T) {
	a := uuid.New()
	deal := millionDeal()
	deal.DealMembers = []domain.DealMember{{BrokerID: a, SplitPercent: floatPtr(1.2)}}
	_, err := ForMember(deal, a)
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestMonotonicChain(t *testing.T) {
	cases := []struct {
		price, rate, split float64
		splits             domain.AdditionalSplits
	}{
		{1_000_000, 0.03, 0.5, nil},
		{750_000, 0.06, 0.8, domain.AdditionalSplits{{Label: "Referral", Percent: 0.25}}},
		{42_500, 0.025, 1, domain.AdditionalSplits{{Label: "A", Percent: 0.1}, {Label: "B", Percent: 0.2}}},
		{100, 1, 1, nil},
		{0, 0.03, 0.5, nil},
	}
	for _, tc := range cases {
		deal := &domain.Deal{
			Price:            floatPtr(tc.price),
			CommissionRate:   tc.rate,
			BrokerSplit:      tc.split,
			AdditionalSplits: tc.splits,
		}
		b, err := ForDeal(deal)
		require.NoError(t, err)
		assert.LessOrEqual(t, b.TakeHome, b.AfterHouse)
		assert.LessOrEqual(t, b.AfterHouse, b.BrokerSplitAmount)
		assert.LessOrEqual(t, b.BrokerSplitAmount, b.Commission)
		assert.LessOrEqual(t, b.Commission, tc.price)
	}
}

func TestForDeal_HouseCutAndNetConserveSplit(t *testing.T) {
	// Split amounts landing on a half cent (10.05, 0.05) round the house cut
	// one way or the other; the net must absorb the remainder so the two
	// always add back to the split amount exactly.
	cases := []struct {
		price float64
		rate  float64
		split float64
	}{
		{1_005, 0.02, 0.5},
		{5, 0.02, 0.5},
		{333.33, 0.03, 0.5},
		{1_000_000, 0.03, 0.5},
		{99.99, 0.055, 0.7},
	}
	for _, tc := range cases {
		deal := &domain.Deal{
			Price:          floatPtr(tc.price),
			CommissionRate: tc.rate,
			BrokerSplit:    tc.split,
		}
		b, err := ForDeal(deal)
		require.NoError(t, err)
		assert.InDelta(t, b.BrokerSplitAmount, b.HouseCut+b.AfterHouse, 1e-9,
			"price=%v rate=%v split=%v", tc.price, tc.rate, tc.split)
	}
}
