package deals

import (
	"encoding/json"
	"errors"
	"time"

	brokersvc "dealdesk-backend/internal/application/brokers"
	dealsvc "dealdesk-backend/internal/application/deals"
	"dealdesk-backend/internal/commission"
	"dealdesk-backend/internal/domain"
	"dealdesk-backend/internal/pkg/response"
	"dealdesk-backend/internal/timeline"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *dealsvc.Service
	Brokers *brokersvc.Service
}

type dateBody struct {
	Label      string  `json:"label"`
	Date       string  `json:"date"`
	OffsetDays *int    `json:"offset_days"`
	OffsetFrom *string `json:"offset_from"`
	SortOrder  int     `json:"sort_order"`
}

type memberBody struct {
	BrokerID     string   `json:"broker_id"`
	SplitPercent *float64 `json:"split_percent"`
}

type dealBody struct {
	DealID           string                   `json:"deal_id"`
	BrokerID         string                   `json:"broker_id"`
	Price            *float64                 `json:"price"`
	CommissionRate   *float64                 `json:"commission_rate"`
	BrokerSplit      *float64                 `json:"broker_split"`
	AdditionalSplits []domain.AdditionalSplit `json:"additional_splits"`
	DealType         string                   `json:"deal_type"`
	EffectiveDate    string                   `json:"effective_date"`
	EscrowOpenDate   string                   `json:"escrow_open_date"`
	FeasibilityDays  *int                     `json:"feasibility_days"`
	DDExtensionDate  string                   `json:"dd_extension_date"`
	InsideCloseDays  *int                     `json:"inside_close_days"`
	OutsideCloseDays *int                     `json:"outside_close_days"`
	Notes            string                   `json:"notes"`
	DealDates        []dateBody               `json:"deal_dates"`
	DealMembers      []memberBody             `json:"deal_members"`
}

// GET /api/v1/deals?broker_id= returns deals for one broker, each with its next
// critical date attached.
func (h *Handlers) GetDeals(c *fiber.Ctx) error {
	brokerID, err := uuid.Parse(c.Query("broker_id"))
	if err != nil {
		return response.Error(c, "Missing or invalid broker_id", 400, nil)
	}
	deals, err := h.Service.ListDeals(c.Context(), brokerID)
	if err != nil {
		return response.Error(c, err.Error(), 500, nil)
	}

	today := todayParam(c)
	out := make([]fiber.Map, 0, len(deals))
	for i := range deals {
		out = append(out, fiber.Map{
			"deal":               deals[i],
			"next_critical_date": timeline.Next(&deals[i], today),
		})
	}
	return response.Success(c, "Deals fetched successfully", out, nil)
}

// GET /api/v1/deals/:deal_id returns deal detail: derived timeline, next critical
// date, deal-wide and per-member commission breakdowns, and the status audit
// trail. Milestone rows skipped for missing dates are reported in metadata.
func (h *Handlers) GetDeal(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("deal_id"))
	if err != nil {
		return response.Error(c, "Invalid deal_id", 400, nil)
	}
	deal, err := h.Service.GetDeal(c.Context(), dealID)
	if err != nil {
		return dealError(c, err)
	}

	today := todayParam(c)
	dates, skipped := timeline.Derive(deal, today)

	breakdown, err := commission.ForDeal(deal)
	if err != nil {
		return response.Error(c, err.Error(), 422, nil)
	}

	members, err := h.Brokers.Decorate(c.Context(), deal.DealMembers)
	if err != nil {
		return response.Error(c, err.Error(), 500, nil)
	}
	memberBreakdowns := make([]fiber.Map, 0, len(members))
	for _, m := range members {
		mb, err := commission.ForMember(deal, m.BrokerID)
		if err != nil {
			return response.Error(c, err.Error(), 422, nil)
		}
		memberBreakdowns = append(memberBreakdowns, fiber.Map{"member": m, "breakdown": mb})
	}

	events, err := h.Service.ListEvents(c.Context(), dealID)
	if err != nil {
		return response.Error(c, err.Error(), 500, nil)
	}

	data := fiber.Map{
		"deal":               deal,
		"timeline":           dates,
		"next_critical_date": timeline.Next(deal, today),
		"commission":         breakdown,
		"members":            memberBreakdowns,
		"events":             events,
	}
	return response.Success(c, "Deal fetched successfully", data, fiber.Map{"skipped_milestones": skipped})
}

// POST /api/v1/deals/create-deal
func (h *Handlers) CreateDeal(c *fiber.Ctx) error {
	var body dealBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	brokerID, err := uuid.Parse(body.BrokerID)
	if err != nil {
		return response.Error(c, "Missing required field: broker_id", 400, nil)
	}
	if body.CommissionRate == nil || body.BrokerSplit == nil {
		return response.Error(c, "Missing required field: commission_rate and broker_split", 400, nil)
	}

	in := dealsvc.CreateDealInput{
		BrokerID:         brokerID,
		Price:            body.Price,
		CommissionRate:   *body.CommissionRate,
		BrokerSplit:      *body.BrokerSplit,
		AdditionalSplits: body.AdditionalSplits,
		DealType:         body.DealType,
		EffectiveDate:    parseDate(body.EffectiveDate),
		EscrowOpenDate:   parseDate(body.EscrowOpenDate),
		FeasibilityDays:  body.FeasibilityDays,
		DDExtensionDate:  parseDate(body.DDExtensionDate),
		InsideCloseDays:  body.InsideCloseDays,
		OutsideCloseDays: body.OutsideCloseDays,
		Notes:            body.Notes,
		Dates:            dateInputs(body.DealDates),
		Members:          memberInputs(body.DealMembers),
	}
	if err := validateRates(&in.CommissionRate, &in.BrokerSplit, in.AdditionalSplits, in.Members); err != nil {
		return response.Error(c, err.Error(), 422, nil)
	}

	deal, err := h.Service.CreateDeal(c.Context(), in)
	if err != nil {
		return response.Error(c, err.Error(), 500, nil)
	}
	return response.SuccessCreated(c, "Deal created successfully", deal, nil)
}

// PUT /api/v1/deals/edit-deal applies a full edit; dates and members are replaced
// wholesale.
func (h *Handlers) EditDeal(c *fiber.Ctx) error {
	var body dealBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	dealID, err := uuid.Parse(body.DealID)
	if err != nil {
		return response.Error(c, "Missing required field: deal_id", 400, nil)
	}
	if body.CommissionRate == nil || body.BrokerSplit == nil {
		return response.Error(c, "Missing required field: commission_rate and broker_split", 400, nil)
	}

	in := dealsvc.UpdateDealInput{
		DealID:           dealID,
		Price:            body.Price,
		CommissionRate:   *body.CommissionRate,
		BrokerSplit:      *body.BrokerSplit,
		AdditionalSplits: body.AdditionalSplits,
		DealType:         body.DealType,
		EffectiveDate:    parseDate(body.EffectiveDate),
		EscrowOpenDate:   parseDate(body.EscrowOpenDate),
		FeasibilityDays:  body.FeasibilityDays,
		DDExtensionDate:  parseDate(body.DDExtensionDate),
		InsideCloseDays:  body.InsideCloseDays,
		OutsideCloseDays: body.OutsideCloseDays,
		Notes:            body.Notes,
		Dates:            dateInputs(body.DealDates),
		Members:          memberInputs(body.DealMembers),
	}
	if err := validateRates(&in.CommissionRate, &in.BrokerSplit, in.AdditionalSplits, in.Members); err != nil {
		return response.Error(c, err.Error(), 422, nil)
	}

	deal, err := h.Service.UpdateDeal(c.Context(), in)
	if err != nil {
		return dealError(c, err)
	}
	return response.Success(c, "Deal updated successfully", deal, nil)
}

// DELETE /api/v1/deals/:deal_id
func (h *Handlers) DeleteDeal(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("deal_id"))
	if err != nil {
		return response.Error(c, "Invalid deal_id", 400, nil)
	}
	if err := h.Service.DeleteDeal(c.Context(), dealID); err != nil {
		return dealError(c, err)
	}
	return response.Success(c, "Deal deleted successfully", fiber.Map{"deal_id": dealID}, nil)
}

// POST /api/v1/deals/close-deal closes a deal explicitly; failure leaves the deal in
// its last-known-good state and surfaces an actionable message.
func (h *Handlers) CloseDeal(c *fiber.Ctx) error {
	var body struct {
		DealID    string `json:"deal_id"`
		CloseDate string `json:"close_date"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	dealID, err := uuid.Parse(body.DealID)
	if err != nil {
		return response.Error(c, "Missing required field: deal_id", 400, nil)
	}
	closeDate := time.Now()
	if d := parseDate(body.CloseDate); d != nil {
		closeDate = *d
	}
	deal, err := h.Service.CloseDeal(c.Context(), dealID, closeDate)
	if err != nil {
		return dealError(c, err)
	}
	return response.Success(c, "Deal closed successfully", deal, nil)
}

// POST /api/v1/deals/cancel-deal
func (h *Handlers) CancelDeal(c *fiber.Ctx) error {
	var body struct {
		DealID string `json:"deal_id"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	dealID, err := uuid.Parse(body.DealID)
	if err != nil {
		return response.Error(c, "Missing required field: deal_id", 400, nil)
	}
	if body.Reason == "" {
		return response.Error(c, "Missing required field: reason", 400, nil)
	}
	deal, err := h.Service.CancelDeal(c.Context(), dealID, body.Reason)
	if err != nil {
		return dealError(c, err)
	}
	return response.Success(c, "Deal cancelled successfully", deal, nil)
}

// POST /api/v1/deals/resolve-extension answers the due-diligence prompt.
func (h *Handlers) ResolveExtension(c *fiber.Ctx) error {
	var body struct {
		DealID string `json:"deal_id"`
		Filed  *bool  `json:"filed"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	dealID, err := uuid.Parse(body.DealID)
	if err != nil {
		return response.Error(c, "Missing required field: deal_id", 400, nil)
	}
	if body.Filed == nil {
		return response.Error(c, "Missing required field: filed", 400, nil)
	}
	deal, err := h.Service.ResolveExtensionDecision(c.Context(), dealID, *body.Filed)
	if err != nil {
		return dealError(c, err)
	}
	message := "Extension recorded; amend the deal schedule"
	if !*body.Filed {
		message = "Deal moved to closing"
	}
	return response.Success(c, message, deal, nil)
}

// --- helpers ---

func dealError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, dealsvc.ErrDealNotFound):
		return response.Error(c, err.Error(), 404, nil)
	case errors.Is(err, dealsvc.ErrInvalidTransition),
		errors.Is(err, dealsvc.ErrDealTerminal),
		errors.Is(err, dealsvc.ErrSameColumn),
		errors.Is(err, dealsvc.ErrUnknownColumn),
		errors.Is(err, dealsvc.ErrNoDecisionDue):
		return response.Error(c, err.Error(), 400, nil)
	default:
		return response.Error(c, err.Error(), 500, nil)
	}
}

func validateRates(rate, split *float64, splits domain.AdditionalSplits, members []dealsvc.MemberInput) error {
	terms := &domain.Deal{CommissionRate: *rate, BrokerSplit: *split, AdditionalSplits: splits}
	if _, err := commission.ForDeal(terms); err != nil {
		return err
	}
	for _, m := range members {
		if m.SplitPercent != nil && (*m.SplitPercent < 0 || *m.SplitPercent > 1) {
			return commission.ErrInvalidRate
		}
	}
	return nil
}

func dateInputs(rows []dateBody) []dealsvc.DateInput {
	out := make([]dealsvc.DateInput, 0, len(rows))
	for _, r := range rows {
		out = append(out, dealsvc.DateInput{
			Label:      r.Label,
			Date:       parseDate(r.Date),
			OffsetDays: r.OffsetDays,
			OffsetFrom: r.OffsetFrom,
			SortOrder:  r.SortOrder,
		})
	}
	return out
}

func memberInputs(rows []memberBody) []dealsvc.MemberInput {
	out := make([]dealsvc.MemberInput, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.BrokerID)
		if err != nil {
			continue
		}
		out = append(out, dealsvc.MemberInput{BrokerID: id, SplitPercent: r.SplitPercent})
	}
	return out
}

// parseDate accepts "2006-01-02" or RFC3339; anything else is treated as
// unset rather than an error (the deriver skips undated rows).
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = timeline.Truncate(t)
			return &t
		}
	}
	return nil
}

// todayParam reads the caller-supplied clock. The engine never consults the
// wall clock directly; the HTTP layer is the invoking context.
func todayParam(c *fiber.Ctx) time.Time {
	if s := c.Query("today"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return timeline.Truncate(t)
		}
	}
	return timeline.Truncate(time.Now())
}
