package board

import (
	"encoding/json"
	"errors"
	"time"

	brokersvc "dealdesk-backend/internal/application/brokers"
	dealsvc "dealdesk-backend/internal/application/deals"
	"dealdesk-backend/internal/lifecycle"
	"dealdesk-backend/internal/pkg/response"
	"dealdesk-backend/internal/timeline"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *dealsvc.Service
	Brokers *brokersvc.Service
}

// GET /api/v1/board returns open deals grouped into escrow-phase columns, each
// card carrying its next critical date and member roster. Closed and
// cancelled deals never appear.
func (h *Handlers) GetBoard(c *fiber.Ctx) error {
	deals, err := h.Service.ListOpenDeals(c.Context())
	if err != nil {
		return response.Error(c, err.Error(), 500, nil)
	}

	today := todayParam(c)
	columns := make(map[string][]fiber.Map, len(lifecycle.Columns))
	for _, col := range lifecycle.Columns {
		columns[col] = []fiber.Map{}
	}
	for i := range deals {
		deal := &deals[i]
		col, ok := lifecycle.ColumnFor(deal.Status)
		if !ok {
			continue
		}
		members, err := h.Brokers.Decorate(c.Context(), deal.DealMembers)
		if err != nil {
			return response.Error(c, err.Error(), 500, nil)
		}
		columns[col] = append(columns[col], fiber.Map{
			"deal":               deal,
			"members":            members,
			"next_critical_date": timeline.Next(deal, today),
		})
	}
	return response.Success(c, "Board fetched successfully", fiber.Map{"columns": columns, "order": lifecycle.Columns}, nil)
}

// POST /api/v1/board/move-deal handles a drag-and-drop status change. A move within
// the same column is rejected before any write; the client reverts its
// optimistic patch by re-reading, not by undoing fields.
func (h *Handlers) MoveDeal(c *fiber.Ctx) error {
	var body struct {
		DealID string `json:"deal_id"`
		Column string `json:"column"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	dealID, err := uuid.Parse(body.DealID)
	if err != nil {
		return response.Error(c, "Missing required field: deal_id", 400, nil)
	}

	deal, err := h.Service.MoveDeal(c.Context(), dealID, body.Column)
	if err != nil {
		switch {
		case errors.Is(err, dealsvc.ErrDealNotFound):
			return response.Error(c, err.Error(), 404, nil)
		case errors.Is(err, dealsvc.ErrSameColumn),
			errors.Is(err, dealsvc.ErrUnknownColumn),
			errors.Is(err, dealsvc.ErrDealTerminal):
			return response.Error(c, err.Error(), 400, nil)
		default:
			return response.Error(c, err.Error(), 500, nil)
		}
	}
	return response.Success(c, "Deal moved successfully", deal, nil)
}

func todayParam(c *fiber.Ctx) time.Time {
	if s := c.Query("today"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return timeline.Truncate(t)
		}
	}
	return timeline.Truncate(time.Now())
}
