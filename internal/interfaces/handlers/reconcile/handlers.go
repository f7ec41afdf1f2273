package reconcile

import (
	"time"

	reconcilesvc "dealdesk-backend/internal/application/reconcile"
	"dealdesk-backend/internal/middleware"
	"dealdesk-backend/internal/pkg/response"
	"dealdesk-backend/internal/timeline"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *reconcilesvc.Service
}

// POST /api/v1/reconcile runs one reconciliation pass over the open deal set.
// Scoped to the browsing session so a reload of unchanged data is a no-op.
// Failed silent advancements ride along in the payload; they are never shown
// as user errors and the next pass retries them naturally.
func (h *Handlers) Run(c *fiber.Ctx) error {
	today := timeline.Truncate(time.Now())
	if s := c.Query("today"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return response.Error(c, "Invalid today parameter, expected YYYY-MM-DD", 400, nil)
		}
		today = timeline.Truncate(t)
	}

	result, err := h.Service.Run(c.Context(), middleware.GetSessionID(c), today)
	if err != nil {
		return response.Error(c, err.Error(), 500, nil)
	}
	message := "Reconciliation complete"
	if result.Skipped {
		message = "Deal set already reconciled this session"
	}
	return response.Success(c, message, result, nil)
}
