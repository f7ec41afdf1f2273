package health

import (
	"context"

	"dealdesk-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// DBPinger abstracts the database connection check.
type DBPinger interface {
	Ping() error
}

// Handlers holds dependencies for health endpoints.
type Handlers struct {
	Rdb *redis.Client
	DB  DBPinger
}

// JSON reports service status with per-dependency checks.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	deps := fiber.Map{}
	status := "ok"

	if h.DB != nil {
		if err := h.DB.Ping(); err != nil {
			deps["database"] = "down: " + err.Error()
			status = "degraded"
		} else {
			deps["database"] = "ok"
		}
	} else {
		deps["database"] = "not configured"
	}

	if h.Rdb != nil {
		if err := h.Rdb.Ping(context.Background()).Err(); err != nil {
			deps["redis"] = "down: " + err.Error()
			status = "degraded"
		} else {
			deps["redis"] = "ok"
		}
	} else {
		deps["redis"] = "not configured"
	}

	return response.Success(c, "Health fetched successfully", fiber.Map{
		"service":      "dealdesk-api",
		"status":       status,
		"dependencies": deps,
	}, nil)
}
