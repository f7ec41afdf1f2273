package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionConfig for the browsing-session cookie. The session carries no
// identity; it scopes the reconciliation guard so one browsing session never
// reprocesses a deal set it has already seen.
type SessionConfig struct {
	RedisURL          string
	AllowCrossSiteDev bool
	IsProduction      bool
}

const (
	sessionCookieName = "dealdesk.sid"
	sessionMaxAge     = 24 * time.Hour
	sessionLocal      = "session_id"
)

// Session returns a Fiber middleware that assigns each browsing session a
// stable id cookie, plus the Redis client the reconciliation guard stores
// its revision stamps in. An empty RedisURL yields a nil client and the
// guard degrades to running every pass.
func Session(cfg SessionConfig) (fiber.Handler, *redis.Client, error) {
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}

	sameSite := "Lax"
	if cfg.AllowCrossSiteDev {
		sameSite = "None"
	}

	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies(sessionCookieName)
		if sessionID == "" {
			sessionID = uuid.New().String()
			c.Cookie(&fiber.Cookie{
				Name:     sessionCookieName,
				Value:    sessionID,
				Expires:  time.Now().Add(sessionMaxAge),
				HTTPOnly: true,
				Secure:   cfg.IsProduction || cfg.AllowCrossSiteDev,
				SameSite: sameSite,
				Path:     "/",
			})
		}
		c.Locals(sessionLocal, sessionID)
		return c.Next()
	}, rdb, nil
}

// GetSessionID returns the browsing-session id from context.
func GetSessionID(c *fiber.Ctx) string {
	if id, ok := c.Locals(sessionLocal).(string); ok {
		return id
	}
	return ""
}
