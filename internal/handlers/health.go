package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HealthChecker is satisfied by cache.Client.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports database and cache reachability.
type HealthHandler struct {
	db    *gorm.DB
	cache HealthChecker
}

// NewHealthHandler constructs HealthHandler. cache may be nil when Redis is not configured.
func NewHealthHandler(db *gorm.DB, cache HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Check pings every dependency and returns 503 when any of them is down.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{"database": "ok", "redis": "disabled"}
	healthy := true

	if err := h.pingDatabase(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if h.cache != nil {
		checks["redis"] = "ok"
		if err := h.cache.Health(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}

	status := fiber.StatusOK
	if !healthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"success": healthy, "checks": checks})
}

func (h *HealthHandler) pingDatabase(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
