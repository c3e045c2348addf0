package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rescueroute/rescueroute-backend/internal/storage"
)

// StatsHandler serves the public landing-page statistics
type StatsHandler struct {
	store storage.Store
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(store storage.Store) *StatsHandler {
	return &StatsHandler{store: store}
}

// PublicStats returns aggregate donation figures, no auth required
func (h *StatsHandler) PublicStats(c *fiber.Ctx) error {
	stats, err := h.store.GetPublicStats()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"stats": stats,
	})
}
