// handlers/maintenance.go - Store maintenance endpoints
package handlers

import (
	"superparty/utils"

	"github.com/gofiber/fiber/v2"
)

// ManualCleanup runs one orphaned roster sweep now
// POST /api/maintenance/cleanup
func (h *PartyHandler) ManualCleanup(c *fiber.Ctx) error {
	removed, err := h.cleanup.RunOnce()
	if err != nil {
		return h.fail(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"message": "Cleanup completed",
		"removed": removed,
	})
}

// GetCleanupStats reports what the sweeper has done so far
// GET /api/maintenance/cleanup/stats
func (h *PartyHandler) GetCleanupStats(c *fiber.Ctx) error {
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{
		"stats": h.cleanup.Stats(),
	})
}
