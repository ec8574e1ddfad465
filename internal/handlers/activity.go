package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// GetGatheringActivity returns a gathering's join, leave and lifecycle history,
// newest first.
func (h *Handler) GetGatheringActivity(c *fiber.Ctx) error {
	id, err := gatheringID(c)
	if err != nil {
		return respondError(c, err)
	}

	list, err := h.svc.ListActivity(c.UserContext(), id, pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}
