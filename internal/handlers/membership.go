package handlers

import (
	"github.com/arnold/gatherings-api/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) JoinGathering(c *fiber.Ctx) error {
	id, err := gatheringID(c)
	if err != nil {
		return respondError(c, err)
	}

	state, err := h.svc.Join(c.UserContext(), id, middleware.GetMemberID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *Handler) CancelAttendance(c *fiber.Ctx) error {
	id, err := gatheringID(c)
	if err != nil {
		return respondError(c, err)
	}

	state, err := h.svc.CancelAttendance(c.UserContext(), id, middleware.GetMemberID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

func (h *Handler) HeartGathering(c *fiber.Ctx) error {
	id, err := gatheringID(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.svc.Heart(c.UserContext(), id, middleware.GetMemberID(c)); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"hearted": true,
	})
}

func (h *Handler) UnheartGathering(c *fiber.Ctx) error {
	id, err := gatheringID(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.svc.Unheart(c.UserContext(), id, middleware.GetMemberID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"hearted": false,
	})
}
