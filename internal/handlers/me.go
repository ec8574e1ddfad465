package handlers

import (
	"github.com/arnold/gatherings-api/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) MyGatherings(c *fiber.Ctx) error {
	res, err := h.svc.ListOwnedGatherings(c.UserContext(), middleware.GetMemberID(c), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) MyAttendances(c *fiber.Ctx) error {
	res, err := h.svc.ListJoinedGatherings(c.UserContext(), middleware.GetMemberID(c), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) MyReviewable(c *fiber.Ctx) error {
	res, err := h.svc.ListReviewableGatherings(c.UserContext(), middleware.GetMemberID(c), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) MyReviews(c *fiber.Ctx) error {
	res, err := h.svc.ListMemberReviews(c.UserContext(), middleware.GetMemberID(c), pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
