package handlers

import (
	"github.com/arnold/gatherings-api/internal/middleware"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/arnold/gatherings-api/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func (h *Handler) CreateReview(c *fiber.Ctx) error {
	id, err := gatheringID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req models.ReviewRequest
	if err := h.bind(c, &req); err != nil {
		return respondError(c, err)
	}

	review, err := h.svc.CreateReview(c.UserContext(), id, middleware.GetMemberID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(review)
}

func (h *Handler) UpdateReview(c *fiber.Ctx) error {
	id, err := gatheringID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req models.ReviewRequest
	if err := h.bind(c, &req); err != nil {
		return respondError(c, err)
	}

	review, err := h.svc.UpdateReview(c.UserContext(), id, middleware.GetMemberID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(review)
}

func (h *Handler) DeleteReview(c *fiber.Ctx) error {
	id, err := gatheringID(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.svc.DeleteReview(c.UserContext(), id, middleware.GetMemberID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Review deleted",
	})
}

func (h *Handler) ListReviews(c *fiber.Ctx) error {
	id, err := gatheringID(c)
	if err != nil {
		return respondError(c, err)
	}

	sort := services.ReviewSort(c.Query("sort", string(services.ReviewSortLatest)))
	list, err := h.svc.ListReviews(c.UserContext(), id, sort, pageFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// ReviewScores returns the score summary of one gathering (?gatheringId=) or of
// all gatherings.
func (h *Handler) ReviewScores(c *fiber.Ctx) error {
	var gid *uuid.UUID
	if raw := c.Query("gatheringId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return respondError(c, errInvalidID)
		}
		gid = &id
	}

	summary, err := h.svc.ScoreSummary(c.UserContext(), gid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}
