package handlers

import (
	"strconv"

	"github.com/arnold/gatherings-api/internal/listing"
	"github.com/arnold/gatherings-api/internal/middleware"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func (h *Handler) CreateGathering(c *fiber.Ctx) error {
	var req models.CreateGatheringRequest
	if err := h.bind(c, &req); err != nil {
		return respondError(c, err)
	}

	detail, err := h.svc.CreateGathering(c.UserContext(), middleware.GetMemberID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(detail)
}

// filterFromQuery reads the listing filters shared by the offset and cursor
// endpoints.
func filterFromQuery(c *fiber.Ctx) (listing.Filter, error) {
	start, err := listing.ParseDate(c.Query("startDate"))
	if err != nil {
		return listing.Filter{}, invalidQuery(err.Error())
	}
	end, err := listing.ParseDate(c.Query("endDate"))
	if err != nil {
		return listing.Filter{}, invalidQuery(err.Error())
	}
	available, _ := strconv.ParseBool(c.Query("available", "false"))

	return listing.Filter{
		Query:     c.Query("query"),
		Location:  c.Query("location"),
		Category:  c.Query("category"),
		StartDate: start,
		EndDate:   end,
		Available: available,
		Status:    listing.ParseStatus(c.Query("status")),
		Sort:      listing.ParseSort(c.Query("sort")),
	}, nil
}

func (h *Handler) ListGatherings(c *fiber.Ctx) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}

	res, err := h.svc.ListGatherings(c.UserContext(), f, pageFromQuery(c), middleware.GetViewer(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) ListGatheringsCursor(c *fiber.Ctx) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return respondError(c, err)
	}

	var cursor *uuid.UUID
	if raw := c.Query("cursor"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return respondError(c, invalidQuery("Invalid cursor"))
		}
		cursor = &id
	}
	size, _ := strconv.Atoi(c.Query("size", strconv.Itoa(listing.DefaultSize)))

	res, err := h.svc.ListGatheringsCursor(c.UserContext(), f, cursor, size, middleware.GetViewer(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

func (h *Handler) GetGathering(c *fiber.Ctx) error {
	id, err := gatheringID(c)
	if err != nil {
		return respondError(c, err)
	}

	detail, err := h.svc.GetGathering(c.UserContext(), id, middleware.GetViewer(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

func (h *Handler) CancelGathering(c *fiber.Ctx) error {
	id, err := gatheringID(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.svc.CancelGathering(c.UserContext(), id, middleware.GetMemberID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Gathering canceled",
	})
}

func (h *Handler) ReopenGathering(c *fiber.Ctx) error {
	id, err := gatheringID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req models.ReopenGatheringRequest
	if err := h.bind(c, &req); err != nil {
		return respondError(c, err)
	}

	detail, err := h.svc.ReopenGathering(c.UserContext(), id, middleware.GetMemberID(c), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}
