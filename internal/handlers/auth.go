package handlers

import (
	"github.com/arnold/gatherings-api/internal/middleware"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := h.bind(c, &req); err != nil {
		return respondError(c, err)
	}

	member, err := h.svc.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	token, err := middleware.GenerateToken(h.jwtSecret, member.ID, member.Email)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.AuthResponse{
		Token:  token,
		Member: *member,
	})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := h.bind(c, &req); err != nil {
		return respondError(c, err)
	}

	member, err := h.svc.Login(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	token, err := middleware.GenerateToken(h.jwtSecret, member.ID, member.Email)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(models.AuthResponse{
		Token:  token,
		Member: *member,
	})
}

func (h *Handler) GetMe(c *fiber.Ctx) error {
	member, err := h.svc.GetMember(c.UserContext(), middleware.GetMemberID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(member)
}
