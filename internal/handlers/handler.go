package handlers

import (
	"errors"
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/arnold/gatherings-api/internal/apperr"
	"github.com/arnold/gatherings-api/internal/listing"
	"github.com/arnold/gatherings-api/internal/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var (
	errInvalidBody = &apperr.Error{Status: fiber.StatusBadRequest, Code: "BAD_REQUEST", Message: "Invalid request body"}
	errInvalidID   = &apperr.Error{Status: fiber.StatusBadRequest, Code: "BAD_REQUEST", Message: "Invalid gathering ID"}
)

// validationError lists the offending fields of a request body.
type validationError struct {
	fields map[string]string
}

func (e *validationError) Error() string { return "validation failed" }

// Handler serves the HTTP API on top of the service layer.
type Handler struct {
	svc       *services.Service
	images    *services.ImageStore
	hub       *Hub
	jwtSecret string
	validate  *validator.Validate
}

func New(svc *services.Service, images *services.ImageStore, hub *Hub, jwtSecret string) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		svc:       svc,
		images:    images,
		hub:       hub,
		jwtSecret: jwtSecret,
		validate:  v,
	}
}

// respondError maps domain errors to their status and code. Anything else is
// logged and reported as an internal error.
func respondError(c *fiber.Ctx, err error) error {
	var ve *validationError
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "Validation failed",
			"code":   "VALIDATION_FAILED",
			"fields": ve.fields,
		})
	}

	if e, ok := apperr.As(err); ok {
		return c.Status(e.Status).JSON(fiber.Map{
			"error": e.Message,
			"code":  e.Code,
		})
	}

	slog.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
		"code":  "INTERNAL_ERROR",
	})
}

// bind parses the JSON body into req and validates it.
func (h *Handler) bind(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return errInvalidBody
	}
	if err := h.validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return errInvalidBody
		}
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = validationMessage(fe)
		}
		return &validationError{fields: fields}
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}

func gatheringID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, errInvalidID
	}
	return id, nil
}

func pageFromQuery(c *fiber.Ctx) listing.Page {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	size, _ := strconv.Atoi(c.Query("size", strconv.Itoa(listing.DefaultSize)))
	return listing.Page{Page: page, Size: size}.Normalize()
}

func invalidQuery(msg string) error {
	return &apperr.Error{Status: fiber.StatusBadRequest, Code: "BAD_REQUEST", Message: msg}
}
