package routes

import (
	"github.com/arnold/gatherings-api/internal/handlers"
	"github.com/arnold/gatherings-api/internal/metrics"
	"github.com/arnold/gatherings-api/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func Setup(app *fiber.App, h *handlers.Handler, jwtSecret, uploadDir string) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())
	app.Static("/uploads", uploadDir)

	protected := middleware.Protected(jwtSecret)
	optional := middleware.Optional(jwtSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)

	gatherings := api.Group("/gatherings")
	gatherings.Post("/", protected, h.CreateGathering)
	gatherings.Get("/", optional, h.ListGatherings)
	gatherings.Get("/cursor", optional, h.ListGatheringsCursor)
	gatherings.Get("/:id", optional, h.GetGathering)
	gatherings.Get("/:id/activity", h.GetGatheringActivity)

	gatherings.Post("/:id/attendance", protected, h.JoinGathering)
	gatherings.Delete("/:id/attendance", protected, h.CancelAttendance)
	gatherings.Post("/:id/heart", protected, h.HeartGathering)
	gatherings.Delete("/:id/heart", protected, h.UnheartGathering)
	gatherings.Patch("/:id/cancel", protected, h.CancelGathering)
	gatherings.Put("/:id/reopen", protected, h.ReopenGathering)

	gatherings.Get("/:id/reviews", h.ListReviews)
	gatherings.Post("/:id/reviews", protected, h.CreateReview)
	gatherings.Put("/:id/reviews", protected, h.UpdateReview)
	gatherings.Delete("/:id/reviews", protected, h.DeleteReview)
	api.Get("/reviews/scores", h.ReviewScores)

	me := api.Group("/me", protected)
	me.Get("/", h.GetMe)
	me.Get("/gatherings", h.MyGatherings)
	me.Get("/attendances", h.MyAttendances)
	me.Get("/reviewable", h.MyReviewable)
	me.Get("/reviews", h.MyReviews)

	api.Post("/upload", protected, h.UploadImage)

	// WebSocket
	app.Get("/ws/gatherings/:id", h.WebSocketUpgrade(), websocket.New(h.HandleWebSocket))
}
