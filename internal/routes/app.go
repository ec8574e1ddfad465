package routes

import (
	"time"

	"github.com/arnold/gatherings-api/internal/config"
	"github.com/arnold/gatherings-api/internal/handlers"
	"github.com/arnold/gatherings-api/internal/middleware"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
)

// NewApp builds the fiber application with the middleware stack and every route.
func NewApp(h *handlers.Handler, cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "gatherings-api",
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		BodyLimit:             6 * 1024 * 1024,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           90 * time.Second,
	})

	for _, m := range middleware.Stack(cfg.CORSOrigins, cfg.RateLimitPerMinute) {
		app.Use(m)
	}

	Setup(app, h, cfg.JWTSecret, cfg.UploadDir)
	return app
}
