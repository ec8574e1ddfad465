package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func Cors(origins string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     strings.TrimSpace(origins),
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "*",
	})
}

// RateLimiter caps requests per client IP per minute. A non-positive max
// disables it.
func RateLimiter(max int) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, try again later",
				"code":  "RATE_LIMITED",
			})
		},
	})
}

func Recovery() fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			slog.Error("Panic recovered", "path", c.Path(), "panic", e)
		},
	})
}

func RequestLogger() fiber.Handler {
	return logger.New(logger.Config{
		TimeFormat: time.DateTime,
		TimeZone:   "UTC",
		Format:     "[${time}] ${locals:requestid} ${ip} - ${method} ${path} - ${status} - ${latency}\n",
	})
}

// Stack returns the middleware every request passes through, in order.
func Stack(corsOrigins string, rateLimit int) []fiber.Handler {
	return []fiber.Handler{
		Recovery(),
		requestid.New(),
		RequestLogger(),
		compress.New(compress.Config{
			Level: compress.LevelDefault,
			Next: func(c *fiber.Ctx) bool {
				return strings.HasPrefix(c.Path(), "/ws")
			},
		}),
		Cors(corsOrigins),
		RateLimiter(rateLimit),
	}
}
