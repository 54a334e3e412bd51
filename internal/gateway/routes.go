package gateway

import (
	"time"

	_ "gestor-financiero/docs"
	"gestor-financiero/internal/dto"
	"gestor-financiero/pkg/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/swagger"
)

// SetupRoutes mounts /swagger and the rate-limited /api proxy on app. /health
// comes from the shared app constructor.
func SetupRoutes(app *fiber.App, g *Gateway, cfg *config.GatewayConfig) {
	app.Use(helmet.New(helmet.Config{
		// swagger-ui needs inline scripts
		ContentSecurityPolicy: "",
	}))

	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: rateWindow(cfg.RateLimitWindow),
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
				Error: "Too many requests, please try again later",
				Code:  "RATE_LIMITED",
			})
		},
	}))
	api.All("/*", g.Resolve, g.Guard, g.Forward)
}

func rateWindow(d time.Duration) time.Duration {
	if d <= 0 {
		return 15 * time.Minute
	}
	return d
}
