package gateway

import (
	"errors"
	"time"

	"gestor-financiero/internal/dto"
	"gestor-financiero/pkg/auth"
	"gestor-financiero/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const localsMatch = "gatewayMatch"

type match struct {
	route *Route
	rest  string
}

type Gateway struct {
	table  *Table
	guard  fiber.Handler
	client *fasthttp.Client
	logger *zap.Logger
}

func New(table *Table, jwtManager *auth.JWTManager, logger *zap.Logger) *Gateway {
	return &Gateway{
		table: table,
		guard: middleware.AuthMiddleware(jwtManager, logger),
		client: &fasthttp.Client{
			NoDefaultUserAgentHeader: true,
			// keep %2F in view-encoded keys intact
			DisablePathNormalizing: true,
		},
		logger: logger,
	}
}

// Resolve picks the route for the request or answers 404.
func (g *Gateway) Resolve(c *fiber.Ctx) error {
	route, rest, ok := g.table.Match(c.Path())
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: "Route not found",
			Code:  "NOT_FOUND",
		})
	}
	c.Locals(localsMatch, match{route: route, rest: rest})
	return c.Next()
}

// Guard verifies the bearer token unless the path is public.
func (g *Gateway) Guard(c *fiber.Ctx) error {
	m, ok := c.Locals(localsMatch).(match)
	if ok && m.route.IsPublic(m.rest) {
		return c.Next()
	}
	return g.guard(c)
}

// Forward proxies to the backend with the route's timeout. Backend failures
// become 503, timeouts 504; the client never waits past the timeout.
func (g *Gateway) Forward(c *fiber.Ctx) error {
	m, ok := c.Locals(localsMatch).(match)
	if !ok {
		return fiber.ErrNotFound
	}

	target := m.route.Target + m.rest
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		target += "?" + string(q)
	}
	timeout := m.route.TimeoutFor(m.rest)

	start := time.Now()
	err := proxy.DoTimeout(c, target, timeout, g.client)
	if err != nil {
		g.logger.Error("Proxy error",
			zap.String("service", m.route.Name),
			zap.String("path", c.Path()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		c.Response().Reset()
		if errors.Is(err, fasthttp.ErrTimeout) {
			return c.Status(fiber.StatusGatewayTimeout).JSON(dto.ErrorResponse{
				Error: "Service timeout",
				Code:  "UPSTREAM_TIMEOUT",
			})
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: "Service unavailable",
			Code:  "SERVICE_UNAVAILABLE",
		})
	}

	c.Response().Header.Del(fiber.HeaderServer)
	return nil
}
