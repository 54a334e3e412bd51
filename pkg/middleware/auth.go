package middleware

import (
	"fmt"
	"strings"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	localsClaims   = "claims"
	localsUserID   = "userID"
	localsUsername = "username"
	localsEmail    = "email"
)

// ExtractToken reads the Authorization header, accepting both "Bearer <jwt>"
// and a bare token.
func ExtractToken(c *fiber.Ctx) string {
	token := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

// AuthMiddleware verifies the session token, stores the claims in the request
// locals and rewrites the Authorization header into canonical Bearer form so
// that proxied requests carry the verified identity downstream.
func AuthMiddleware(jwtManager *auth.JWTManager, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ExtractToken(c)
		if token == "" {
			logger.Warn("Missing authorization token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization token required",
				"code":  apperr.Code(apperr.ErrUnauthorized),
			})
		}

		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			logger.Warn("Invalid token", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
				"code":  apperr.Code(apperr.ErrUnauthorized),
			})
		}

		c.Locals(localsClaims, claims)
		c.Locals(localsUserID, claims.UserID)
		c.Locals(localsUsername, claims.Username)
		c.Locals(localsEmail, claims.Email)
		c.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+token)

		return c.Next()
	}
}

// ClaimsFrom returns the claims stored by AuthMiddleware.
func ClaimsFrom(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(localsClaims).(*auth.Claims)
	return claims, ok
}

// UserID parses the authenticated user id.
func UserID(c *fiber.Ctx) (uuid.UUID, error) {
	raw, ok := c.Locals(localsUserID).(string)
	if !ok || raw == "" {
		return uuid.Nil, apperr.ErrUnauthorized
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed user id in token", apperr.ErrUnauthorized)
	}
	return id, nil
}
