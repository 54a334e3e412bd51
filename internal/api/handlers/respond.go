package handlers

import (
	"fmt"
	"net/http"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/dto"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// respondError writes the {"error","code"} envelope. 5xx details stay in the log.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	} else {
		logger.Debug("Request rejected", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(dto.ErrorResponse{
		Error: apperr.Message(err),
		Code:  apperr.Code(err),
	})
}

func invalidBody() error {
	return fmt.Errorf("%w: invalid request body", apperr.ErrInvalidInput)
}

func pathID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", apperr.ErrInvalidInput, c.Params("id"))
	}
	return id, nil
}
