package handlers

import (
	"fmt"
	"io"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/ocr"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type OCRHandler struct {
	processor *ocr.Processor
	logger    *zap.Logger
}

func NewOCRHandler(processor *ocr.Processor, logger *zap.Logger) *OCRHandler {
	return &OCRHandler{
		processor: processor,
		logger:    logger,
	}
}

// Process godoc
// @Summary Extract text and financial fields
// @Description Runs OCR on a receipt or invoice. OCR failures answer 200 with extracted_data.error set and confidence 0.
// @Tags ocr
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document file"
// @Security Bearer
// @Success 200 {object} dto.OCRResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/ocr/process [post]
func (h *OCRHandler) Process(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return respondError(c, h.logger, fmt.Errorf("%w: no file uploaded", apperr.ErrInvalidInput))
	}

	src, err := file.Open()
	if err != nil {
		return respondError(c, h.logger, fmt.Errorf("%w: failed to open file", apperr.ErrInvalidInput))
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return respondError(c, h.logger, fmt.Errorf("%w: failed to read file", apperr.ErrInvalidInput))
	}

	resp, err := h.processor.Extract(c.UserContext(), file.Filename, file.Header.Get(fiber.HeaderContentType), data)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(resp)
}
