package handlers

import (
	"fmt"
	"io"
	"net/url"
	"path"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/dto"
	"gestor-financiero/internal/service"
	"gestor-financiero/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	docService *service.DocumentService
	logger     *zap.Logger
}

func NewDocumentHandler(docService *service.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		docService: docService,
		logger:     logger,
	}
}

// UploadDocument godoc
// @Summary Upload a financial document
// @Description Stores a receipt or invoice (PDF, JPEG, PNG) and queues OCR
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document file"
// @Security Bearer
// @Success 201 {object} dto.UploadResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/documents/upload [post]
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return respondError(c, h.logger, fmt.Errorf("%w: file is required", apperr.ErrInvalidInput))
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

	resp, err := h.docService.Upload(c.UserContext(), userID, file.Filename, file.Header.Get(fiber.HeaderContentType), data)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// ListDocuments godoc
// @Summary List user's documents
// @Tags documents
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.DocumentListResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /api/documents/documents [get]
func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp, err := h.docService.List(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(resp)
}

// GetDocument godoc
// @Summary Get a document
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Security Bearer
// @Success 200 {object} dto.DocumentResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/documents/documents/{id} [get]
func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp, err := h.docService.Get(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(resp)
}

// DeleteDocument godoc
// @Summary Delete a document
// @Description Removes the record, its OCR results and the stored file. Transactions are kept.
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Security Bearer
// @Success 200 {object} map[string]string
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/documents/documents/{id} [delete]
func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if err := h.docService.Delete(c.UserContext(), userID, id); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"message": "Document deleted successfully"})
}

// ListObjects godoc
// @Summary List stored objects
// @Description Raw listing of the caller's storage namespace
// @Tags documents
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.ObjectListResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/documents/objects [get]
func (h *DocumentHandler) ListObjects(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp, err := h.docService.ListObjects(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(resp)
}

// ViewObject godoc
// @Summary Stream a stored file
// @Description The key is the URL-encoded object name, as found in downloadUrl
// @Tags documents
// @Produce octet-stream
// @Param key path string true "URL-encoded object key"
// @Security Bearer
// @Success 200 {file} file
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/documents/view-encoded/{key} [get]
func (h *DocumentHandler) ViewObject(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	key, err := url.PathUnescape(c.Params("*"))
	if err != nil || key == "" {
		return respondError(c, h.logger, fmt.Errorf("%w: malformed object key", apperr.ErrInvalidInput))
	}

	body, info, err := h.docService.View(c.UserContext(), userID, key)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, info.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s"`, path.Base(key)))
	c.Set(fiber.HeaderCacheControl, "max-age=86400")
	// fasthttp closes body once it has been written.
	return c.SendStream(body, int(info.Size))
}

// GetOCRData godoc
// @Summary Latest OCR result of a document
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Security Bearer
// @Success 200 {object} dto.OCRDataResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/documents/ocr-data/{id} [get]
func (h *DocumentHandler) GetOCRData(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp, err := h.docService.OCRData(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(resp)
}

// ProcessDocument godoc
// @Summary Run OCR again
// @Description Queues a new OCR attempt, typically for documents in error_ocr
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Security Bearer
// @Success 202 {object} dto.ProcessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/documents/process/{id} [post]
func (h *DocumentHandler) ProcessDocument(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp, err := h.docService.Reprocess(c.UserContext(), userID, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// CreateTransaction godoc
// @Summary Create a transaction from a reviewed document
// @Description Empty fields keep the values extracted by OCR
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param request body dto.CreateFromDocumentRequest false "Reviewer overrides"
// @Security Bearer
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/documents/create-transaction/{id} [post]
func (h *DocumentHandler) CreateTransaction(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var overrides dto.CreateFromDocumentRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&overrides); err != nil {
			return respondError(c, h.logger, invalidBody())
		}
	}

	tx, err := h.docService.CreateTransaction(c.UserContext(), userID, id, c.Get(fiber.HeaderAuthorization), &overrides)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tx)
}
