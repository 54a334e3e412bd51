package handlers

import (
	"gestor-financiero/internal/dto"
	"gestor-financiero/internal/service"
	"gestor-financiero/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type FinancialHandler struct {
	ledger *service.LedgerService
	logger *zap.Logger
}

func NewFinancialHandler(ledger *service.LedgerService, logger *zap.Logger) *FinancialHandler {
	return &FinancialHandler{
		ledger: ledger,
		logger: logger,
	}
}

// ListTransactions godoc
// @Summary List user's transactions
// @Tags financial
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.TransactionListResponse
// @Router /api/financial/transactions [get]
func (h *FinancialHandler) ListTransactions(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp, err := h.ledger.List(c.UserContext(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(resp)
}

// CreateTransaction godoc
// @Summary Create a manual transaction
// @Tags financial
// @Accept json
// @Produce json
// @Param request body dto.ManualTransactionRequest true "Transaction"
// @Security Bearer
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/financial/transactions [post]
func (h *FinancialHandler) CreateTransaction(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req dto.ManualTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, invalidBody())
	}

	tx, err := h.ledger.CreateManual(c.UserContext(), userID, &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tx)
}

// CreateFromExtraction godoc
// @Summary Create a transaction from OCR output
// @Description Called by the document service after review; the result is unverified
// @Tags financial
// @Accept json
// @Produce json
// @Param request body dto.FromExtractionRequest true "Extraction"
// @Security Bearer
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/financial/transactions/from-extraction [post]
func (h *FinancialHandler) CreateFromExtraction(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var req dto.FromExtractionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, invalidBody())
	}

	tx, err := h.ledger.CreateFromExtraction(c.UserContext(), userID, &req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tx)
}

// DeleteTransaction godoc
// @Summary Delete a transaction
// @Tags financial
// @Produce json
// @Param id path string true "Transaction ID"
// @Security Bearer
// @Success 200 {object} map[string]string
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/financial/transactions/{id} [delete]
func (h *FinancialHandler) DeleteTransaction(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	id, err := pathID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if err := h.ledger.Delete(c.UserContext(), id, userID); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"message": "Transaction deleted successfully"})
}

// ListCategories godoc
// @Summary List categories
// @Tags financial
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.CategoryListResponse
// @Router /api/financial/categories [get]
func (h *FinancialHandler) ListCategories(c *fiber.Ctx) error {
	resp, err := h.ledger.Categories(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(resp)
}
