package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/dto"
	"gestor-financiero/internal/models"
	"gestor-financiero/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultOCRDescription = "Transacción generada por OCR"

type LedgerService struct {
	txRepo  repository.TransactionRepository
	catRepo repository.CategoryRepository
	logger  *zap.Logger
	now     func() time.Time
}

func NewLedgerService(txRepo repository.TransactionRepository, catRepo repository.CategoryRepository, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		txRepo:  txRepo,
		catRepo: catRepo,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateFromExtraction books an unverified transaction from OCR output.
func (s *LedgerService) CreateFromExtraction(ctx context.Context, userID uuid.UUID, req *dto.FromExtractionRequest) (*dto.TransactionResponse, error) {
	documentID, err := parseOptionalID(req.DocumentID)
	if err != nil {
		return nil, err
	}

	data := req.ExtractedData
	description := strings.TrimSpace(data.Description)
	if description == "" {
		description = defaultOCRDescription
	}

	return s.create(ctx, userID, documentID, fields{
		amount:      data.Amount,
		date:        data.Date,
		description: description,
		category:    data.Category,
		txType:      req.TransactionType,
		source:      models.SourceOCR,
		verified:    false,
	})
}

// CreateManual books a transaction entered or confirmed by the user.
func (s *LedgerService) CreateManual(ctx context.Context, userID uuid.UUID, req *dto.ManualTransactionRequest) (*dto.TransactionResponse, error) {
	documentID, err := parseOptionalID(req.DocumentID)
	if err != nil {
		return nil, err
	}

	return s.create(ctx, userID, documentID, fields{
		amount:      req.Amount,
		date:        req.Date,
		description: strings.TrimSpace(req.Description),
		category:    req.Category,
		txType:      req.TransactionType,
		source:      models.SourceManual,
		verified:    true,
	})
}

type fields struct {
	amount, date, description, category, txType string
	source                                      models.TransactionSource
	verified                                    bool
}

func (s *LedgerService) create(ctx context.Context, userID uuid.UUID, documentID *uuid.UUID, f fields) (*dto.TransactionResponse, error) {
	amount, err := NormalizeAmount(f.amount)
	if err != nil {
		return nil, err
	}

	txType := models.TransactionType(strings.ToLower(strings.TrimSpace(f.txType)))
	if txType == "" {
		txType = models.TransactionExpense
	}
	if !txType.Valid() {
		return nil, fmt.Errorf("%w: transaction_type must be expense or income", apperr.ErrInvalidInput)
	}

	category, err := s.ResolveCategory(ctx, f.category)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tx := &models.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		DocumentID:  documentID,
		Amount:      amount,
		Date:        ParseDate(f.date, now),
		Description: f.description,
		Type:        txType,
		Source:      f.source,
		Verified:    f.verified,
		CreatedAt:   now.UTC(),
	}
	if category != nil {
		tx.CategoryID = &category.ID
		tx.CategoryName = category.Name
		tx.CategoryColor = category.Color
	}

	if err := s.txRepo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to store transaction: %w", err)
	}

	s.logger.Info("Transaction created",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("source", string(tx.Source)),
		zap.String("amount", tx.Amount.String()),
	)
	return toTransactionResponse(tx), nil
}

// ResolveCategory finds a category by case-insensitive name or creates it.
// Two concurrent first uses of the same new name may both create a row; the
// lookup then keeps returning the oldest one.
func (s *LedgerService) ResolveCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	existing, err := s.catRepo.FindByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	category := &models.Category{
		ID:          uuid.New(),
		Name:        name,
		Description: "",
		Color:       categoryColor(strings.ToLower(name)),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.catRepo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	s.logger.Info("Category created", zap.String("category", name))
	return category, nil
}

func (s *LedgerService) List(ctx context.Context, userID uuid.UUID) (*dto.TransactionListResponse, error) {
	txs, err := s.txRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &dto.TransactionListResponse{Transactions: make([]dto.TransactionResponse, 0, len(txs))}
	for _, tx := range txs {
		resp.Transactions = append(resp.Transactions, *toTransactionResponse(tx))
	}
	return resp, nil
}

func (s *LedgerService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return s.txRepo.Delete(ctx, id, userID)
}

func (s *LedgerService) Categories(ctx context.Context) (*dto.CategoryListResponse, error) {
	categories, err := s.catRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	resp := &dto.CategoryListResponse{Categories: make([]dto.CategoryResponse, 0, len(categories))}
	for _, c := range categories {
		resp.Categories = append(resp.Categories, dto.CategoryResponse{
			ID:          c.ID.String(),
			Name:        c.Name,
			Description: c.Description,
			Color:       c.Color,
		})
	}
	return resp, nil
}

func parseOptionalID(raw string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed document_id", apperr.ErrInvalidInput)
	}
	return &id, nil
}

func toTransactionResponse(tx *models.Transaction) *dto.TransactionResponse {
	resp := &dto.TransactionResponse{
		ID:              tx.ID.String(),
		Amount:          tx.Amount.StringFixed(2),
		Date:            tx.Date.Format("2006-01-02"),
		Description:     tx.Description,
		CategoryName:    tx.CategoryName,
		CategoryColor:   tx.CategoryColor,
		TransactionType: string(tx.Type),
		Source:          string(tx.Source),
		Verified:        tx.Verified,
		CreatedAt:       tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.DocumentID != nil {
		id := tx.DocumentID.String()
		resp.DocumentID = &id
	}
	if tx.CategoryID != nil {
		id := tx.CategoryID.String()
		resp.CategoryID = &id
	}
	return resp
}
