package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/models"
	"gestor-financiero/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry owns document records and their status lifecycle:
//
//	uploaded -> processed_pending_review -> transaction_created
//	uploaded | processed_pending_review -> error_ocr -> (reprocess)
type Registry struct {
	docs   repository.DocumentRepository
	logger *zap.Logger
}

func NewRegistry(docs repository.DocumentRepository, logger *zap.Logger) *Registry {
	return &Registry{
		docs:   docs,
		logger: logger,
	}
}

func (r *Registry) CreateRecord(ctx context.Context, doc *models.Document) error {
	now := time.Now().UTC()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.Status = models.StatusUploaded
	doc.OCRProcessed = false
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if err := r.docs.Create(ctx, doc); err != nil {
		return fmt.Errorf("failed to create document record: %w", err)
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, id, userID uuid.UUID) (*models.Document, error) {
	return r.docs.GetForUser(ctx, id, userID)
}

func (r *Registry) List(ctx context.Context, userID uuid.UUID) ([]*models.Document, error) {
	return r.docs.ListByUser(ctx, userID)
}

func (r *Registry) MarkOcrComplete(ctx context.Context, id uuid.UUID) error {
	return r.docs.Transition(ctx, id, models.StatusProcessedPendingReview, true)
}

// MarkOcrFailed never fails: a missing document or one that already has a
// transaction is left alone, and storage errors are only logged.
func (r *Registry) MarkOcrFailed(ctx context.Context, id uuid.UUID) {
	err := r.docs.Transition(ctx, id, models.StatusErrorOCR, false)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrNotFound):
		r.logger.Debug("Document gone before it could be marked failed", zap.String("document_id", id.String()))
	case errors.Is(err, apperr.ErrInvalidTransition):
		r.logger.Info("Document not marked failed", zap.String("document_id", id.String()), zap.Error(err))
	default:
		r.logger.Error("Failed to mark document as error_ocr", zap.String("document_id", id.String()), zap.Error(err))
	}
}

func (r *Registry) MarkTransactionCreated(ctx context.Context, id uuid.UUID) error {
	return r.docs.Transition(ctx, id, models.StatusTransactionCreated, true)
}

// Delete removes the record and its OCR results; transactions stay.
func (r *Registry) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return r.docs.Delete(ctx, id, userID)
}
