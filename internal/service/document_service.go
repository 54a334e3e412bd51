package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/dto"
	"gestor-financiero/internal/models"
	"gestor-financiero/internal/repository"
	"gestor-financiero/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BlobStore is the object storage adapter as seen by the document service.
type BlobStore interface {
	BlobFetcher
	Upload(ctx context.Context, userID uuid.UUID, filename, mimetype string, data []byte) (*storage.UploadResult, error)
	Delete(ctx context.Context, key string) error
	ListUserObjects(ctx context.Context, userID uuid.UUID) ([]storage.ObjectInfo, error)
}

// LedgerClient creates transactions in the financial service on behalf of the
// caller identified by authorization.
type LedgerClient interface {
	CreateFromExtraction(ctx context.Context, authorization string, req *dto.FromExtractionRequest) (*dto.TransactionResponse, error)
}

const viewEncodedPrefix = "/api/documents/view-encoded/"

type DocumentService struct {
	registry      *Registry
	results       repository.OCRResultRepository
	store         BlobStore
	worker        *OCRWorker
	ledger        LedgerClient
	maxUploadSize int64
	logger        *zap.Logger

	processed atomic.Int64
	failed    atomic.Int64
}

func NewDocumentService(
	registry *Registry,
	results repository.OCRResultRepository,
	store BlobStore,
	worker *OCRWorker,
	ledger LedgerClient,
	maxUploadSize int64,
	logger *zap.Logger,
) *DocumentService {
	return &DocumentService{
		registry:      registry,
		results:       results,
		store:         store,
		worker:        worker,
		ledger:        ledger,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Upload stores the blob, records the document and queues OCR. It returns as
// soon as the record exists; OCR outcome is only visible through the status.
func (s *DocumentService) Upload(ctx context.Context, userID uuid.UUID, filename, mimetype string, data []byte) (*dto.UploadResponse, error) {
	normalized, ok := normalizeMimetype(mimetype, filename)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q, only PDF, JPEG and PNG are allowed", apperr.ErrInvalidInput, mimetype)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", apperr.ErrInvalidInput)
	}
	if s.maxUploadSize > 0 && int64(len(data)) > s.maxUploadSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", apperr.ErrInvalidInput, s.maxUploadSize)
	}

	uploaded, err := s.store.Upload(ctx, userID, filename, normalized, data)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		UserID:           userID,
		Filename:         uploaded.Filename,
		OriginalFilename: uploaded.OriginalFilename,
		Mimetype:         uploaded.Mimetype,
		Size:             uploaded.Size,
		BucketName:       uploaded.Bucket,
		ObjectName:       uploaded.Key,
	}
	if err := s.registry.CreateRecord(ctx, doc); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), uploaded.Key); delErr != nil {
			s.logger.Warn("Orphaned object after failed insert", zap.String("object", uploaded.Key), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("Document uploaded",
		zap.String("document_id", doc.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("mimetype", doc.Mimetype),
		zap.Int64("size", doc.Size),
	)

	s.dispatch(OCRTask{
		DocumentID: doc.ID,
		UserID:     userID,
		Filename:   doc.OriginalFilename,
		Mimetype:   doc.Mimetype,
		ObjectKey:  doc.ObjectName,
		Data:       data,
	})

	return &dto.UploadResponse{
		Message:  "File uploaded successfully",
		Document: toDocumentResponse(doc),
	}, nil
}

// dispatch hands the task to the pool; if it cannot be queued the document
// goes straight to error_ocr so it can be reprocessed later.
func (s *DocumentService) dispatch(task OCRTask) {
	if err := s.worker.Submit(task); err != nil {
		s.logger.Warn("OCR task not queued", zap.String("document_id", task.DocumentID.String()), zap.Error(err))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.registry.MarkOcrFailed(ctx, task.DocumentID)
	}
}

// ConsumeResults logs OCR outcomes until the worker's result channel closes
// or ctx is done.
func (s *DocumentService) ConsumeResults(ctx context.Context) {
	results := s.worker.Results()
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			if res.Err != nil {
				s.failed.Add(1)
				s.logger.Warn("OCR task finished with error",
					zap.String("document_id", res.DocumentID.String()),
					zap.Duration("duration", res.Duration),
					zap.Int64("failed_total", s.failed.Load()),
					zap.Error(res.Err),
				)
				continue
			}
			s.processed.Add(1)
			s.logger.Info("OCR task finished",
				zap.String("document_id", res.DocumentID.String()),
				zap.String("status", string(res.Status)),
				zap.Duration("duration", res.Duration),
				zap.Int64("processed_total", s.processed.Load()),
			)
		}
	}
}

func (s *DocumentService) List(ctx context.Context, userID uuid.UUID) (*dto.DocumentListResponse, error) {
	docs, err := s.registry.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := &dto.DocumentListResponse{Documents: make([]dto.DocumentResponse, 0, len(docs))}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, toDocumentResponse(d))
	}
	return resp, nil
}

func (s *DocumentService) Get(ctx context.Context, userID, id uuid.UUID) (*dto.DocumentResponse, error) {
	doc, err := s.registry.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	resp := toDocumentResponse(doc)
	return &resp, nil
}

func (s *DocumentService) ListObjects(ctx context.Context, userID uuid.UUID) (*dto.ObjectListResponse, error) {
	objects, err := s.store.ListUserObjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := &dto.ObjectListResponse{Objects: make([]dto.ObjectResponse, 0, len(objects))}
	for _, o := range objects {
		resp.Objects = append(resp.Objects, dto.ObjectResponse{
			Filename:     path.Base(o.Key),
			ObjectName:   o.Key,
			Size:         o.Size,
			LastModified: o.LastModified.Format(time.RFC3339),
			DownloadURL:  DownloadURL(o.Key),
		})
	}
	return resp, nil
}

// View opens a stored blob after checking it lies in the caller's namespace.
func (s *DocumentService) View(ctx context.Context, userID uuid.UUID, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	if !storage.OwnsKey(userID, key) {
		return nil, nil, fmt.Errorf("%w: object does not belong to the user", apperr.ErrForbidden)
	}
	return s.store.FetchStream(ctx, key)
}

func (s *DocumentService) OCRData(ctx context.Context, userID, id uuid.UUID) (*dto.OCRDataResponse, error) {
	doc, err := s.registry.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	result, err := s.results.Latest(ctx, doc.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: no ocr result for document (status %s)", apperr.ErrNotFound, doc.Status)
		}
		return nil, err
	}
	return &dto.OCRDataResponse{
		DocumentID:    doc.ID.String(),
		Status:        string(doc.Status),
		FullText:      result.FullText,
		ExtractedData: result.ExtractedData,
		Confidence:    result.Confidence,
		CreatedAt:     result.CreatedAt.Format(time.RFC3339),
	}, nil
}

// Reprocess queues another OCR attempt. Documents that already produced a
// transaction are final.
func (s *DocumentService) Reprocess(ctx context.Context, userID, id uuid.UUID) (*dto.ProcessResponse, error) {
	doc, err := s.registry.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if doc.Status == models.StatusTransactionCreated {
		return nil, fmt.Errorf("%w: document already has a transaction", apperr.ErrInvalidTransition)
	}

	s.dispatch(OCRTask{
		DocumentID: doc.ID,
		UserID:     userID,
		Filename:   doc.OriginalFilename,
		Mimetype:   doc.Mimetype,
		ObjectKey:  doc.ObjectName,
	})

	return &dto.ProcessResponse{
		Message:    "Document queued for processing",
		DocumentID: doc.ID.String(),
		Status:     string(doc.Status),
	}, nil
}

// CreateTransaction books the reviewed extraction in the ledger and closes
// the document.
func (s *DocumentService) CreateTransaction(ctx context.Context, userID, id uuid.UUID, authorization string, overrides *dto.CreateFromDocumentRequest) (*dto.TransactionResponse, error) {
	doc, err := s.registry.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.StatusProcessedPendingReview {
		return nil, fmt.Errorf("%w: document is %s, expected %s",
			apperr.ErrInvalidTransition, doc.Status, models.StatusProcessedPendingReview)
	}

	result, err := s.results.Latest(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	data := mergeExtraction(result.ExtractedData, overrides)
	req := &dto.FromExtractionRequest{
		DocumentID:    doc.ID.String(),
		ExtractedData: data,
	}
	if overrides != nil {
		req.TransactionType = overrides.TransactionType
	}

	tx, err := s.ledger.CreateFromExtraction(ctx, authorization, req)
	if err != nil {
		return nil, err
	}

	if err := s.registry.MarkTransactionCreated(ctx, doc.ID); err != nil {
		// The ledger row exists; a concurrent call may have closed the document first.
		s.logger.Warn("Transaction created but document status not updated",
			zap.String("document_id", doc.ID.String()),
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
	}
	return tx, nil
}

// Delete removes the blob (best effort) and the record.
func (s *DocumentService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	doc, err := s.registry.Get(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, doc.ObjectName); err != nil {
		s.logger.Warn("Failed to delete object, removing record anyway",
			zap.String("document_id", doc.ID.String()),
			zap.String("object", doc.ObjectName),
			zap.Error(err),
		)
	}

	if err := s.registry.Delete(ctx, doc.ID, userID); err != nil {
		return err
	}
	s.logger.Info("Document deleted", zap.String("document_id", doc.ID.String()))
	return nil
}

func mergeExtraction(data models.ExtractedData, o *dto.CreateFromDocumentRequest) models.ExtractedData {
	if o == nil {
		return data
	}
	if v := strings.TrimSpace(o.Amount); v != "" {
		data.Amount = v
	}
	if v := strings.TrimSpace(o.Date); v != "" {
		data.Date = v
	}
	if v := strings.TrimSpace(o.Description); v != "" {
		data.Description = v
	}
	if v := strings.TrimSpace(o.Category); v != "" {
		data.Category = v
	}
	return data
}

// DownloadURL is the gateway path that streams the object.
func DownloadURL(key string) string {
	return viewEncodedPrefix + url.PathEscape(key)
}

func toDocumentResponse(d *models.Document) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:               d.ID.String(),
		Filename:         d.Filename,
		OriginalFilename: d.OriginalFilename,
		Mimetype:         d.Mimetype,
		Size:             d.Size,
		Bucket:           d.BucketName,
		ObjectName:       d.ObjectName,
		Status:           string(d.Status),
		OCRProcessed:     d.OCRProcessed,
		DownloadURL:      DownloadURL(d.ObjectName),
		CreatedAt:        d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        d.UpdatedAt.Format(time.RFC3339),
	}
}
