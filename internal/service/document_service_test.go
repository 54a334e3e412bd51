package service

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/dto"
	"gestor-financiero/internal/models"
	"gestor-financiero/internal/repository"
	"gestor-financiero/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type docFixture struct {
	set    *repository.Set
	store  *memStore
	ledger *fakeLedger
	worker *OCRWorker
	svc    *DocumentService
}

func newDocFixture(t *testing.T, extractor OCRExtractor) *docFixture {
	t.Helper()
	set := memory.NewSet()
	registry := NewRegistry(set.Documents, zap.NewNop())
	store := newMemStore()
	ledger := &fakeLedger{}
	worker := NewOCRWorker(extractor, store, registry, set.OCRResults,
		OCRWorkerConfig{Workers: 2, QueueSize: 8, Timeout: time.Second}, zap.NewNop())
	worker.Start()
	t.Cleanup(worker.Stop)

	return &docFixture{
		set:    set,
		store:  store,
		ledger: ledger,
		worker: worker,
		svc:    NewDocumentService(registry, set.OCRResults, store, worker, ledger, 1024, zap.NewNop()),
	}
}

func (f *docFixture) awaitStatus(t *testing.T, id uuid.UUID, want models.DocumentStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		doc, err := f.set.Documents.GetByID(context.Background(), id)
		return err == nil && doc.Status == want
	}, 2*time.Second, 10*time.Millisecond)
}

func (f *docFixture) upload(t *testing.T, userID uuid.UUID) *dto.DocumentResponse {
	t.Helper()
	resp, err := f.svc.Upload(context.Background(), userID, "Boleta Jumbo.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	return &resp.Document
}

func TestDocumentService_UploadRunsOCR(t *testing.T) {
	f := newDocFixture(t, okExtractor("45990"))
	userID := uuid.New()

	doc := f.upload(t, userID)
	assert.Equal(t, "uploaded", doc.Status)
	assert.Equal(t, "Boleta Jumbo.png", doc.OriginalFilename)
	assert.True(t, strings.HasPrefix(doc.ObjectName, "user-"+userID.String()+"/"))
	assert.True(t, strings.HasPrefix(doc.DownloadURL, "/api/documents/view-encoded/user-"))
	assert.NotContains(t, strings.TrimPrefix(doc.DownloadURL, "/api/documents/view-encoded/"), "/")

	id := uuid.MustParse(doc.ID)
	f.awaitStatus(t, id, models.StatusProcessedPendingReview)

	data, err := f.svc.OCRData(context.Background(), userID, id)
	require.NoError(t, err)
	assert.Equal(t, "45990", data.ExtractedData.Amount)
	assert.Equal(t, "processed_pending_review", data.Status)
}

func TestDocumentService_UploadValidation(t *testing.T) {
	f := newDocFixture(t, okExtractor("1"))
	ctx := context.Background()
	userID := uuid.New()

	_, err := f.svc.Upload(ctx, userID, "notes.txt", "text/plain", []byte("x"))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.svc.Upload(ctx, userID, "a.png", "image/png", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.svc.Upload(ctx, userID, "a.png", "image/png", make([]byte, 2048))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	f.store.uploadErr = apperr.ErrStorageUnavailable
	_, err = f.svc.Upload(ctx, userID, "a.png", "image/png", []byte("x"))
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)

	list, err := f.svc.List(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, list.Documents)
}

func TestDocumentService_OCRFailureMarksDocument(t *testing.T) {
	f := newDocFixture(t, extractFunc(func(context.Context, string, string, []byte) (*dto.OCRResponse, error) {
		return nil, apperr.ErrServiceUnavailable
	}))
	userID := uuid.New()
	id := uuid.MustParse(f.upload(t, userID).ID)
	f.awaitStatus(t, id, models.StatusErrorOCR)

	_, err := f.svc.OCRData(context.Background(), userID, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.CreateTransaction(context.Background(), userID, id, "Bearer t", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestDocumentService_OwnershipIsNotFound(t *testing.T) {
	f := newDocFixture(t, okExtractor("1"))
	ctx := context.Background()
	owner, intruder := uuid.New(), uuid.New()
	doc := f.upload(t, owner)
	id := uuid.MustParse(doc.ID)

	_, err := f.svc.Get(ctx, intruder, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.OCRData(ctx, intruder, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Reprocess(ctx, intruder, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, intruder, id), apperr.ErrNotFound)

	list, err := f.svc.List(ctx, intruder)
	require.NoError(t, err)
	assert.Empty(t, list.Documents)
}

func TestDocumentService_View(t *testing.T) {
	f := newDocFixture(t, okExtractor("1"))
	ctx := context.Background()
	owner := uuid.New()
	doc := f.upload(t, owner)

	body, info, err := f.svc.View(ctx, owner, doc.ObjectName)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", info.ContentType)

	_, _, err = f.svc.View(ctx, uuid.New(), doc.ObjectName)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, _, err = f.svc.View(ctx, owner, "user-"+owner.String()+"/../other/file.png")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, _, err = f.svc.View(ctx, owner, "user-"+owner.String()+"/missing.png")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	objects, err := f.svc.ListObjects(ctx, owner)
	require.NoError(t, err)
	require.Len(t, objects.Objects, 1)
	assert.Equal(t, doc.DownloadURL, objects.Objects[0].DownloadURL)
}

func TestDocumentService_CreateTransaction(t *testing.T) {
	f := newDocFixture(t, okExtractor("45990"))
	ctx := context.Background()
	userID := uuid.New()
	id := uuid.MustParse(f.upload(t, userID).ID)
	f.awaitStatus(t, id, models.StatusProcessedPendingReview)

	tx, err := f.svc.CreateTransaction(ctx, userID, id, "Bearer token", &dto.CreateFromDocumentRequest{
		Description:     "Compra mensual",
		TransactionType: "expense",
	})
	require.NoError(t, err)
	assert.Equal(t, "45990", tx.Amount)

	require.Len(t, f.ledger.calls, 1)
	call := f.ledger.calls[0]
	assert.Equal(t, id.String(), call.DocumentID)
	assert.Equal(t, "Compra mensual", call.ExtractedData.Description)
	assert.Equal(t, "supermercado", call.ExtractedData.Category)
	assert.Equal(t, "Bearer token", f.ledger.auth[0])

	f.awaitStatus(t, id, models.StatusTransactionCreated)

	_, err = f.svc.CreateTransaction(ctx, userID, id, "Bearer token", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	_, err = f.svc.Reprocess(ctx, userID, id)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Len(t, f.ledger.calls, 1)
}

func TestDocumentService_CreateTransactionLedgerFailure(t *testing.T) {
	f := newDocFixture(t, okExtractor("100"))
	ctx := context.Background()
	userID := uuid.New()
	id := uuid.MustParse(f.upload(t, userID).ID)
	f.awaitStatus(t, id, models.StatusProcessedPendingReview)

	f.ledger.err = apperr.ErrInvalidAmount
	_, err := f.svc.CreateTransaction(ctx, userID, id, "Bearer t", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)

	doc, err := f.svc.Get(ctx, userID, id)
	require.NoError(t, err)
	assert.Equal(t, "processed_pending_review", doc.Status)
}

func TestDocumentService_Reprocess(t *testing.T) {
	var calls atomic.Int32
	f := newDocFixture(t, extractFunc(func(ctx context.Context, name, mime string, data []byte) (*dto.OCRResponse, error) {
		if calls.Add(1) == 1 {
			return nil, errBoom
		}
		return okExtractor("500")(ctx, name, mime, data)
	}))
	ctx := context.Background()
	userID := uuid.New()
	id := uuid.MustParse(f.upload(t, userID).ID)
	f.awaitStatus(t, id, models.StatusErrorOCR)

	resp, err := f.svc.Reprocess(ctx, userID, id)
	require.NoError(t, err)
	assert.Equal(t, id.String(), resp.DocumentID)
	f.awaitStatus(t, id, models.StatusProcessedPendingReview)
}

func TestDocumentService_DeleteToleratesStorageFailure(t *testing.T) {
	f := newDocFixture(t, okExtractor("1"))
	ctx := context.Background()
	userID := uuid.New()
	id := uuid.MustParse(f.upload(t, userID).ID)
	f.awaitStatus(t, id, models.StatusProcessedPendingReview)

	f.store.deleteErr = apperr.ErrStorageUnavailable
	require.NoError(t, f.svc.Delete(ctx, userID, id))

	_, err := f.svc.Get(ctx, userID, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.set.OCRResults.Latest(ctx, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDownloadURL(t *testing.T) {
	assert.Equal(t, "/api/documents/view-encoded/user-1%2Fa%20b.png", DownloadURL("user-1/a b.png"))
}
