package service

import (
	"context"
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

type workerFixture struct {
	set      *repository.Set
	registry *Registry
	store    *memStore
	doc      *models.Document
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	set := memory.NewSet()
	f := &workerFixture{
		set:      set,
		registry: NewRegistry(set.Documents, zap.NewNop()),
		store:    newMemStore(),
	}
	f.doc = &models.Document{
		UserID:           uuid.New(),
		Filename:         "boleta-1.png",
		OriginalFilename: "boleta.png",
		Mimetype:         "image/png",
		ObjectName:       "user-x/boleta-1.png",
	}
	require.NoError(t, f.registry.CreateRecord(context.Background(), f.doc))
	return f
}

func (f *workerFixture) worker(extractor OCRExtractor, timeout time.Duration) *OCRWorker {
	return NewOCRWorker(extractor, f.store, f.registry, f.set.OCRResults,
		OCRWorkerConfig{Workers: 1, QueueSize: 1, Timeout: timeout}, zap.NewNop())
}

func (f *workerFixture) status(t *testing.T) models.DocumentStatus {
	t.Helper()
	doc, err := f.set.Documents.GetByID(context.Background(), f.doc.ID)
	require.NoError(t, err)
	return doc.Status
}

func (f *workerFixture) task(data []byte) OCRTask {
	return OCRTask{
		DocumentID: f.doc.ID,
		UserID:     f.doc.UserID,
		Filename:   f.doc.OriginalFilename,
		Mimetype:   f.doc.Mimetype,
		ObjectKey:  f.doc.ObjectName,
		Data:       data,
	}
}

func TestOCRWorker_Success(t *testing.T) {
	f := newWorkerFixture(t)
	res := f.worker(okExtractor("4990"), time.Second).Process(context.Background(), f.task([]byte("png")))

	require.NoError(t, res.Err)
	assert.Equal(t, models.StatusProcessedPendingReview, res.Status)
	assert.Equal(t, models.StatusProcessedPendingReview, f.status(t))

	result, err := f.set.OCRResults.Latest(context.Background(), f.doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "4990", result.ExtractedData.Amount)
	assert.Equal(t, 0.85, result.Confidence)
	assert.Equal(t, "TOTAL $4990", result.FullText)
}

func TestOCRWorker_Failures(t *testing.T) {
	tests := []struct {
		name      string
		extractor extractFunc
		data      []byte
		errIs     error
	}{
		{
			name: "timeout",
			extractor: func(ctx context.Context, _, _ string, _ []byte) (*dto.OCRResponse, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
			data:  []byte("png"),
			errIs: apperr.ErrUpstreamTimeout,
		},
		{
			name: "reported error",
			extractor: func(context.Context, string, string, []byte) (*dto.OCRResponse, error) {
				return &dto.OCRResponse{Text: "Falló el procesamiento OCR", ExtractedData: models.ExtractedData{Error: "bad image"}}, nil
			},
			data:  []byte("png"),
			errIs: apperr.ErrInternal,
		},
		{
			name: "service unavailable",
			extractor: func(context.Context, string, string, []byte) (*dto.OCRResponse, error) {
				return nil, apperr.ErrServiceUnavailable
			},
			data:  []byte("png"),
			errIs: apperr.ErrServiceUnavailable,
		},
		{
			name:      "blob missing",
			extractor: okExtractor("1"),
			data:      nil,
			errIs:     apperr.ErrNotFound,
		},
		{
			name: "panic",
			extractor: func(context.Context, string, string, []byte) (*dto.OCRResponse, error) {
				panic("decoder exploded")
			},
			data:  []byte("png"),
			errIs: apperr.ErrInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWorkerFixture(t)
			res := f.worker(tt.extractor, 50*time.Millisecond).Process(context.Background(), f.task(tt.data))

			assert.ErrorIs(t, res.Err, tt.errIs)
			assert.Equal(t, models.StatusErrorOCR, res.Status)
			assert.Equal(t, models.StatusErrorOCR, f.status(t))

			_, err := f.set.OCRResults.Latest(context.Background(), f.doc.ID)
			assert.ErrorIs(t, err, apperr.ErrNotFound)
		})
	}
}

func TestOCRWorker_LoadsFromStore(t *testing.T) {
	f := newWorkerFixture(t)
	f.store.objects[f.doc.ObjectName] = []byte("stored-bytes")
	f.store.types[f.doc.ObjectName] = "image/png"

	var got []byte
	extractor := extractFunc(func(ctx context.Context, name, mime string, data []byte) (*dto.OCRResponse, error) {
		got = data
		return okExtractor("10")(ctx, name, mime, data)
	})

	res := f.worker(extractor, time.Second).Process(context.Background(), f.task(nil))
	require.NoError(t, res.Err)
	assert.Equal(t, "stored-bytes", string(got))
}

func TestOCRWorker_QueueFullAndStopped(t *testing.T) {
	f := newWorkerFixture(t)
	w := f.worker(okExtractor("1"), time.Second)

	require.NoError(t, w.Submit(f.task([]byte("a"))))
	assert.ErrorIs(t, w.Submit(f.task([]byte("b"))), apperr.ErrServiceUnavailable)

	w.Start()
	res := <-w.Results()
	require.NoError(t, res.Err)

	w.Stop()
	assert.ErrorIs(t, w.Submit(f.task([]byte("c"))), apperr.ErrServiceUnavailable)
	_, open := <-w.Results()
	assert.False(t, open)
}

func TestRegistry_MarkOcrFailedIsIdempotent(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	f.registry.MarkOcrFailed(ctx, f.doc.ID)
	f.registry.MarkOcrFailed(ctx, f.doc.ID)
	assert.Equal(t, models.StatusErrorOCR, f.status(t))

	// unknown documents are ignored
	f.registry.MarkOcrFailed(ctx, uuid.New())
}

func TestRegistry_Transitions(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.registry.MarkTransactionCreated(ctx, f.doc.ID), apperr.ErrInvalidTransition)

	require.NoError(t, f.registry.MarkOcrComplete(ctx, f.doc.ID))
	require.NoError(t, f.registry.MarkTransactionCreated(ctx, f.doc.ID))

	// a closed document is never reopened
	f.registry.MarkOcrFailed(ctx, f.doc.ID)
	assert.Equal(t, models.StatusTransactionCreated, f.status(t))
	assert.ErrorIs(t, f.registry.MarkOcrComplete(ctx, f.doc.ID), apperr.ErrInvalidTransition)

	doc, err := f.registry.Get(ctx, f.doc.ID, f.doc.UserID)
	require.NoError(t, err)
	assert.True(t, doc.OCRProcessed)

	_, err = f.registry.Get(ctx, f.doc.ID, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
