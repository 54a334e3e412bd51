package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/dto"
	"gestor-financiero/internal/models"
	"gestor-financiero/internal/storage"

	"github.com/google/uuid"
)

type extractFunc func(ctx context.Context, filename, mimetype string, data []byte) (*dto.OCRResponse, error)

func (f extractFunc) Extract(ctx context.Context, filename, mimetype string, data []byte) (*dto.OCRResponse, error) {
	return f(ctx, filename, mimetype, data)
}

func okExtractor(amount string) extractFunc {
	return func(context.Context, string, string, []byte) (*dto.OCRResponse, error) {
		return &dto.OCRResponse{
			Text:          "TOTAL $" + amount,
			ExtractedData: models.ExtractedData{Amount: amount, Category: "supermercado", Currency: "CLP"},
			Confidence:    0.85,
		}, nil
	}
}

type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	uploadErr error
	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memStore) Upload(_ context.Context, userID uuid.UUID, filename, mimetype string, data []byte) (*storage.UploadResult, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name := storage.UniqueName(filename)
	key := storage.UserPrefix(userID) + name
	s.objects[key] = append([]byte(nil), data...)
	s.types[key] = mimetype
	return &storage.UploadResult{
		Key:              key,
		Filename:         name,
		OriginalFilename: filename,
		Mimetype:         mimetype,
		Bucket:           "documents",
		Size:             int64(len(data)),
	}, nil
}

func (s *memStore) FetchStream(_ context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, nil, apperr.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), &storage.ObjectInfo{
		Key:          key,
		ContentType:  s.types[key],
		Size:         int64(len(data)),
		LastModified: time.Now(),
	}, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) ListUserObjects(_ context.Context, userID uuid.UUID) ([]storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.ObjectInfo
	for key, data := range s.objects {
		if storage.OwnsKey(userID, key) {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: time.Now()})
		}
	}
	return out, nil
}

type fakeLedger struct {
	mu    sync.Mutex
	calls []*dto.FromExtractionRequest
	auth  []string
	err   error
}

func (l *fakeLedger) CreateFromExtraction(_ context.Context, authorization string, req *dto.FromExtractionRequest) (*dto.TransactionResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, req)
	l.auth = append(l.auth, authorization)
	if l.err != nil {
		return nil, l.err
	}
	docID := req.DocumentID
	return &dto.TransactionResponse{ID: uuid.NewString(), DocumentID: &docID, Amount: req.ExtractedData.Amount, Source: "ocr"}, nil
}

var errBoom = errors.New("boom")
