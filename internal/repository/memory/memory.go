// Package memory provides map-backed repositories for tests and for running
// the services without PostgreSQL (REPOSITORY_BACKEND=memory).
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/models"
	"gestor-financiero/internal/repository"

	"github.com/google/uuid"
)

var timeNow = time.Now

// DB is the shared state behind every repository of a Set, so that deleting
// a document can cascade to its OCR results.
type DB struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]models.User
	documents    map[uuid.UUID]models.Document
	ocrResults   map[uuid.UUID][]models.OCRResult
	transactions map[uuid.UUID]models.Transaction
	categories   []models.Category
}

func NewDB() *DB {
	return &DB{
		users:        make(map[uuid.UUID]models.User),
		documents:    make(map[uuid.UUID]models.Document),
		ocrResults:   make(map[uuid.UUID][]models.OCRResult),
		transactions: make(map[uuid.UUID]models.Transaction),
	}
}

// NewSet returns a repository set backed by a fresh DB.
func NewSet() *repository.Set {
	db := NewDB()
	return &repository.Set{
		Users:        &UserRepository{db: db},
		Documents:    &DocumentRepository{db: db},
		OCRResults:   &OCRResultRepository{db: db},
		Transactions: &TransactionRepository{db: db},
		Categories:   &CategoryRepository{db: db},
	}
}

type UserRepository struct{ db *DB }

func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("%w: email %s", apperr.ErrAlreadyExists, user.Email)
		}
	}
	r.db.users[user.ID] = *user
	return nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &u, nil
}

type DocumentRepository struct{ db *DB }

func (r *DocumentRepository) Create(_ context.Context, doc *models.Document) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.documents[doc.ID]; ok {
		return fmt.Errorf("%w: document %s", apperr.ErrAlreadyExists, doc.ID)
	}
	r.db.documents[doc.ID] = *doc
	return nil
}

func (r *DocumentRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Document, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	d, ok := r.db.documents[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &d, nil
}

func (r *DocumentRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Document, error) {
	d, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	return d, nil
}

func (r *DocumentRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Document, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	docs := make([]*models.Document, 0)
	for _, d := range r.db.documents {
		if d.UserID == userID {
			d := d
			docs = append(docs, &d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docs, nil
}

func (r *DocumentRepository) Transition(_ context.Context, id uuid.UUID, to models.DocumentStatus, ocrProcessed bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.documents[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if !d.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, d.Status, to)
	}
	d.Status = to
	d.OCRProcessed = ocrProcessed
	d.UpdatedAt = timeNow()
	r.db.documents[id] = d
	return nil
}

func (r *DocumentRepository) Delete(_ context.Context, id, userID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.documents[id]
	if !ok || d.UserID != userID {
		return apperr.ErrNotFound
	}
	delete(r.db.documents, id)
	delete(r.db.ocrResults, id)
	return nil
}

type OCRResultRepository struct{ db *DB }

func (r *OCRResultRepository) Create(_ context.Context, result *models.OCRResult) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.documents[result.DocumentID]; !ok {
		return fmt.Errorf("%w: document %s", apperr.ErrNotFound, result.DocumentID)
	}
	r.db.ocrResults[result.DocumentID] = append(r.db.ocrResults[result.DocumentID], *result)
	return nil
}

func (r *OCRResultRepository) Latest(_ context.Context, documentID uuid.UUID) (*models.OCRResult, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	results := r.db.ocrResults[documentID]
	if len(results) == 0 {
		return nil, apperr.ErrNotFound
	}
	latest := results[0]
	for _, res := range results[1:] {
		if !res.CreatedAt.Before(latest.CreatedAt) {
			latest = res
		}
	}
	return &latest, nil
}

type TransactionRepository struct{ db *DB }

func (r *TransactionRepository) Create(_ context.Context, tx *models.Transaction) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.transactions[tx.ID] = *tx
	return nil
}

func (r *TransactionRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Transaction, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	txs := make([]*models.Transaction, 0)
	for _, tx := range r.db.transactions {
		if tx.UserID != userID {
			continue
		}
		tx := tx
		if tx.CategoryID != nil {
			for _, c := range r.db.categories {
				if c.ID == *tx.CategoryID {
					tx.CategoryName, tx.CategoryColor = c.Name, c.Color
					break
				}
			}
		}
		txs = append(txs, &tx)
	}
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
	return txs, nil
}

func (r *TransactionRepository) Delete(_ context.Context, id, userID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	tx, ok := r.db.transactions[id]
	if !ok || tx.UserID != userID {
		return apperr.ErrNotFound
	}
	delete(r.db.transactions, id)
	return nil
}

type CategoryRepository struct{ db *DB }

func (r *CategoryRepository) FindByName(_ context.Context, name string) (*models.Category, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, c := range r.db.categories {
		if strings.EqualFold(c.Name, name) {
			return &c, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r *CategoryRepository) Create(_ context.Context, c *models.Category) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.categories = append(r.db.categories, *c)
	return nil
}

func (r *CategoryRepository) List(_ context.Context) ([]*models.Category, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]*models.Category, 0, len(r.db.categories))
	for _, c := range r.db.categories {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
