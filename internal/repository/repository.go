// Package repository defines the persistence interfaces used by the services
// and their PostgreSQL implementations. An in-memory implementation lives in
// the memory subpackage.
package repository

import (
	"context"
	"errors"
	"fmt"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	// GetByEmail compares emails case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	// GetForUser returns ErrNotFound when the document exists but belongs to
	// another user.
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Document, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Document, error)
	// Transition moves a document to `to` if its current status allows it.
	// It returns ErrNotFound for a missing document and ErrInvalidTransition
	// when the current status forbids the move.
	Transition(ctx context.Context, id uuid.UUID, to models.DocumentStatus, ocrProcessed bool) error
	// Delete removes the document and its OCR results.
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type OCRResultRepository interface {
	Create(ctx context.Context, result *models.OCRResult) error
	Latest(ctx context.Context, documentID uuid.UUID) (*models.OCRResult, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	// ListByUser returns the newest transactions first with category fields joined.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type CategoryRepository interface {
	// FindByName matches case-insensitively and returns the oldest match.
	FindByName(ctx context.Context, name string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	List(ctx context.Context) ([]*models.Category, error)
}

// Set groups the repositories of one backend.
type Set struct {
	Users        UserRepository
	Documents    DocumentRepository
	OCRResults   OCRResultRepository
	Transactions TransactionRepository
	Categories   CategoryRepository
}

// NewPostgresSet wires every repository to the same pool.
func NewPostgresSet(db DBTX, logger *zap.Logger) *Set {
	return &Set{
		Users:        NewUserRepository(db, logger),
		Documents:    NewDocumentRepository(db, logger),
		OCRResults:   NewOCRResultRepository(db, logger),
		Transactions: NewTransactionRepository(db, logger),
		Categories:   NewCategoryRepository(db, logger),
	}
}

// DBTX is the subset of pgxpool.Pool the repositories need.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolation = "23505"

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, pgErr.ConstraintName)
	}
	return err
}
