package repository

import (
	"context"
	"fmt"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var documentColumns = []string{
	"id", "user_id", "filename", "original_filename", "mimetype", "size",
	"bucket_name", "object_name", "status", "ocr_processed", "created_at", "updated_at",
}

type PostgresDocumentRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewDocumentRepository(db DBTX, logger *zap.Logger) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := squirrel.Insert("documents").
		Columns(documentColumns...).
		Values(doc.ID, doc.UserID, doc.Filename, doc.OriginalFilename, doc.Mimetype, doc.Size,
			doc.BucketName, doc.ObjectName, string(doc.Status), doc.OCRProcessed, doc.CreatedAt, doc.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return mapError(err)
}

func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

func (r *PostgresDocumentRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Document, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id, "user_id": userID})
}

func (r *PostgresDocumentRepository) getOne(ctx context.Context, where squirrel.Eq) (*models.Document, error) {
	query := squirrel.Select(documentColumns...).
		From("documents").
		Where(where).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var doc models.Document
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&doc.ID, &doc.UserID, &doc.Filename, &doc.OriginalFilename, &doc.Mimetype, &doc.Size,
		&doc.BucketName, &doc.ObjectName, &doc.Status, &doc.OCRProcessed, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	return &doc, nil
}

func (r *PostgresDocumentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Document, error) {
	query := squirrel.Select(documentColumns...).
		From("documents").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	documents := make([]*models.Document, 0)
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(
			&doc.ID, &doc.UserID, &doc.Filename, &doc.OriginalFilename, &doc.Mimetype, &doc.Size,
			&doc.BucketName, &doc.ObjectName, &doc.Status, &doc.OCRProcessed, &doc.CreatedAt, &doc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		documents = append(documents, &doc)
	}

	return documents, rows.Err()
}

func (r *PostgresDocumentRepository) Transition(ctx context.Context, id uuid.UUID, to models.DocumentStatus, ocrProcessed bool) error {
	sql, args, err := transitionQuery(id, to, ocrProcessed).ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, current.Status, to)
}

func transitionQuery(id uuid.UUID, to models.DocumentStatus, ocrProcessed bool) squirrel.UpdateBuilder {
	from := make([]string, 0, len(models.AllowedFrom(to)))
	for _, s := range models.AllowedFrom(to) {
		from = append(from, string(s))
	}

	return squirrel.Update("documents").
		Set("status", string(to)).
		Set("ocr_processed", ocrProcessed).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id, "status": from}).
		PlaceholderFormat(squirrel.Dollar)
}

// Delete relies on ON DELETE CASCADE for ocr_results.
func (r *PostgresDocumentRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := squirrel.Delete("documents").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
