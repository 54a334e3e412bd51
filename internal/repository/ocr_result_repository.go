package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gestor-financiero/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PostgresOCRResultRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewOCRResultRepository(db DBTX, logger *zap.Logger) *PostgresOCRResultRepository {
	return &PostgresOCRResultRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresOCRResultRepository) Create(ctx context.Context, result *models.OCRResult) error {
	data, err := json.Marshal(result.ExtractedData)
	if err != nil {
		return fmt.Errorf("failed to encode extracted data: %w", err)
	}

	query := squirrel.Insert("ocr_results").
		Columns("id", "document_id", "full_text", "extracted_data", "confidence", "created_at").
		Values(result.ID, result.DocumentID, result.FullText, string(data), result.Confidence, result.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return mapError(err)
}

func (r *PostgresOCRResultRepository) Latest(ctx context.Context, documentID uuid.UUID) (*models.OCRResult, error) {
	sql, args, err := latestOCRResultQuery(documentID).ToSql()
	if err != nil {
		return nil, err
	}

	var (
		result models.OCRResult
		data   []byte
	)
	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&result.ID, &result.DocumentID, &result.FullText, &data, &result.Confidence, &result.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &result.ExtractedData); err != nil {
			r.logger.Warn("Stored extracted data is not valid JSON",
				zap.String("document_id", documentID.String()), zap.Error(err))
		}
	}

	return &result, nil
}

func latestOCRResultQuery(documentID uuid.UUID) squirrel.SelectBuilder {
	return squirrel.Select("id", "document_id", "full_text", "extracted_data::text", "confidence::float8", "created_at").
		From("ocr_results").
		Where(squirrel.Eq{"document_id": documentID}).
		OrderBy("created_at DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)
}
