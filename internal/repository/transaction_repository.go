package repository

import (
	"context"
	"fmt"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PostgresTransactionRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewTransactionRepository(db DBTX, logger *zap.Logger) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	query := squirrel.Insert("transactions").
		Columns("id", "user_id", "document_id", "amount", "date", "description", "category_id",
			"transaction_type", "source", "verified", "created_at").
		Values(tx.ID, tx.UserID, tx.DocumentID, tx.Amount.String(), tx.Date, tx.Description, tx.CategoryID,
			string(tx.Type), string(tx.Source), tx.Verified, tx.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return mapError(err)
}

func (r *PostgresTransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error) {
	sql, args, err := listTransactionsQuery(userID).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]*models.Transaction, 0)
	for rows.Next() {
		var (
			tx     models.Transaction
			amount string
		)
		if err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.DocumentID, &amount, &tx.Date, &tx.Description, &tx.CategoryID,
			&tx.Type, &tx.Source, &tx.Verified, &tx.CreatedAt, &tx.CategoryName, &tx.CategoryColor,
		); err != nil {
			return nil, err
		}
		tx.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored amount %q: %w", amount, err)
		}
		transactions = append(transactions, &tx)
	}

	return transactions, rows.Err()
}

func listTransactionsQuery(userID uuid.UUID) squirrel.SelectBuilder {
	return squirrel.Select(
		"t.id", "t.user_id", "t.document_id", "t.amount::text", "t.date", "t.description", "t.category_id",
		"t.transaction_type", "t.source", "t.verified", "t.created_at",
		"COALESCE(c.name, '')", "COALESCE(c.color, '')",
	).
		From("transactions t").
		LeftJoin("categories c ON c.id = t.category_id").
		Where(squirrel.Eq{"t.user_id": userID}).
		OrderBy("t.date DESC", "t.created_at DESC").
		PlaceholderFormat(squirrel.Dollar)
}

func (r *PostgresTransactionRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := squirrel.Delete("transactions").
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
