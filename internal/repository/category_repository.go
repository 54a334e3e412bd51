package repository

import (
	"context"

	"gestor-financiero/internal/models"

	"github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

var categoryColumns = []string{"id", "name", "description", "color", "created_at"}

type PostgresCategoryRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewCategoryRepository(db DBTX, logger *zap.Logger) *PostgresCategoryRepository {
	return &PostgresCategoryRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PostgresCategoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	sql, args, err := findCategoryQuery(name).ToSql()
	if err != nil {
		return nil, err
	}

	var c models.Category
	err = r.db.QueryRow(ctx, sql, args...).Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func findCategoryQuery(name string) squirrel.SelectBuilder {
	return squirrel.Select(categoryColumns...).
		From("categories").
		Where(squirrel.Expr("LOWER(name) = LOWER(?)", name)).
		OrderBy("created_at ASC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar)
}

func (r *PostgresCategoryRepository) Create(ctx context.Context, c *models.Category) error {
	query := squirrel.Insert("categories").
		Columns(categoryColumns...).
		Values(c.ID, c.Name, c.Description, c.Color, c.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return mapError(err)
}

func (r *PostgresCategoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	query := squirrel.Select(categoryColumns...).
		From("categories").
		OrderBy("name ASC").
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

	categories := make([]*models.Category, 0)
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}
