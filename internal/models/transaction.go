package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionExpense TransactionType = "expense"
	TransactionIncome  TransactionType = "income"
)

func (t TransactionType) Valid() bool {
	return t == TransactionExpense || t == TransactionIncome
}

type TransactionSource string

const (
	SourceOCR    TransactionSource = "ocr"
	SourceManual TransactionSource = "manual"
)

type Transaction struct {
	ID          uuid.UUID         `db:"id"`
	UserID      uuid.UUID         `db:"user_id"`
	DocumentID  *uuid.UUID        `db:"document_id"`
	Amount      decimal.Decimal   `db:"amount"`
	Date        time.Time         `db:"date"`
	Description string            `db:"description"`
	CategoryID  *uuid.UUID        `db:"category_id"`
	Type        TransactionType   `db:"transaction_type"`
	Source      TransactionSource `db:"source"`
	Verified    bool              `db:"verified"`
	CreatedAt   time.Time         `db:"created_at"`

	// Filled by list queries joining categories.
	CategoryName  string `db:"category_name"`
	CategoryColor string `db:"category_color"`
}

type Category struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Color       string    `db:"color"`
	CreatedAt   time.Time `db:"created_at"`
}
