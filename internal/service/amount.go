package service

import (
	"fmt"
	"strings"

	"gestor-financiero/internal/apperr"
	"gestor-financiero/internal/money"

	"github.com/shopspring/decimal"
)

// NormalizeAmount turns an extracted or user supplied amount into a positive
// decimal with two places. Separators are read the same way the OCR
// extractor reads them, so "$12.500" is twelve thousand five hundred.
func NormalizeAmount(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", apperr.ErrInvalidAmount)
	}

	amount, ok := money.Parse(raw)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", apperr.ErrInvalidAmount, raw)
	}
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q must be positive", apperr.ErrInvalidAmount, raw)
	}
	return amount, nil
}
