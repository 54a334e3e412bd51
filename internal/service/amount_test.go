package service

import (
	"testing"
	"time"

	"gestor-financiero/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"$1,234.56", "1234.56"},
		{"1234.567", "1234.57"},
		{"CLP 45.990", "45990"},
		{"$12.500", "12500"},
		{"1.234,56", "1234.56"},
		{"0.005", "0.01"},
		{"1.234.567", "1234567"},
		{" 990 ", "990"},
		{"usd 12", "12"},
	}
	for _, tt := range tests {
		got, err := NormalizeAmount(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got.String(), tt.raw)
	}
}

func TestNormalizeAmount_Invalid(t *testing.T) {
	for _, raw := range []string{"", "abc", "0", "-5", "$", "0.004", "0,001"} {
		_, err := NormalizeAmount(raw)
		assert.ErrorIs(t, err, apperr.ErrInvalidAmount, raw)
	}
}

func TestParseDate(t *testing.T) {
	fallback := time.Date(2024, 6, 30, 15, 4, 5, 0, time.UTC)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-03-12", day(2024, 3, 12)},
		{"12/03/2024", day(2024, 3, 12)},
		{"5-3-2024", day(2024, 3, 5)},
		{"12/03/24", day(2024, 3, 12)},
		{"5 de marzo de 2024", day(2024, 3, 5)},
		{"", day(2024, 6, 30)},
		{"mañana", day(2024, 6, 30)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseDate(tt.raw, fallback), tt.raw)
	}
}
