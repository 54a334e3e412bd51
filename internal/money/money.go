// Package money reads amounts as they appear on Chilean and US receipts.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencyMarks = strings.NewReplacer(
	"CLP", "", "USD", "", "EUR", "", "$", "", "€", "", "£", "",
	" ", "", " ", "", "\t", "",
)

// Parse strips currency marks and reads "1.234.567", "1,234.56", "1.234,56"
// and plain numbers. When both separators appear the last one is decimal. A
// lone separator followed by exactly three digits groups thousands, unless
// the leading group cannot start a grouped number ("0.004", "1234.567").
// The sign is kept; callers decide whether zero or negatives are allowed.
func Parse(raw string) (decimal.Decimal, bool) {
	s := currencyMarks.Replace(strings.ToUpper(strings.TrimSpace(raw)))
	s = strings.Trim(s, ".,")
	if s == "" {
		return decimal.Zero, false
	}

	lastDot, lastComma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		s = singleSeparator(s, ".")
	case lastComma >= 0:
		s = singleSeparator(s, ",")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func singleSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	if len(parts) > 2 || (len(parts[1]) == 3 && leadsGroup(parts[0])) {
		return strings.Join(parts, "")
	}
	return strings.Join(parts, ".")
}

// leadsGroup reports whether head can be the first group of a
// thousands-separated number: one to three digits, no leading zero.
func leadsGroup(head string) bool {
	head = strings.TrimLeft(head, "+-")
	return len(head) >= 1 && len(head) <= 3 && head[0] != '0'
}
