package service_test

import (
	"time"

	"github.com/shopspring/decimal"
)

// date parses a YYYY-MM-DD test date. Panics on malformed input so broken
// test data fails loudly.
func date(s string) time.Time {
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic("invalid test date: " + s)
	}
	return parsed
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
