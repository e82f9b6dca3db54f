package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ParseTime parses a date string in "2006-01-02" or RFC3339 format.
// Mirrors validation.ParseTime; kept local to avoid a cross-layer import.
func ParseTime(str string) (time.Time, error) {
	returnTime, err := time.Parse("2006-01-02", str)
	if err != nil {
		returnTime, err = time.Parse(time.RFC3339, str)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse date: %w", err)
		}
	}
	return returnTime.UTC(), nil
}

// ParseDecimal parses a monetary TEXT column into a decimal. Amounts are
// stored as decimal strings, never as binary floats.
func ParseDecimal(str string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse decimal %q: %w", str, err)
	}
	return d, nil
}

// parseNullDecimal parses a nullable monetary TEXT column.
func parseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := ParseDecimal(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseNullTime parses a nullable date TEXT column.
func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := ParseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullDecimalString converts an optional decimal into its stored form.
func nullDecimalString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// nullTimeString converts an optional timestamp into its stored form.
func nullTimeString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// nullString converts an empty string into NULL for nullable foreign keys.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
