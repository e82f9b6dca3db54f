package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// csvColumns are the mandatory header columns of a CSV statement export.
// sourceCountry is optional; when absent or blank the service derives it
// from the ISIN prefix.
var csvColumns = []string{
	"securityname",
	"isin",
	"paymentdate",
	"grossamount",
	"currency",
	"withholdingtax",
	"withholdingrate",
}

// CSV parses broker statements exported as CSV, one dividend per row under a
// header line. It implements StatementParser for brokers whose exports need
// no OCR.
type CSV struct{}

// NewCSV creates a CSV statement parser.
func NewCSV() *CSV {
	return &CSV{}
}

// Parse reads the whole file. Any malformed row fails the parse with its
// line number; a statement is ingested completely or not at all.
func (p *CSV) Parse(_ context.Context, fileBytes []byte) (ParseResult, error) {
	r := csv.NewReader(bytes.NewReader(fileBytes))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return ParseResult{}, fmt.Errorf("failed to read CSV header: %w", err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return ParseResult{}, err
	}

	var result ParseResult
	line := 1
	for {
		line++
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ParseResult{}, fmt.Errorf("line %d: %w", line, err)
		}

		record, err := parseRow(rec, idx)
		if err != nil {
			return ParseResult{}, fmt.Errorf("line %d: %w", line, err)
		}
		result.Dividends = append(result.Dividends, record)
	}

	return result, nil
}

// columnIndex maps header names (case-insensitive) to their position and
// verifies every mandatory column is present.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range csvColumns {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing CSV column %q", name)
		}
	}
	return idx, nil
}

func parseRow(rec []string, idx map[string]int) (DividendRecord, error) {
	field := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	paymentDate, err := time.Parse("2006-01-02", field("paymentdate"))
	if err != nil {
		return DividendRecord{}, fmt.Errorf("paymentDate: %w", err)
	}
	gross, err := decimal.NewFromString(field("grossamount"))
	if err != nil {
		return DividendRecord{}, fmt.Errorf("grossAmount: %w", err)
	}
	withheld, err := decimal.NewFromString(field("withholdingtax"))
	if err != nil {
		return DividendRecord{}, fmt.Errorf("withholdingTax: %w", err)
	}
	rate, err := decimal.NewFromString(field("withholdingrate"))
	if err != nil {
		return DividendRecord{}, fmt.Errorf("withholdingRate: %w", err)
	}

	return DividendRecord{
		SecurityName:    field("securityname"),
		Isin:            strings.ToUpper(field("isin")),
		PaymentDate:     paymentDate,
		GrossAmount:     gross,
		Currency:        strings.ToUpper(field("currency")),
		SourceCountry:   strings.ToUpper(field("sourcecountry")),
		WithholdingTax:  withheld,
		WithholdingRate: rate,
	}, nil
}
