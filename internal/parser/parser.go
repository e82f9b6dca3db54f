// Package parser defines the boundary to the external statement-parsing
// collaborator. The core never inspects statement file bytes itself; it
// consumes the structured dividend records the parser produces.
package parser

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DividendRecord is one dividend tuple extracted from a broker statement.
type DividendRecord struct {
	SecurityName    string          `json:"securityName"`
	Isin            string          `json:"isin"`
	PaymentDate     time.Time       `json:"paymentDate"`
	GrossAmount     decimal.Decimal `json:"grossAmount"`
	Currency        string          `json:"currency"`
	SourceCountry   string          `json:"sourceCountry,omitempty"` // derived from the ISIN prefix when empty
	WithholdingTax  decimal.Decimal `json:"withholdingTax"`
	WithholdingRate decimal.Decimal `json:"withholdingRate"`
}

// Metadata carries statement-level facts the parser recognized.
type Metadata struct {
	Broker      string    `json:"broker,omitempty"`
	PeriodStart time.Time `json:"periodStart,omitzero"`
	PeriodEnd   time.Time `json:"periodEnd,omitzero"`
}

// ParseResult is the parser's complete output for one statement file.
type ParseResult struct {
	Dividends []DividendRecord `json:"dividends"`
	Metadata  Metadata         `json:"metadata"`
}

// StatementParser turns a scanned broker statement into structured dividend
// records. Implementations live outside the core (OCR/PDF extraction
// services); the core only depends on this interface.
type StatementParser interface {
	Parse(ctx context.Context, fileBytes []byte) (ParseResult, error)
}

// Func adapts an ordinary function to the StatementParser interface.
type Func func(ctx context.Context, fileBytes []byte) (ParseResult, error)

// Parse implements StatementParser.
func (f Func) Parse(ctx context.Context, fileBytes []byte) (ParseResult, error) {
	return f(ctx, fileBytes)
}
