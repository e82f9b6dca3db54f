package request

import (
	"github.com/shopspring/decimal"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/parser"
)

// CreateStatementRequest registers an uploaded broker statement.
type CreateStatementRequest struct {
	Broker        string `json:"broker"`
	SourceFileRef string `json:"sourceFileRef"`
	PeriodStart   string `json:"periodStart"` // YYYY-MM-DD
	PeriodEnd     string `json:"periodEnd"`   // YYYY-MM-DD
}

// TransitionStatementRequest advances a statement's lifecycle status.
// SentMethod is required when the target status is SENT; PaidAmount is
// optional for PAID.
type TransitionStatementRequest struct {
	Status     string           `json:"status"`
	SentMethod string           `json:"sentMethod,omitempty"`
	SentNotes  string           `json:"sentNotes,omitempty"`
	PaidAmount *decimal.Decimal `json:"paidAmount,omitempty"`
}

// ApplyParsedRequest is the parsing collaborator's callback payload: the
// dividend records extracted from the statement file.
type ApplyParsedRequest struct {
	Dividends []ParsedDividend `json:"dividends"`
	Broker    string           `json:"broker,omitempty"`
}

// ParsedDividend is one extracted dividend tuple.
type ParsedDividend struct {
	SecurityName    string          `json:"securityName"`
	Isin            string          `json:"isin"`
	PaymentDate     string          `json:"paymentDate"` // YYYY-MM-DD
	GrossAmount     decimal.Decimal `json:"grossAmount"`
	Currency        string          `json:"currency"`
	SourceCountry   string          `json:"sourceCountry,omitempty"`
	WithholdingTax  decimal.Decimal `json:"withholdingTax"`
	WithholdingRate decimal.Decimal `json:"withholdingRate"`
}

// ToRecord converts the request tuple into the parser-boundary record.
// The payment date must already be validated.
func (p ParsedDividend) ToRecord() parser.DividendRecord {
	date, _ := ParseDate(p.PaymentDate)
	return parser.DividendRecord{
		SecurityName:    p.SecurityName,
		Isin:            p.Isin,
		PaymentDate:     date,
		GrossAmount:     p.GrossAmount,
		Currency:        p.Currency,
		SourceCountry:   p.SourceCountry,
		WithholdingTax:  p.WithholdingTax,
		WithholdingRate: p.WithholdingRate,
	}
}
