package request

import "github.com/shopspring/decimal"

// CreateDividendRequest registers a manually entered dividend.
type CreateDividendRequest struct {
	SecurityName    string          `json:"securityName"`
	Isin            string          `json:"isin"`
	PaymentDate     string          `json:"paymentDate"` // YYYY-MM-DD
	GrossAmount     decimal.Decimal `json:"grossAmount"`
	Currency        string          `json:"currency"`
	SourceCountry   string          `json:"sourceCountry,omitempty"` // derived from ISIN when empty
	WithholdingTax  decimal.Decimal `json:"withholdingTax"`
	WithholdingRate decimal.Decimal `json:"withholdingRate"`
}

// CalculateUserRequest triggers a batch calculation over the caller's
// unsubmitted dividends.
type CalculateUserRequest struct {
	ResidenceCountry string `json:"residenceCountry,omitempty"` // defaults to configured residence
	Persist          bool   `json:"persist,omitempty"`
}
