package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dividend represents a single dividend payment extracted from a broker
// statement or entered manually. The calculation fields (WithholdingRate,
// TreatyRate, ReclaimableAmount) are filled by the reclaim calculator;
// FormID is set once the dividend has been included in a generated form.
type Dividend struct {
	ID                string           `json:"id"`
	OwnerUserID       string           `json:"ownerUserId"`
	StatementID       string           `json:"statementId,omitempty"` // empty if entered manually
	SecurityName      string           `json:"securityName"`
	Isin              string           `json:"isin"` // 12 characters, country prefix
	PaymentDate       time.Time        `json:"paymentDate"`
	GrossAmount       decimal.Decimal  `json:"grossAmount"`
	Currency          string           `json:"currency"`      // ISO 4217
	SourceCountry     string           `json:"sourceCountry"` // explicit, or derived from the ISIN prefix
	WithholdingTax    decimal.Decimal  `json:"withholdingTax"`
	WithholdingRate   decimal.Decimal  `json:"withholdingRate"` // percentage
	TreatyRate        *decimal.Decimal `json:"treatyRate"`
	ReclaimableAmount *decimal.Decimal `json:"reclaimableAmount"`
	FormID            string           `json:"formId,omitempty"` // empty until bundled into a generated form
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// Submitted reports whether the dividend is already attached to a generated
// form. Submitted dividends cannot be deleted or recalculated into another
// form.
func (d Dividend) Submitted() bool {
	return d.FormID != ""
}
