package validation

import (
	"strings"
	"time"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/request"
)

// ValidateCreateDividend validates a manual dividend entry.
//
// Required fields:
//   - isin: valid 12-character ISIN
//   - paymentDate: YYYY-MM-DD
//   - currency: 3-letter code
//   - grossAmount, withholdingTax: non-negative
//
// Optional fields (validated if provided):
//   - sourceCountry: 2-letter code; derived from the ISIN prefix when absent
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateCreateDividend(req request.CreateDividendRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.SecurityName) == "" {
		errors["securityName"] = "securityName is required"
	}

	if err := ValidateIsin(strings.ToUpper(req.Isin)); err != nil {
		errors["isin"] = err.Error()
	}

	if _, err := time.Parse("2006-01-02", req.PaymentDate); err != nil {
		errors["paymentDate"] = err.Error()
	}

	if err := ValidateCurrency(req.Currency); err != nil {
		errors["currency"] = err.Error()
	}

	if req.SourceCountry != "" {
		if err := ValidateCountryCode(req.SourceCountry); err != nil {
			errors["sourceCountry"] = err.Error()
		}
	}

	if req.GrossAmount.IsNegative() {
		errors["grossAmount"] = "grossAmount cannot be negative"
	}
	if req.WithholdingTax.IsNegative() {
		errors["withholdingTax"] = "withholdingTax cannot be negative"
	}
	if req.WithholdingRate.IsNegative() {
		errors["withholdingRate"] = "withholdingRate cannot be negative"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
