package validation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/request"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
)

// ValidateCreateTreatyRule validates a treaty-rule ingestion request.
//
// Required fields:
//   - sourceCountry, residenceCountry: 2-letter codes
//   - standardWithholdingRate: 0..100
//   - effectiveFrom: YYYY-MM-DD
//
// Optional fields (validated if provided):
//   - securityType: known enum value
//   - treatyRate: 0..100
//   - effectiveTo: YYYY-MM-DD, not before effectiveFrom
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateCreateTreatyRule(req request.CreateTreatyRuleRequest) error {
	errors := make(map[string]string)

	if err := ValidateCountryCode(req.SourceCountry); err != nil {
		errors["sourceCountry"] = err.Error()
	}
	if err := ValidateCountryCode(req.ResidenceCountry); err != nil {
		errors["residenceCountry"] = err.Error()
	}

	if req.SecurityType != "" {
		switch model.SecurityType(strings.ToUpper(req.SecurityType)) {
		case model.SecurityTypeEquity, model.SecurityTypeBond, model.SecurityTypeReit, model.SecurityTypeFund:
		default:
			errors["securityType"] = "securityType must be one of EQUITY, BOND, REIT, FUND"
		}
	}

	hundred := decimal.NewFromInt(100)
	if req.StandardWithholdingRate.IsNegative() || req.StandardWithholdingRate.GreaterThan(hundred) {
		errors["standardWithholdingRate"] = "standardWithholdingRate must be between 0 and 100"
	}
	if req.TreatyRate != nil && (req.TreatyRate.IsNegative() || req.TreatyRate.GreaterThan(hundred)) {
		errors["treatyRate"] = "treatyRate must be between 0 and 100"
	}

	from, err := time.Parse("2006-01-02", req.EffectiveFrom)
	if err != nil {
		errors["effectiveFrom"] = err.Error()
	}
	if req.EffectiveTo != "" {
		to, err := time.Parse("2006-01-02", req.EffectiveTo)
		if err != nil {
			errors["effectiveTo"] = err.Error()
		} else if errors["effectiveFrom"] == "" && to.Before(from) {
			errors["effectiveTo"] = "effectiveTo must not be before effectiveFrom"
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
