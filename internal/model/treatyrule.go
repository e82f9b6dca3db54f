package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SecurityType classifies the instrument a treaty rule applies to.
type SecurityType string

// Supported security types. EQUITY is the default used when a dividend
// does not carry an explicit classification.
const (
	SecurityTypeEquity SecurityType = "EQUITY"
	SecurityTypeBond   SecurityType = "BOND"
	SecurityTypeReit   SecurityType = "REIT"
	SecurityTypeFund   SecurityType = "FUND"
)

// TreatyRule holds the withholding rates agreed between two countries for a
// security type, valid for a date range. EffectiveTo nil means the rule is
// still active. Rules are inserted by the data-loading process and are
// read-only to the calculation path.
type TreatyRule struct {
	ID                       string           `json:"id"`
	SourceCountry            string           `json:"sourceCountry"`    // ISO 3166-1 alpha-2
	ResidenceCountry         string           `json:"residenceCountry"` // ISO 3166-1 alpha-2
	SecurityType             SecurityType     `json:"securityType"`
	StandardWithholdingRate  decimal.Decimal  `json:"standardWithholdingRate"` // percentage, e.g. 30.00
	TreatyRate               *decimal.Decimal `json:"treatyRate"`
	ReliefAtSourceAvailable  bool             `json:"reliefAtSourceAvailable"`
	RefundProcedureAvailable bool             `json:"refundProcedureAvailable"`
	EffectiveFrom            time.Time        `json:"effectiveFrom"`
	EffectiveTo              *time.Time       `json:"effectiveTo"`
	CreatedAt                time.Time        `json:"createdAt"`
}

// ActiveOn reports whether the rule covers the given reference date.
func (r TreatyRule) ActiveOn(date time.Time) bool {
	if date.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && date.After(*r.EffectiveTo) {
		return false
	}
	return true
}
