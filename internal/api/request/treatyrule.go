package request

import "github.com/shopspring/decimal"

// CreateTreatyRuleRequest ingests a treaty rule into the rule store.
type CreateTreatyRuleRequest struct {
	SourceCountry            string           `json:"sourceCountry"`
	ResidenceCountry         string           `json:"residenceCountry"`
	SecurityType             string           `json:"securityType,omitempty"` // defaults to EQUITY
	StandardWithholdingRate  decimal.Decimal  `json:"standardWithholdingRate"`
	TreatyRate               *decimal.Decimal `json:"treatyRate,omitempty"`
	ReliefAtSourceAvailable  bool             `json:"reliefAtSourceAvailable"`
	RefundProcedureAvailable bool             `json:"refundProcedureAvailable"`
	EffectiveFrom            string           `json:"effectiveFrom"`         // YYYY-MM-DD
	EffectiveTo              string           `json:"effectiveTo,omitempty"` // YYYY-MM-DD, empty = open-ended
}
