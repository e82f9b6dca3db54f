package validation

import (
	"strconv"
	"strings"
	"time"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/request"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
)

// ValidateCreateStatement validates a statement registration request.
//
// Required fields:
//   - periodStart, periodEnd: YYYY-MM-DD, start not after end
//
// Optional fields: broker, sourceFileRef.
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateCreateStatement(req request.CreateStatementRequest) error {
	errors := make(map[string]string)

	start, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		errors["periodStart"] = err.Error()
	}
	end, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		errors["periodEnd"] = err.Error()
	}
	if len(errors) == 0 && start.After(end) {
		errors["periodStart"] = "periodStart must not be after periodEnd"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

// ValidateTransitionStatement validates a status-transition request.
// The target status must be a known lifecycle state; sentMethod, when
// provided, must be a known method; paidAmount must not be negative.
// Whether the transition itself is legal is decided by the workflow, not here.
func ValidateTransitionStatement(req request.TransitionStatementRequest) error {
	errors := make(map[string]string)

	switch model.StatementStatus(strings.ToUpper(req.Status)) {
	case model.StatementUploaded, model.StatementParsing, model.StatementParsed,
		model.StatementValidated, model.StatementSent, model.StatementPaid:
	default:
		errors["status"] = "unknown statement status"
	}

	if req.SentMethod != "" {
		switch model.SentMethod(strings.ToUpper(req.SentMethod)) {
		case model.SentMethodEmail, model.SentMethodPostal, model.SentMethodOnline:
		default:
			errors["sentMethod"] = "sentMethod must be one of EMAIL, POSTAL, ONLINE"
		}
	}

	if req.PaidAmount != nil && req.PaidAmount.IsNegative() {
		errors["paidAmount"] = "paidAmount cannot be negative"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

// ValidateApplyParsed validates the parsing collaborator's callback payload.
// Each record needs a valid ISIN, payment date, currency and non-negative
// amounts.
func ValidateApplyParsed(req request.ApplyParsedRequest) error {
	errors := make(map[string]string)

	if len(req.Dividends) == 0 {
		errors["dividends"] = "at least one dividend record is required"
	}

	for i, rec := range req.Dividends {
		field := func(name string) string {
			return "dividends[" + strconv.Itoa(i) + "]." + name
		}
		if err := ValidateIsin(strings.ToUpper(rec.Isin)); err != nil {
			errors[field("isin")] = err.Error()
		}
		if _, err := time.Parse("2006-01-02", rec.PaymentDate); err != nil {
			errors[field("paymentDate")] = err.Error()
		}
		if err := ValidateCurrency(rec.Currency); err != nil {
			errors[field("currency")] = err.Error()
		}
		if rec.SourceCountry != "" {
			if err := ValidateCountryCode(rec.SourceCountry); err != nil {
				errors[field("sourceCountry")] = err.Error()
			}
		}
		if rec.GrossAmount.IsNegative() {
			errors[field("grossAmount")] = "grossAmount cannot be negative"
		}
		if rec.WithholdingTax.IsNegative() {
			errors[field("withholdingTax")] = "withholdingTax cannot be negative"
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
