package validation

import (
	"strings"
	"time"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/request"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
)

// ValidateGenerateForm validates a form-generation request. Type-specific
// preconditions (complete profile, non-empty dividend list) are checked
// before any I/O is attempted.
func ValidateGenerateForm(req request.GenerateFormRequest) error {
	errors := make(map[string]string)

	formType := model.FormType(strings.ToUpper(req.FormType))
	switch formType {
	case model.FormTypeResidencyCert, model.FormTypeDividendSchedule, model.FormTypeBundle:
	default:
		errors["formType"] = "formType must be one of RESIDENCY_CERT, DIVIDEND_SCHEDULE, BUNDLE"
	}

	currentYear := time.Now().Year()
	if req.TaxYear < 2000 || req.TaxYear > currentYear {
		errors["taxYear"] = "taxYear must be between 2000 and the current year"
	}

	if formType == model.FormTypeDividendSchedule || formType == model.FormTypeBundle {
		if len(req.DividendIDs) == 0 {
			errors["dividendIds"] = "dividendIds is required for schedule and bundle forms"
		}
	}
	for _, id := range req.DividendIDs {
		if err := ValidateUUID(id); err != nil {
			errors["dividendIds"] = err.Error()
			break
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

// ValidateUpsertProfile validates a profile update.
func ValidateUpsertProfile(req request.UpsertProfileRequest) error {
	errors := make(map[string]string)

	if req.CountryOfResidence != "" {
		if err := ValidateCountryCode(req.CountryOfResidence); err != nil {
			errors["countryOfResidence"] = err.Error()
		}
	}
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		errors["email"] = "email address is invalid"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}
