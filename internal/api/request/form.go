package request

// GenerateFormRequest asks for a tax-form document to be generated.
// DividendIDs is required for DIVIDEND_SCHEDULE and BUNDLE forms.
type GenerateFormRequest struct {
	FormType    string   `json:"formType"`
	TaxYear     int      `json:"taxYear"`
	DividendIDs []string `json:"dividendIds,omitempty"`
}

// UpsertProfileRequest creates or updates the caller's profile.
type UpsertProfileRequest struct {
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	Street             string `json:"street"`
	PostalCode         string `json:"postalCode"`
	City               string `json:"city"`
	Canton             string `json:"canton"`
	CountryOfResidence string `json:"countryOfResidence"`
	TaxID              string `json:"taxId"`
	Email              string `json:"email"`
}
