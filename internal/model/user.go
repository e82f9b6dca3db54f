package model

import "time"

// UserProfile carries the identity data projected onto tax forms. It is
// supplied by the identity collaborator and trusted as-is; the tax ID is
// encrypted at rest by the repository layer.
type UserProfile struct {
	UserID             string    `json:"userId"`
	FirstName          string    `json:"firstName"`
	LastName           string    `json:"lastName"`
	Street             string    `json:"street"`
	PostalCode         string    `json:"postalCode"`
	City               string    `json:"city"`
	Canton             string    `json:"canton"`
	CountryOfResidence string    `json:"countryOfResidence"` // ISO 3166-1 alpha-2, defaults to CH
	TaxID              string    `json:"taxId"`
	Email              string    `json:"email"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Complete reports whether the profile carries the minimum identity needed
// for a residency certificate: name, address and country of residence.
func (p UserProfile) Complete() bool {
	return p.FirstName != "" && p.LastName != "" &&
		p.Street != "" && p.City != "" && p.CountryOfResidence != ""
}

// FullName returns the display name used on forms.
func (p UserProfile) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	return p.FirstName + " " + p.LastName
}
