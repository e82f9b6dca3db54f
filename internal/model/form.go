package model

import "time"

// FormType identifies which official document a generated form contains.
type FormType string

const (
	FormTypeResidencyCert    FormType = "RESIDENCY_CERT"
	FormTypeDividendSchedule FormType = "DIVIDEND_SCHEDULE"
	FormTypeBundle           FormType = "BUNDLE"
)

// FormStatus is the lifecycle state of a generated form artifact.
type FormStatus string

const (
	FormStatusGenerated FormStatus = "GENERATED"
	FormStatusExpired   FormStatus = "EXPIRED"
)

// GeneratedForm is one rendered tax document (or bundle) stored in object
// storage. It owns the dividends it was generated from via dividend.form_id;
// deleting the form releases those dividends and removes the stored artifact.
type GeneratedForm struct {
	ID          string     `json:"id"`
	OwnerUserID string     `json:"ownerUserId"`
	StorageKey  string     `json:"-"` // internal storage location, never exposed
	FileName    string     `json:"fileName"`
	TaxYear     int        `json:"taxYear"`
	FormType    FormType   `json:"formType"`
	Status      FormStatus `json:"status"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}
