package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
)

// TreatyRuleBuilder provides a fluent interface for creating test treaty rules.
//
// Example usage:
//
//	// Simple creation with defaults (US -> CH equity, 30% standard, 15% treaty)
//	rule := testutil.NewTreatyRule().Build(t, db)
//
//	// Customized rule
//	rule := testutil.NewTreatyRule().
//	    WithCountries("DE", "CH").
//	    WithTreatyRate("26.375", "15").
//	    WithValidity("2020-01-01", "2024-12-31").
//	    Build(t, db)
type TreatyRuleBuilder struct {
	ID                       string
	SourceCountry            string
	ResidenceCountry         string
	SecurityType             model.SecurityType
	StandardWithholdingRate  decimal.Decimal
	TreatyRate               *decimal.Decimal
	ReliefAtSourceAvailable  bool
	RefundProcedureAvailable bool
	EffectiveFrom            time.Time
	EffectiveTo              *time.Time
}

// NewTreatyRule creates a TreatyRuleBuilder with sensible defaults.
func NewTreatyRule() *TreatyRuleBuilder {
	treaty := decimal.RequireFromString("15")
	return &TreatyRuleBuilder{
		ID:                       MakeID(),
		SourceCountry:            "US",
		ResidenceCountry:         "CH",
		SecurityType:             model.SecurityTypeEquity,
		StandardWithholdingRate:  decimal.RequireFromString("30"),
		TreatyRate:               &treaty,
		RefundProcedureAvailable: true,
		EffectiveFrom:            time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// WithID sets a custom ID.
func (b *TreatyRuleBuilder) WithID(id string) *TreatyRuleBuilder {
	b.ID = id
	return b
}

// WithCountries sets the source and residence country pair.
func (b *TreatyRuleBuilder) WithCountries(source, residence string) *TreatyRuleBuilder {
	b.SourceCountry = source
	b.ResidenceCountry = residence
	return b
}

// WithSecurityType sets the security type.
func (b *TreatyRuleBuilder) WithSecurityType(securityType model.SecurityType) *TreatyRuleBuilder {
	b.SecurityType = securityType
	return b
}

// WithTreatyRate sets the standard and treaty withholding rates.
func (b *TreatyRuleBuilder) WithTreatyRate(standard, treaty string) *TreatyRuleBuilder {
	b.StandardWithholdingRate = decimal.RequireFromString(standard)
	rate := decimal.RequireFromString(treaty)
	b.TreatyRate = &rate
	return b
}

// WithoutTreatyRate clears the treaty rate (treaty grants no reduction).
func (b *TreatyRuleBuilder) WithoutTreatyRate() *TreatyRuleBuilder {
	b.TreatyRate = nil
	return b
}

// WithValidity sets the validity range. effectiveTo may be empty for an
// open-ended rule.
func (b *TreatyRuleBuilder) WithValidity(effectiveFrom, effectiveTo string) *TreatyRuleBuilder {
	b.EffectiveFrom = mustParseDate(effectiveFrom)
	if effectiveTo == "" {
		b.EffectiveTo = nil
	} else {
		to := mustParseDate(effectiveTo)
		b.EffectiveTo = &to
	}
	return b
}

// Build creates the treaty rule in the database and returns it.
func (b *TreatyRuleBuilder) Build(t *testing.T, db *sql.DB) model.TreatyRule {
	t.Helper()

	query := `
		INSERT INTO treaty_rule (id, source_country, residence_country, security_type,
			standard_withholding_rate, treaty_rate, relief_at_source_available,
			refund_procedure_available, effective_from, effective_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var treatyRate any
	if b.TreatyRate != nil {
		treatyRate = b.TreatyRate.String()
	}
	var effectiveTo any
	if b.EffectiveTo != nil {
		effectiveTo = b.EffectiveTo.UTC().Format("2006-01-02")
	}

	createdAt := time.Now().UTC()
	_, err := db.Exec(query, b.ID, b.SourceCountry, b.ResidenceCountry, string(b.SecurityType),
		b.StandardWithholdingRate.String(), treatyRate, b.ReliefAtSourceAvailable,
		b.RefundProcedureAvailable, b.EffectiveFrom.UTC().Format("2006-01-02"), effectiveTo,
		createdAt.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("Failed to create test treaty rule: %v", err)
	}

	return model.TreatyRule{
		ID:                       b.ID,
		SourceCountry:            b.SourceCountry,
		ResidenceCountry:         b.ResidenceCountry,
		SecurityType:             b.SecurityType,
		StandardWithholdingRate:  b.StandardWithholdingRate,
		TreatyRate:               b.TreatyRate,
		ReliefAtSourceAvailable:  b.ReliefAtSourceAvailable,
		RefundProcedureAvailable: b.RefundProcedureAvailable,
		EffectiveFrom:            b.EffectiveFrom,
		EffectiveTo:              b.EffectiveTo,
		CreatedAt:                createdAt,
	}
}

// ProfileBuilder provides a fluent interface for creating test user profiles.
//
// Example usage:
//
//	profile := testutil.NewProfile().WithUserID(userID).Build(t, db)
type ProfileBuilder struct {
	UserID             string
	FirstName          string
	LastName           string
	Street             string
	PostalCode         string
	City               string
	Canton             string
	CountryOfResidence string
	TaxID              string
	Email              string
}

// NewProfile creates a ProfileBuilder with a complete default profile.
func NewProfile() *ProfileBuilder {
	return &ProfileBuilder{
		UserID:             MakeID(),
		FirstName:          "Anna",
		LastName:           "Meier",
		Street:             "Bahnhofstrasse 1",
		PostalCode:         "8001",
		City:               "Zurich",
		Canton:             "ZH",
		CountryOfResidence: "CH",
		TaxID:              "756.1234.5678.97",
		Email:              "anna.meier@example.com",
	}
}

// WithUserID sets a custom user ID.
func (b *ProfileBuilder) WithUserID(userID string) *ProfileBuilder {
	b.UserID = userID
	return b
}

// WithName sets the first and last name.
func (b *ProfileBuilder) WithName(first, last string) *ProfileBuilder {
	b.FirstName = first
	b.LastName = last
	return b
}

// WithResidence sets the country of residence.
func (b *ProfileBuilder) WithResidence(country string) *ProfileBuilder {
	b.CountryOfResidence = country
	return b
}

// Incomplete blanks the name and address fields so the profile fails the
// completeness check.
func (b *ProfileBuilder) Incomplete() *ProfileBuilder {
	b.FirstName = ""
	b.LastName = ""
	b.Street = ""
	b.City = ""
	return b
}

// Build creates the profile in the database and returns it.
func (b *ProfileBuilder) Build(t *testing.T, db *sql.DB) model.UserProfile {
	t.Helper()

	query := `
		INSERT INTO user_profile (user_id, first_name, last_name, street, postal_code,
			city, canton, country_of_residence, tax_id, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	_, err := db.Exec(query, b.UserID, b.FirstName, b.LastName, b.Street, b.PostalCode,
		b.City, b.Canton, b.CountryOfResidence, b.TaxID, b.Email,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("Failed to create test profile: %v", err)
	}

	return model.UserProfile{
		UserID:             b.UserID,
		FirstName:          b.FirstName,
		LastName:           b.LastName,
		Street:             b.Street,
		PostalCode:         b.PostalCode,
		City:               b.City,
		Canton:             b.Canton,
		CountryOfResidence: b.CountryOfResidence,
		TaxID:              b.TaxID,
		Email:              b.Email,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// StatementBuilder provides a fluent interface for creating test statements.
//
// Example usage:
//
//	statement := testutil.NewStatement().WithOwner(userID).WithStatus(model.StatementParsed).Build(t, db)
type StatementBuilder struct {
	ID          string
	OwnerUserID string
	Broker      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Status      model.StatementStatus
}

// NewStatement creates a StatementBuilder with sensible defaults.
func NewStatement() *StatementBuilder {
	return &StatementBuilder{
		ID:          MakeID(),
		OwnerUserID: MakeID(),
		Broker:      "Test Broker",
		PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:      model.StatementUploaded,
	}
}

// WithID sets a custom ID.
func (b *StatementBuilder) WithID(id string) *StatementBuilder {
	b.ID = id
	return b
}

// WithOwner sets the owning user.
func (b *StatementBuilder) WithOwner(userID string) *StatementBuilder {
	b.OwnerUserID = userID
	return b
}

// WithStatus sets the lifecycle status.
func (b *StatementBuilder) WithStatus(status model.StatementStatus) *StatementBuilder {
	b.Status = status
	return b
}

// Build creates the statement in the database and returns it.
func (b *StatementBuilder) Build(t *testing.T, db *sql.DB) model.DividendStatement {
	t.Helper()

	query := `
		INSERT INTO dividend_statement (id, owner_user_id, source_file_ref, broker,
			period_start, period_end, status, dividend_count, total_gross_amount,
			total_reclaimable, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, '0', '0', ?, ?)
	`

	now := time.Now().UTC()
	_, err := db.Exec(query, b.ID, b.OwnerUserID, "statements/"+b.ID+".pdf", b.Broker,
		b.PeriodStart.Format("2006-01-02"), b.PeriodEnd.Format("2006-01-02"),
		string(b.Status), now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("Failed to create test statement: %v", err)
	}

	return model.DividendStatement{
		ID:               b.ID,
		OwnerUserID:      b.OwnerUserID,
		SourceFileRef:    "statements/" + b.ID + ".pdf",
		Broker:           b.Broker,
		PeriodStart:      b.PeriodStart,
		PeriodEnd:        b.PeriodEnd,
		Status:           b.Status,
		TotalGrossAmount: decimal.Zero,
		TotalReclaimable: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// DividendBuilder provides a fluent interface for creating test dividends.
//
// Example usage:
//
//	dividend := testutil.NewDividend().
//	    WithOwner(userID).
//	    WithIsin("US0378331005").
//	    WithAmounts("1000", "300", "30").
//	    Build(t, db)
type DividendBuilder struct {
	ID              string
	OwnerUserID     string
	StatementID     string
	SecurityName    string
	Isin            string
	PaymentDate     time.Time
	GrossAmount     decimal.Decimal
	Currency        string
	SourceCountry   string
	WithholdingTax  decimal.Decimal
	WithholdingRate decimal.Decimal
	FormID          string
}

// NewDividend creates a DividendBuilder with sensible defaults: a US equity
// dividend of 1000.00 with 30% withholding.
func NewDividend() *DividendBuilder {
	return &DividendBuilder{
		ID:              MakeID(),
		OwnerUserID:     MakeID(),
		SecurityName:    "Apple Inc.",
		Isin:            "US0378331005",
		PaymentDate:     time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC),
		GrossAmount:     decimal.RequireFromString("1000"),
		Currency:        "USD",
		SourceCountry:   "US",
		WithholdingTax:  decimal.RequireFromString("300"),
		WithholdingRate: decimal.RequireFromString("30"),
	}
}

// WithID sets a custom ID.
func (b *DividendBuilder) WithID(id string) *DividendBuilder {
	b.ID = id
	return b
}

// WithOwner sets the owning user.
func (b *DividendBuilder) WithOwner(userID string) *DividendBuilder {
	b.OwnerUserID = userID
	return b
}

// WithStatement attaches the dividend to a statement.
func (b *DividendBuilder) WithStatement(statementID string) *DividendBuilder {
	b.StatementID = statementID
	return b
}

// WithSecurity sets the security name and ISIN.
func (b *DividendBuilder) WithSecurity(name, isin string) *DividendBuilder {
	b.SecurityName = name
	b.Isin = isin
	return b
}

// WithIsin sets the ISIN and derives the source country from its prefix.
func (b *DividendBuilder) WithIsin(isin string) *DividendBuilder {
	b.Isin = isin
	b.SourceCountry = isin[:2]
	return b
}

// WithPaymentDate sets the payment date from a YYYY-MM-DD string.
func (b *DividendBuilder) WithPaymentDate(date string) *DividendBuilder {
	b.PaymentDate = mustParseDate(date)
	return b
}

// WithAmounts sets the gross amount, withholding tax and withholding rate.
func (b *DividendBuilder) WithAmounts(gross, withholdingTax, withholdingRate string) *DividendBuilder {
	b.GrossAmount = decimal.RequireFromString(gross)
	b.WithholdingTax = decimal.RequireFromString(withholdingTax)
	b.WithholdingRate = decimal.RequireFromString(withholdingRate)
	return b
}

// WithForm attaches the dividend to a generated form (submitted state).
func (b *DividendBuilder) WithForm(formID string) *DividendBuilder {
	b.FormID = formID
	return b
}

// Build creates the dividend in the database and returns it.
func (b *DividendBuilder) Build(t *testing.T, db *sql.DB) model.Dividend {
	t.Helper()

	query := `
		INSERT INTO dividend (id, owner_user_id, statement_id, security_name, isin,
			payment_date, gross_amount, currency, source_country, withholding_tax,
			withholding_rate, treaty_rate, reclaimable_amount, form_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?, ?)
	`

	var statementID, formID any
	if b.StatementID != "" {
		statementID = b.StatementID
	}
	if b.FormID != "" {
		formID = b.FormID
	}

	now := time.Now().UTC()
	_, err := db.Exec(query, b.ID, b.OwnerUserID, statementID, b.SecurityName, b.Isin,
		b.PaymentDate.Format("2006-01-02"), b.GrossAmount.String(), b.Currency,
		b.SourceCountry, b.WithholdingTax.String(), b.WithholdingRate.String(),
		formID, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("Failed to create test dividend: %v", err)
	}

	return model.Dividend{
		ID:              b.ID,
		OwnerUserID:     b.OwnerUserID,
		StatementID:     b.StatementID,
		SecurityName:    b.SecurityName,
		Isin:            b.Isin,
		PaymentDate:     b.PaymentDate,
		GrossAmount:     b.GrossAmount,
		Currency:        b.Currency,
		SourceCountry:   b.SourceCountry,
		WithholdingTax:  b.WithholdingTax,
		WithholdingRate: b.WithholdingRate,
		FormID:          b.FormID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// FormBuilder provides a fluent interface for creating test generated forms.
//
// Example usage:
//
//	form := testutil.NewForm().WithOwner(userID).Expired().Build(t, db)
type FormBuilder struct {
	ID          string
	OwnerUserID string
	TaxYear     int
	FormType    model.FormType
	Status      model.FormStatus
	ExpiresAt   *time.Time
}

// NewForm creates a FormBuilder with sensible defaults.
func NewForm() *FormBuilder {
	expires := time.Now().UTC().AddDate(0, 0, 90)
	return &FormBuilder{
		ID:          MakeID(),
		OwnerUserID: MakeID(),
		TaxYear:     2024,
		FormType:    model.FormTypeDividendSchedule,
		Status:      model.FormStatusGenerated,
		ExpiresAt:   &expires,
	}
}

// WithID sets a custom ID.
func (b *FormBuilder) WithID(id string) *FormBuilder {
	b.ID = id
	return b
}

// WithOwner sets the owning user.
func (b *FormBuilder) WithOwner(userID string) *FormBuilder {
	b.OwnerUserID = userID
	return b
}

// WithType sets the form type.
func (b *FormBuilder) WithType(formType model.FormType) *FormBuilder {
	b.FormType = formType
	return b
}

// Expired moves the expiry into the past.
func (b *FormBuilder) Expired() *FormBuilder {
	expired := time.Now().UTC().AddDate(0, 0, -1)
	b.ExpiresAt = &expired
	return b
}

// Build creates the form in the database and returns it.
func (b *FormBuilder) Build(t *testing.T, db *sql.DB) model.GeneratedForm {
	t.Helper()

	fileName := string(b.FormType) + "_" + b.OwnerUserID + ".pdf"
	storageKey := "forms/" + b.OwnerUserID + "/" + b.ID + "/" + fileName

	query := `
		INSERT INTO generated_form (id, owner_user_id, storage_key, file_name,
			tax_year, form_type, status, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var expiresAt any
	if b.ExpiresAt != nil {
		expiresAt = b.ExpiresAt.UTC().Format(time.RFC3339)
	}

	now := time.Now().UTC()
	_, err := db.Exec(query, b.ID, b.OwnerUserID, storageKey, fileName,
		b.TaxYear, string(b.FormType), string(b.Status), expiresAt, now.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("Failed to create test form: %v", err)
	}

	return model.GeneratedForm{
		ID:          b.ID,
		OwnerUserID: b.OwnerUserID,
		StorageKey:  storageKey,
		FileName:    fileName,
		TaxYear:     b.TaxYear,
		FormType:    b.FormType,
		Status:      b.Status,
		ExpiresAt:   b.ExpiresAt,
		CreatedAt:   now,
	}
}

func mustParseDate(date string) time.Time {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic("invalid test date: " + date)
	}
	return parsed
}
