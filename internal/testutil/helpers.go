package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/config"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/parser"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/repository"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/service"
)

func NewTestTreatyRuleService(t *testing.T, db *sql.DB) *service.TreatyRuleService {
	t.Helper()

	ruleRepo := repository.NewTreatyRuleRepository(db)

	return service.NewTreatyRuleService(
		ruleRepo,
		128,
		time.Minute,
	)
}

func NewTestStatementService(t *testing.T, db *sql.DB) *service.StatementService {
	t.Helper()

	statementRepo := repository.NewStatementRepository(db)

	return service.NewStatementService(
		statementRepo,
		parser.NewCSV(),
	)
}

func NewTestDividendService(t *testing.T, db *sql.DB) *service.DividendService {
	t.Helper()

	dividendRepo := repository.NewDividendRepository(db)

	return service.NewDividendService(
		dividendRepo,
	)
}

func NewTestReclaimService(t *testing.T, db *sql.DB) *service.ReclaimService {
	t.Helper()

	dividendRepo := repository.NewDividendRepository(db)

	return service.NewReclaimService(
		NewTestTreatyRuleService(t, db),
		dividendRepo,
	)
}

func NewTestProfileService(t *testing.T, db *sql.DB) *service.ProfileService {
	t.Helper()

	userRepo, err := repository.NewUserRepository(db, "")
	if err != nil {
		t.Fatalf("Failed to create user repository: %v", err)
	}

	return service.NewProfileService(
		userRepo,
		"CH",
	)
}

// NewTestFormService builds a FormService on top of in-memory fakes for the
// renderer and object store, so form generation runs without templates or a
// storage backend.
func NewTestFormService(t *testing.T, db *sql.DB) (*service.FormService, *FakeObjectStore, *FakeRenderer) {
	t.Helper()

	userRepo, err := repository.NewUserRepository(db, "")
	if err != nil {
		t.Fatalf("Failed to create user repository: %v", err)
	}

	store := NewFakeObjectStore()
	renderer := NewFakeRenderer()

	svc := service.NewFormService(
		repository.NewFormRepository(db),
		repository.NewDividendRepository(db),
		userRepo,
		NewTestReclaimService(t, db),
		renderer,
		store,
		config.FormsConfig{
			TemplateDir:             t.TempDir(),
			DefaultResidenceCountry: "CH",
			RetentionDays:           90,
		},
		time.Hour,
	)
	return svc, store, renderer
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db)
}

// MakeID generates a unique UUID for test entities.
func MakeID() string {
	return uuid.New().String()
}
