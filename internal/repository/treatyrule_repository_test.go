package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/repository"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/testutil"
)

func newRule(source, residence, from, to string) *model.TreatyRule {
	standard := decimal.RequireFromString("30")
	treaty := decimal.RequireFromString("15")
	rule := &model.TreatyRule{
		ID:                       uuid.New().String(),
		SourceCountry:            source,
		ResidenceCountry:         residence,
		SecurityType:             model.SecurityTypeEquity,
		StandardWithholdingRate:  standard,
		TreatyRate:               &treaty,
		RefundProcedureAvailable: true,
		EffectiveFrom:            date(from),
		CreatedAt:                time.Now().UTC(),
	}
	if to != "" {
		end := date(to)
		rule.EffectiveTo = &end
	}
	return rule
}

func date(s string) time.Time {
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic("invalid test date: " + s)
	}
	return parsed
}

// TestTreatyRuleRepository_Insert tests the non-overlap invariant at
// ingestion.
//
// WHY: Two rules covering the same (source, residence, security type) triple
// on the same date would make resolution ambiguous, and the applied rate
// would depend on row order. The overlap check is the only thing preventing
// that.
func TestTreatyRuleRepository_Insert(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts adjacent non-overlapping windows", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewTreatyRuleRepository(db)

		// Execute: bounded window, then an open-ended one starting after it
		if err := repo.Insert(ctx, newRule("US", "CH", "2000-01-01", "2019-12-31")); err != nil {
			t.Fatalf("Insert() returned unexpected error: %v", err)
		}
		if err := repo.Insert(ctx, newRule("US", "CH", "2020-01-01", "")); err != nil {
			t.Fatalf("Insert() of adjacent rule returned unexpected error: %v", err)
		}

		// Assert
		rules, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List() returned unexpected error: %v", err)
		}
		if len(rules) != 2 {
			t.Errorf("Expected 2 rules, got %d", len(rules))
		}
	})

	t.Run("rejects a window overlapping an open-ended rule", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewTreatyRuleRepository(db)
		if err := repo.Insert(ctx, newRule("US", "CH", "2020-01-01", "")); err != nil {
			t.Fatalf("Insert() returned unexpected error: %v", err)
		}

		// Execute
		err := repo.Insert(ctx, newRule("US", "CH", "2024-01-01", "2024-12-31"))

		// Assert
		if !errors.Is(err, apperrors.ErrOverlappingRule) {
			t.Fatalf("Expected ErrOverlappingRule, got %v", err)
		}
	})

	t.Run("rejects an open-ended rule overlapping a bounded one", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewTreatyRuleRepository(db)
		if err := repo.Insert(ctx, newRule("US", "CH", "2020-01-01", "2025-12-31")); err != nil {
			t.Fatalf("Insert() returned unexpected error: %v", err)
		}

		// Execute: starts inside the existing window
		err := repo.Insert(ctx, newRule("US", "CH", "2024-01-01", ""))

		// Assert
		if !errors.Is(err, apperrors.ErrOverlappingRule) {
			t.Fatalf("Expected ErrOverlappingRule, got %v", err)
		}
	})

	t.Run("rejects partially overlapping bounded windows", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewTreatyRuleRepository(db)
		if err := repo.Insert(ctx, newRule("US", "CH", "2020-01-01", "2022-12-31")); err != nil {
			t.Fatalf("Insert() returned unexpected error: %v", err)
		}

		// Execute: shares 2022 with the existing window
		err := repo.Insert(ctx, newRule("US", "CH", "2022-01-01", "2023-12-31"))

		// Assert
		if !errors.Is(err, apperrors.ErrOverlappingRule) {
			t.Fatalf("Expected ErrOverlappingRule, got %v", err)
		}
	})

	t.Run("allows overlapping windows for different triples", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewTreatyRuleRepository(db)
		if err := repo.Insert(ctx, newRule("US", "CH", "2020-01-01", "")); err != nil {
			t.Fatalf("Insert() returned unexpected error: %v", err)
		}

		// Execute: different residence country, different security type
		if err := repo.Insert(ctx, newRule("US", "DE", "2020-01-01", "")); err != nil {
			t.Errorf("Insert() for different residence returned unexpected error: %v", err)
		}
		bond := newRule("US", "CH", "2020-01-01", "")
		bond.SecurityType = model.SecurityTypeBond
		if err := repo.Insert(ctx, bond); err != nil {
			t.Errorf("Insert() for different security type returned unexpected error: %v", err)
		}
	})
}

// TestTreatyRuleRepository_FindApplicable tests date-based rule selection.
//
// WHY: Historic dividends must resolve against the rule in force on their
// payment date, and both validity boundaries are inclusive.
func TestTreatyRuleRepository_FindApplicable(t *testing.T) {
	ctx := context.Background()

	t.Run("selects by reference date across successive windows", func(t *testing.T) {
		// Setup: an old bounded rule and its open-ended successor
		db := testutil.SetupTestDB(t)
		repo := repository.NewTreatyRuleRepository(db)
		old := newRule("US", "CH", "2000-01-01", "2019-12-31")
		old.TreatyRate = nil
		if err := repo.Insert(ctx, old); err != nil {
			t.Fatalf("Insert() returned unexpected error: %v", err)
		}
		current := newRule("US", "CH", "2020-01-01", "")
		if err := repo.Insert(ctx, current); err != nil {
			t.Fatalf("Insert() returned unexpected error: %v", err)
		}

		// Execute & Assert: a 2019 date hits the old rule
		found, err := repo.FindApplicable(ctx, "US", "CH", model.SecurityTypeEquity, date("2019-06-15"))
		if err != nil {
			t.Fatalf("FindApplicable() returned unexpected error: %v", err)
		}
		if found.ID != old.ID {
			t.Errorf("Expected the historic rule, got %s", found.ID)
		}
		if found.TreatyRate != nil {
			t.Error("Expected the historic rule's nil treaty rate to persist")
		}

		// A current date hits the successor
		found, err = repo.FindApplicable(ctx, "US", "CH", model.SecurityTypeEquity, date("2024-05-15"))
		if err != nil {
			t.Fatalf("FindApplicable() returned unexpected error: %v", err)
		}
		if found.ID != current.ID {
			t.Errorf("Expected the current rule, got %s", found.ID)
		}
	})

	t.Run("treats both validity boundaries as inclusive", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewTreatyRuleRepository(db)
		rule := newRule("US", "CH", "2020-01-01", "2024-12-31")
		if err := repo.Insert(ctx, rule); err != nil {
			t.Fatalf("Insert() returned unexpected error: %v", err)
		}

		// Execute & Assert
		for _, boundary := range []string{"2020-01-01", "2024-12-31"} {
			if _, err := repo.FindApplicable(ctx, "US", "CH", model.SecurityTypeEquity, date(boundary)); err != nil {
				t.Errorf("Expected %s to be covered, got %v", boundary, err)
			}
		}
		if _, err := repo.FindApplicable(ctx, "US", "CH", model.SecurityTypeEquity, date("2025-01-01")); !errors.Is(err, apperrors.ErrTreatyRuleNotFound) {
			t.Errorf("Expected ErrTreatyRuleNotFound past the window, got %v", err)
		}
		if _, err := repo.FindApplicable(ctx, "US", "CH", model.SecurityTypeEquity, date("2019-12-31")); !errors.Is(err, apperrors.ErrTreatyRuleNotFound) {
			t.Errorf("Expected ErrTreatyRuleNotFound before the window, got %v", err)
		}
	})

	t.Run("reports overlapping stored rules instead of picking one", func(t *testing.T) {
		// Setup: write the second rule with raw SQL, past the Insert overlap
		// guard, to simulate a corrupted table
		db := testutil.SetupTestDB(t)
		repo := repository.NewTreatyRuleRepository(db)
		if err := repo.Insert(ctx, newRule("US", "CH", "2020-01-01", "")); err != nil {
			t.Fatalf("Insert() returned unexpected error: %v", err)
		}
		_, err := db.Exec(`
			INSERT INTO treaty_rule (id, source_country, residence_country, security_type,
				standard_withholding_rate, treaty_rate, relief_at_source_available,
				refund_procedure_available, effective_from, effective_to, created_at)
			VALUES (?, 'US', 'CH', 'EQUITY', '30', '15', 0, 1, '2019-01-01', NULL, ?)`,
			uuid.New().String(), time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			t.Fatalf("Failed to insert the conflicting row: %v", err)
		}

		// Execute
		_, err = repo.FindApplicable(ctx, "US", "CH", model.SecurityTypeEquity, date("2024-05-15"))

		// Assert
		if !errors.Is(err, apperrors.ErrDataInconsistency) {
			t.Errorf("Expected ErrDataInconsistency, got %v", err)
		}
	})

	t.Run("returns not found for an unknown pair", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewTreatyRuleRepository(db)

		// Execute
		_, err := repo.FindApplicable(ctx, "JP", "CH", model.SecurityTypeEquity, date("2024-05-15"))

		// Assert
		if !errors.Is(err, apperrors.ErrTreatyRuleNotFound) {
			t.Errorf("Expected ErrTreatyRuleNotFound, got %v", err)
		}
	})
}
