package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/repository"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/testutil"
)

// TestDividendRepository_ListByIDs tests ID-based retrieval.
//
// WHY: Form generation places dividends on schedule lines in the order the
// caller selected them, and a silently dropped ID would produce a schedule
// missing a dividend the user chose.
func TestDividendRepository_ListByIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("preserves the input order", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewDividendRepository(db)
		first := testutil.NewDividend().Build(t, db)
		second := testutil.NewDividend().Build(t, db)
		third := testutil.NewDividend().Build(t, db)

		// Execute: reversed order relative to insertion
		dividends, err := repo.ListByIDs(ctx, []string{third.ID, first.ID, second.ID})

		// Assert
		if err != nil {
			t.Fatalf("ListByIDs() returned unexpected error: %v", err)
		}
		want := []string{third.ID, first.ID, second.ID}
		for i, d := range dividends {
			if d.ID != want[i] {
				t.Errorf("Position %d: expected %s, got %s", i, want[i], d.ID)
			}
		}
	})

	t.Run("fails on a missing ID", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewDividendRepository(db)
		existing := testutil.NewDividend().Build(t, db)

		// Execute
		_, err := repo.ListByIDs(ctx, []string{existing.ID, testutil.MakeID()})

		// Assert
		if !errors.Is(err, apperrors.ErrDividendNotFound) {
			t.Errorf("Expected ErrDividendNotFound, got %v", err)
		}
	})

	t.Run("returns an empty slice for no IDs", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewDividendRepository(db)

		// Execute
		dividends, err := repo.ListByIDs(ctx, nil)

		// Assert
		if err != nil {
			t.Fatalf("ListByIDs() returned unexpected error: %v", err)
		}
		if len(dividends) != 0 {
			t.Errorf("Expected no dividends, got %d", len(dividends))
		}
	})
}

// TestDividendRepository_LinkToForm tests the guarded form link.
//
// WHY: A dividend may appear on at most one form. The link only matches
// unlinked rows, so a concurrent claim loses cleanly instead of silently
// moving the dividend between forms.
func TestDividendRepository_LinkToForm(t *testing.T) {
	ctx := context.Background()

	t.Run("links unclaimed dividends", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewDividendRepository(db)
		userID := testutil.MakeID()
		form := testutil.NewForm().WithOwner(userID).Build(t, db)
		dividend := testutil.NewDividend().WithOwner(userID).Build(t, db)

		// Execute
		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("Begin() returned unexpected error: %v", err)
		}
		if err := repo.LinkToForm(ctx, tx, form.ID, []string{dividend.ID}); err != nil {
			t.Fatalf("LinkToForm() returned unexpected error: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() returned unexpected error: %v", err)
		}

		// Assert
		stored, err := repo.GetByID(ctx, dividend.ID)
		if err != nil {
			t.Fatalf("GetByID() returned unexpected error: %v", err)
		}
		if stored.FormID != form.ID {
			t.Errorf("Expected form %s, got %q", form.ID, stored.FormID)
		}
	})

	t.Run("refuses a dividend already claimed by another form", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewDividendRepository(db)
		userID := testutil.MakeID()
		previous := testutil.NewForm().WithOwner(userID).Build(t, db)
		next := testutil.NewForm().WithOwner(userID).Build(t, db)
		claimed := testutil.NewDividend().WithOwner(userID).WithForm(previous.ID).Build(t, db)

		// Execute
		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("Begin() returned unexpected error: %v", err)
		}
		linkErr := repo.LinkToForm(ctx, tx, next.ID, []string{claimed.ID})
		tx.Rollback()

		// Assert: refused, and the original link survives
		if !errors.Is(linkErr, apperrors.ErrDividendSubmitted) {
			t.Fatalf("Expected ErrDividendSubmitted, got %v", linkErr)
		}
		stored, err := repo.GetByID(ctx, claimed.ID)
		if err != nil {
			t.Fatalf("GetByID() returned unexpected error: %v", err)
		}
		if stored.FormID != previous.ID {
			t.Errorf("Expected the original link to survive, got %q", stored.FormID)
		}
	})
}

// TestDividendRepository_Delete tests deletion rules.
//
// WHY: A dividend on a generated form is part of a document the user may
// have already filed; deleting it would silently falsify that form.
func TestDividendRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes an unclaimed dividend", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewDividendRepository(db)
		dividend := testutil.NewDividend().Build(t, db)

		// Execute
		if err := repo.Delete(ctx, dividend.ID); err != nil {
			t.Fatalf("Delete() returned unexpected error: %v", err)
		}

		// Assert
		if _, err := repo.GetByID(ctx, dividend.ID); !errors.Is(err, apperrors.ErrDividendNotFound) {
			t.Errorf("Expected the dividend gone, got %v", err)
		}
	})

	t.Run("refuses a dividend attached to a form", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewDividendRepository(db)
		userID := testutil.MakeID()
		form := testutil.NewForm().WithOwner(userID).Build(t, db)
		claimed := testutil.NewDividend().WithOwner(userID).WithForm(form.ID).Build(t, db)

		// Execute
		err := repo.Delete(ctx, claimed.ID)

		// Assert
		if !errors.Is(err, apperrors.ErrDividendSubmitted) {
			t.Fatalf("Expected ErrDividendSubmitted, got %v", err)
		}
		if _, getErr := repo.GetByID(ctx, claimed.ID); getErr != nil {
			t.Errorf("Expected the dividend to survive, got %v", getErr)
		}
	})
}

// TestDividendRepository_ListByStatement tests statement-scoped listing.
//
// WHY: The statement detail view shows the dividends a parse produced;
// leaking rows across statements would misattribute income.
func TestDividendRepository_ListByStatement(t *testing.T) {
	ctx := context.Background()

	t.Run("returns only the statement's rows", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		repo := repository.NewDividendRepository(db)
		userID := testutil.MakeID()
		mine := testutil.NewStatement().WithOwner(userID).Build(t, db)
		other := testutil.NewStatement().WithOwner(userID).Build(t, db)
		want := testutil.NewDividend().WithOwner(userID).WithStatement(mine.ID).Build(t, db)
		testutil.NewDividend().WithOwner(userID).WithStatement(other.ID).Build(t, db)

		// Execute
		dividends, err := repo.ListByStatement(ctx, mine.ID)

		// Assert
		if err != nil {
			t.Fatalf("ListByStatement() returned unexpected error: %v", err)
		}
		if len(dividends) != 1 || dividends[0].ID != want.ID {
			t.Errorf("Expected exactly the statement's dividend, got %d rows", len(dividends))
		}
	})
}
