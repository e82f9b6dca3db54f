package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/parser"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/repository"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/service"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/testutil"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/validation"
)

// TestStatementService_Transition tests the statement lifecycle state
// machine.
//
// WHY: Statement status drives which operations are allowed downstream.
// Every move must be a single forward step; skips, reversals and no-ops must
// be rejected with an error naming both states, and PAID must be terminal.
func TestStatementService_Transition(t *testing.T) {
	ctx := context.Background()

	t.Run("walks the full lifecycle forward", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		st := testutil.NewStatement().Build(t, db)

		steps := []struct {
			target model.StatementStatus
			opts   service.TransitionOptions
		}{
			{model.StatementParsing, service.TransitionOptions{}},
			{model.StatementParsed, service.TransitionOptions{}},
			{model.StatementValidated, service.TransitionOptions{}},
			{model.StatementSent, service.TransitionOptions{SentMethod: model.SentMethodPostal, SentNotes: "registered mail"}},
			{model.StatementPaid, service.TransitionOptions{PaidAmount: decPtr("150.00")}},
		}

		// Execute & Assert
		for _, step := range steps {
			updated, err := svc.Transition(ctx, st.ID, step.target, step.opts)
			if err != nil {
				t.Fatalf("Transition to %s returned unexpected error: %v", step.target, err)
			}
			if updated.Status != step.target {
				t.Errorf("Expected status %s, got %s", step.target, updated.Status)
			}
		}

		// The SENT metadata and paid amount survive the walk
		final, err := svc.GetStatement(ctx, st.ID)
		if err != nil {
			t.Fatalf("GetStatement() returned unexpected error: %v", err)
		}
		if final.SentMethod != model.SentMethodPostal {
			t.Errorf("Expected sent method POSTAL, got %s", final.SentMethod)
		}
		if final.SentNotes != "registered mail" {
			t.Errorf("Expected sent notes to persist, got %q", final.SentNotes)
		}
		if final.PaidAmount == nil || final.PaidAmount.String() != "150" {
			t.Errorf("Expected paid amount 150, got %v", final.PaidAmount)
		}
	})

	t.Run("rejects skipping a state", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		st := testutil.NewStatement().Build(t, db)

		// Execute: UPLOADED -> PARSED skips PARSING
		_, err := svc.Transition(ctx, st.ID, model.StatementParsed, service.TransitionOptions{})

		// Assert
		var terr *apperrors.InvalidTransitionError
		if !errors.As(err, &terr) {
			t.Fatalf("Expected InvalidTransitionError, got %v", err)
		}
		if terr.Current != "UPLOADED" || terr.Requested != "PARSED" {
			t.Errorf("Expected error naming UPLOADED->PARSED, got %s->%s", terr.Current, terr.Requested)
		}
	})

	t.Run("rejects moving backward", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		st := testutil.NewStatement().WithStatus(model.StatementParsed).Build(t, db)

		// Execute
		_, err := svc.Transition(ctx, st.ID, model.StatementParsing, service.TransitionOptions{})

		// Assert
		var terr *apperrors.InvalidTransitionError
		if !errors.As(err, &terr) {
			t.Fatalf("Expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("rejects a no-op transition", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		st := testutil.NewStatement().WithStatus(model.StatementValidated).Build(t, db)

		// Execute
		_, err := svc.Transition(ctx, st.ID, model.StatementValidated, service.TransitionOptions{})

		// Assert
		var terr *apperrors.InvalidTransitionError
		if !errors.As(err, &terr) {
			t.Fatalf("Expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("treats PAID as terminal", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		st := testutil.NewStatement().WithStatus(model.StatementPaid).Build(t, db)

		// Execute & Assert: nothing leads out of PAID
		for _, target := range []model.StatementStatus{
			model.StatementUploaded,
			model.StatementParsing,
			model.StatementSent,
			model.StatementPaid,
		} {
			_, err := svc.Transition(ctx, st.ID, target, service.TransitionOptions{SentMethod: model.SentMethodEmail})
			var terr *apperrors.InvalidTransitionError
			if !errors.As(err, &terr) {
				t.Errorf("Expected InvalidTransitionError for PAID->%s, got %v", target, err)
			}
		}
	})

	t.Run("requires a sent method when entering SENT", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		st := testutil.NewStatement().WithStatus(model.StatementValidated).Build(t, db)

		// Execute
		_, err := svc.Transition(ctx, st.ID, model.StatementSent, service.TransitionOptions{})

		// Assert: rejected before any write, statement untouched
		var verr *validation.Error
		if !errors.As(err, &verr) {
			t.Fatalf("Expected validation error, got %v", err)
		}
		if _, ok := verr.Fields["sentMethod"]; !ok {
			t.Errorf("Expected the sentMethod field flagged, got %v", verr.Fields)
		}

		unchanged, err := svc.GetStatement(ctx, st.ID)
		if err != nil {
			t.Fatalf("GetStatement() returned unexpected error: %v", err)
		}
		if unchanged.Status != model.StatementValidated {
			t.Errorf("Expected status to remain VALIDATED, got %s", unchanged.Status)
		}
	})

	t.Run("returns not found for an unknown statement", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)

		// Execute
		_, err := svc.Transition(ctx, testutil.MakeID(), model.StatementParsing, service.TransitionOptions{})

		// Assert
		if !errors.Is(err, apperrors.ErrStatementNotFound) {
			t.Errorf("Expected ErrStatementNotFound, got %v", err)
		}
	})
}

// TestStatementService_CreateStatement tests statement registration.
//
// WHY: Every statement must enter the lifecycle in UPLOADED with zeroed
// summary fields; anything else would let a statement skip the state
// machine.
func TestStatementService_CreateStatement(t *testing.T) {
	ctx := context.Background()

	t.Run("registers a statement in UPLOADED", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		userID := testutil.MakeID()

		// Execute
		st, err := svc.CreateStatement(ctx, userID, "statements/2024-q2.pdf", "Interactive Brokers",
			date("2024-04-01"), date("2024-06-30"))

		// Assert
		if err != nil {
			t.Fatalf("CreateStatement() returned unexpected error: %v", err)
		}
		if st.Status != model.StatementUploaded {
			t.Errorf("Expected status UPLOADED, got %s", st.Status)
		}
		if st.DividendCount != 0 || !st.TotalGrossAmount.IsZero() {
			t.Error("Expected zeroed summary fields on a new statement")
		}

		stored, err := svc.GetStatement(ctx, st.ID)
		if err != nil {
			t.Fatalf("GetStatement() returned unexpected error: %v", err)
		}
		if stored.Broker != "Interactive Brokers" {
			t.Errorf("Expected broker to persist, got %q", stored.Broker)
		}
	})
}

// TestStatementService_ApplyParsedResult tests materializing parser output.
//
// WHY: The parsed rows and the statement's summary counters must land
// atomically; a partial write would leave the statement claiming dividends
// that don't exist (or the reverse).
func TestStatementService_ApplyParsedResult(t *testing.T) {
	ctx := context.Background()

	t.Run("materializes dividend rows and stamps the summary", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		dividendRepo := repository.NewDividendRepository(db)
		st := testutil.NewStatement().WithStatus(model.StatementParsing).Build(t, db)

		result := parser.ParseResult{
			Dividends: []parser.DividendRecord{
				{
					SecurityName:    "Apple Inc",
					Isin:            "US0378331005",
					PaymentDate:     date("2024-05-15"),
					GrossAmount:     dec("1000"),
					Currency:        "USD",
					WithholdingTax:  dec("300"),
					WithholdingRate: dec("30"),
				},
				{
					SecurityName:    "Nestle SA",
					Isin:            "CH0038863350",
					PaymentDate:     date("2024-04-25"),
					GrossAmount:     dec("500.50"),
					Currency:        "CHF",
					SourceCountry:   "CH",
					WithholdingTax:  dec("175.18"),
					WithholdingRate: dec("35"),
				},
			},
			Metadata: parser.Metadata{Broker: "Interactive Brokers"},
		}

		// Execute
		dividends, err := svc.ApplyParsedResult(ctx, st.ID, result)

		// Assert
		if err != nil {
			t.Fatalf("ApplyParsedResult() returned unexpected error: %v", err)
		}
		if len(dividends) != 2 {
			t.Fatalf("Expected 2 dividends, got %d", len(dividends))
		}
		// The first record carried no source country; it comes from the ISIN
		if dividends[0].SourceCountry != "US" {
			t.Errorf("Expected derived source country US, got %s", dividends[0].SourceCountry)
		}

		stored, err := svc.GetStatement(ctx, st.ID)
		if err != nil {
			t.Fatalf("GetStatement() returned unexpected error: %v", err)
		}
		if stored.DividendCount != 2 {
			t.Errorf("Expected dividend count 2, got %d", stored.DividendCount)
		}
		if got := stored.TotalGrossAmount.String(); got != "1500.5" {
			t.Errorf("Expected total gross 1500.5, got %s", got)
		}

		rows, err := dividendRepo.ListByStatement(ctx, st.ID)
		if err != nil {
			t.Fatalf("ListByStatement() returned unexpected error: %v", err)
		}
		if len(rows) != 2 {
			t.Errorf("Expected 2 stored rows, got %d", len(rows))
		}
		for _, row := range rows {
			if row.OwnerUserID != st.OwnerUserID {
				t.Errorf("Expected rows owned by the statement owner, got %s", row.OwnerUserID)
			}
		}
	})

	t.Run("rejects the whole batch when a record has a malformed ISIN", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		dividendRepo := repository.NewDividendRepository(db)
		st := testutil.NewStatement().WithStatus(model.StatementParsing).Build(t, db)

		result := parser.ParseResult{
			Dividends: []parser.DividendRecord{
				{
					SecurityName:    "Apple Inc",
					Isin:            "US0378331005",
					PaymentDate:     date("2024-05-15"),
					GrossAmount:     dec("1000"),
					Currency:        "USD",
					WithholdingTax:  dec("300"),
					WithholdingRate: dec("30"),
				},
				{
					SecurityName:    "Mystery Corp",
					Isin:            "bogus",
					PaymentDate:     date("2024-05-16"),
					GrossAmount:     dec("100"),
					Currency:        "USD",
					WithholdingTax:  dec("30"),
					WithholdingRate: dec("30"),
				},
			},
		}

		// Execute
		_, err := svc.ApplyParsedResult(ctx, st.ID, result)

		// Assert: nothing persisted
		if !errors.Is(err, validation.ErrInvalidIsin) {
			t.Fatalf("Expected ErrInvalidIsin, got %v", err)
		}
		rows, err := dividendRepo.ListByStatement(ctx, st.ID)
		if err != nil {
			t.Fatalf("ListByStatement() returned unexpected error: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("Expected no rows persisted, got %d", len(rows))
		}
	})
}

// TestStatementService_IngestFile tests the parse pipeline from raw file
// bytes to persisted dividends.
//
// WHY: Ingestion chains the state machine, the parser and the batch
// materialization. A good file must land the statement in PARSED with its
// rows stored; a bad file must surface a dedicated error and leave the
// statement recoverable in PARSING with nothing persisted.
func TestStatementService_IngestFile(t *testing.T) {
	ctx := context.Background()

	csvFile := []byte("securityName,isin,paymentDate,grossAmount,currency,withholdingTax,withholdingRate\n" +
		"Apple Inc,US0378331005,2024-05-15,1000,USD,300,30\n")

	t.Run("parses a CSV upload into dividends and marks the statement parsed", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		st := testutil.NewStatement().WithStatus(model.StatementUploaded).Build(t, db)

		// Execute
		dividends, err := svc.IngestFile(ctx, st.ID, csvFile)

		// Assert
		if err != nil {
			t.Fatalf("IngestFile() returned unexpected error: %v", err)
		}
		if len(dividends) != 1 {
			t.Fatalf("Expected 1 dividend, got %d", len(dividends))
		}
		if dividends[0].SourceCountry != "US" {
			t.Errorf("Expected source country derived from the ISIN, got %s", dividends[0].SourceCountry)
		}

		stored, err := svc.GetStatement(ctx, st.ID)
		if err != nil {
			t.Fatalf("GetStatement() returned unexpected error: %v", err)
		}
		if stored.Status != model.StatementParsed {
			t.Errorf("Expected status PARSED, got %s", stored.Status)
		}
		if stored.DividendCount != 1 {
			t.Errorf("Expected dividend count 1, got %d", stored.DividendCount)
		}
	})

	t.Run("surfaces a parse failure and keeps the statement in PARSING", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		dividendRepo := repository.NewDividendRepository(db)
		st := testutil.NewStatement().WithStatus(model.StatementUploaded).Build(t, db)

		// Execute
		_, err := svc.IngestFile(ctx, st.ID, []byte("not,a\nstatement"))

		// Assert
		if !errors.Is(err, apperrors.ErrUnparsableStatement) {
			t.Fatalf("Expected ErrUnparsableStatement, got %v", err)
		}
		stored, err := svc.GetStatement(ctx, st.ID)
		if err != nil {
			t.Fatalf("GetStatement() returned unexpected error: %v", err)
		}
		if stored.Status != model.StatementParsing {
			t.Errorf("Expected status PARSING after a failed parse, got %s", stored.Status)
		}
		rows, err := dividendRepo.ListByStatement(ctx, st.ID)
		if err != nil {
			t.Fatalf("ListByStatement() returned unexpected error: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("Expected no rows persisted, got %d", len(rows))
		}
	})

	t.Run("hands the raw file bytes to the configured parser", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		fake := &testutil.FakeParser{Result: parser.ParseResult{
			Dividends: []parser.DividendRecord{{
				SecurityName:    "Apple Inc",
				Isin:            "US0378331005",
				PaymentDate:     date("2024-05-15"),
				GrossAmount:     dec("1000"),
				Currency:        "USD",
				WithholdingTax:  dec("300"),
				WithholdingRate: dec("30"),
			}},
		}}
		svc := service.NewStatementService(repository.NewStatementRepository(db), fake)
		st := testutil.NewStatement().WithStatus(model.StatementUploaded).Build(t, db)

		// Execute
		dividends, err := svc.IngestFile(ctx, st.ID, csvFile)

		// Assert
		if err != nil {
			t.Fatalf("IngestFile() returned unexpected error: %v", err)
		}
		if len(fake.Files) != 1 || string(fake.Files[0]) != string(csvFile) {
			t.Errorf("Expected the parser to receive the uploaded bytes")
		}
		if len(dividends) != 1 {
			t.Errorf("Expected the fake's record materialized, got %d", len(dividends))
		}
	})

	t.Run("rejects ingestion for a statement already parsed", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		st := testutil.NewStatement().WithStatus(model.StatementParsed).Build(t, db)

		// Execute
		_, err := svc.IngestFile(ctx, st.ID, csvFile)

		// Assert
		var terr *apperrors.InvalidTransitionError
		if !errors.As(err, &terr) {
			t.Fatalf("Expected InvalidTransitionError, got %v", err)
		}
	})
}
