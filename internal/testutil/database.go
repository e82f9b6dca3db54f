package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite" // Test Package
)

// SetupTestDB creates an in-memory SQLite database for testing.
// The database is automatically cleaned up when the test completes.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.SetupTestDB(t)
//	    // db is ready to use with schema created
//	}
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// In-memory database (destroyed when connection closes)
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Every pooled connection would get its own empty in-memory database;
	// pin the pool to a single connection so all queries share one.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	// Configure SQLite for testing
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = MEMORY", // Faster for tests
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			t.Fatalf("Failed to set pragma: %v", err)
		}
	}

	// Create schema
	if err := createTestSchema(db); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	// Cleanup when test ends
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// createTestSchema creates all database tables for testing.
// Schema is synchronized with the goose migrations.
func createTestSchema(db *sql.DB) error {
	schema := `
		-- Treaty rule reference data
		CREATE TABLE treaty_rule (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			source_country VARCHAR(2) NOT NULL,
			residence_country VARCHAR(2) NOT NULL,
			security_type VARCHAR(10) NOT NULL DEFAULT 'EQUITY',
			standard_withholding_rate TEXT NOT NULL,
			treaty_rate TEXT,
			relief_at_source_available BOOLEAN NOT NULL DEFAULT FALSE,
			refund_procedure_available BOOLEAN NOT NULL DEFAULT TRUE,
			effective_from TEXT NOT NULL,
			effective_to TEXT,
			created_at TEXT NOT NULL,
			UNIQUE (source_country, residence_country, security_type, effective_from)
		);

		-- User profile projected onto tax forms
		CREATE TABLE user_profile (
			user_id VARCHAR(36) NOT NULL PRIMARY KEY,
			first_name VARCHAR(100) NOT NULL DEFAULT '',
			last_name VARCHAR(100) NOT NULL DEFAULT '',
			street VARCHAR(200) NOT NULL DEFAULT '',
			postal_code VARCHAR(20) NOT NULL DEFAULT '',
			city VARCHAR(100) NOT NULL DEFAULT '',
			canton VARCHAR(50) NOT NULL DEFAULT '',
			country_of_residence VARCHAR(2) NOT NULL DEFAULT 'CH',
			tax_id TEXT NOT NULL DEFAULT '',
			email VARCHAR(200) NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		-- Broker statement lifecycle
		CREATE TABLE dividend_statement (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			owner_user_id VARCHAR(36) NOT NULL,
			source_file_ref TEXT NOT NULL DEFAULT '',
			broker VARCHAR(100) NOT NULL DEFAULT '',
			period_start TEXT NOT NULL,
			period_end TEXT NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'UPLOADED',
			parsed_at TEXT,
			validated_at TEXT,
			sent_at TEXT,
			paid_at TEXT,
			sent_method VARCHAR(10),
			sent_notes TEXT NOT NULL DEFAULT '',
			paid_amount TEXT,
			dividend_count INTEGER NOT NULL DEFAULT 0,
			total_gross_amount TEXT NOT NULL DEFAULT '0',
			total_reclaimable TEXT NOT NULL DEFAULT '0',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX idx_statement_owner ON dividend_statement (owner_user_id);

		-- Generated tax-form artifacts
		CREATE TABLE generated_form (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			owner_user_id VARCHAR(36) NOT NULL,
			storage_key TEXT NOT NULL,
			file_name TEXT NOT NULL,
			tax_year INTEGER NOT NULL,
			form_type VARCHAR(20) NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'GENERATED',
			expires_at TEXT,
			created_at TEXT NOT NULL
		);
		CREATE INDEX idx_form_owner ON generated_form (owner_user_id);

		-- Dividend table
		CREATE TABLE dividend (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			owner_user_id VARCHAR(36) NOT NULL,
			statement_id VARCHAR(36) REFERENCES dividend_statement (id),
			security_name VARCHAR(200) NOT NULL,
			isin VARCHAR(12) NOT NULL,
			payment_date TEXT NOT NULL,
			gross_amount TEXT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			source_country VARCHAR(2) NOT NULL,
			withholding_tax TEXT NOT NULL,
			withholding_rate TEXT NOT NULL DEFAULT '0',
			treaty_rate TEXT,
			reclaimable_amount TEXT,
			form_id VARCHAR(36) REFERENCES generated_form (id),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX idx_dividend_owner ON dividend (owner_user_id);
		CREATE INDEX idx_dividend_statement ON dividend (statement_id);
		CREATE INDEX idx_dividend_form ON dividend (form_id);
	`

	_, err := db.Exec(schema)
	return err
}
