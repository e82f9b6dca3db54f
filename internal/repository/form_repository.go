package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
)

// FormRepository provides data access methods for the generated_form table.
// A form row and its dividend links are always written and removed together
// in one transaction.
type FormRepository struct {
	db *sql.DB
}

// NewFormRepository creates a new FormRepository with the provided database connection.
func NewFormRepository(db *sql.DB) *FormRepository {
	return &FormRepository{db: db}
}

const formColumns = `id, owner_user_id, storage_key, file_name, tax_year,
	form_type, status, expires_at, created_at`

// CreateAndLink persists a generated form and attaches the given dividends to
// it in a single transaction. If any dividend was linked to another form in
// the meantime, nothing is written and apperrors.ErrDividendSubmitted is
// returned so the caller can compensate (delete the uploaded artifact).
func (s *FormRepository) CreateAndLink(ctx context.Context, form *model.GeneratedForm, dividendIDs []string, dividends *DividendRepository) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	query := `
		INSERT INTO generated_form (` + formColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		form.ID,
		form.OwnerUserID,
		form.StorageKey,
		form.FileName,
		form.TaxYear,
		string(form.FormType),
		string(form.Status),
		nullTimeString(form.ExpiresAt),
		form.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert generated form: %w", err)
	}

	if len(dividendIDs) > 0 {
		if err := dividends.LinkToForm(ctx, tx, form.ID, dividendIDs); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit generated form: %w", err)
	}
	return nil
}

// GetByID retrieves a single generated form by its ID.
func (s *FormRepository) GetByID(ctx context.Context, id string) (*model.GeneratedForm, error) {
	query := `SELECT ` + formColumns + ` FROM generated_form WHERE id = ?`
	form, err := scanForm(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrFormNotFound
		}
		return nil, fmt.Errorf("failed to query generated form: %w", err)
	}
	return form, nil
}

// ListByUser retrieves all generated forms owned by a user, newest first.
func (s *FormRepository) ListByUser(ctx context.Context, userID string) ([]model.GeneratedForm, error) {
	query := `
		SELECT ` + formColumns + `
		FROM generated_form
		WHERE owner_user_id = ?
		ORDER BY created_at DESC
	`
	return s.queryForms(ctx, query, userID)
}

// ListExpired retrieves forms whose expiry has passed, for the cleanup job.
func (s *FormRepository) ListExpired(ctx context.Context, now time.Time) ([]model.GeneratedForm, error) {
	query := `
		SELECT ` + formColumns + `
		FROM generated_form
		WHERE expires_at IS NOT NULL AND expires_at <= ?
	`
	return s.queryForms(ctx, query, now.UTC().Format(time.RFC3339))
}

// RefreshGenerated restamps a regenerated form: generation time and
// retention window move to the new run and the status returns to GENERATED.
func (s *FormRepository) RefreshGenerated(ctx context.Context, formID string, generatedAt, expiresAt time.Time) error {
	query := `
		UPDATE generated_form
		SET status = ?, created_at = ?, expires_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		string(model.FormStatusGenerated),
		generatedAt.UTC().Format(time.RFC3339),
		expiresAt.UTC().Format(time.RFC3339),
		formID,
	)
	if err != nil {
		return fmt.Errorf("failed to restamp generated form: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrFormNotFound
	}
	return nil
}

// DeleteAndUnlink removes a form row and releases its dividends in a single
// transaction. The stored artifact is the caller's responsibility.
func (s *FormRepository) DeleteAndUnlink(ctx context.Context, formID string, dividends *DividendRepository) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := dividends.UnlinkForm(ctx, tx, formID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM generated_form WHERE id = ?`, formID)
	if err != nil {
		return fmt.Errorf("failed to delete generated form: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrFormNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit form deletion: %w", err)
	}
	return nil
}

func (s *FormRepository) queryForms(ctx context.Context, query string, args ...any) ([]model.GeneratedForm, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generated_form table: %w", err)
	}
	defer rows.Close()

	forms := make([]model.GeneratedForm, 0)
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, *form)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generated_form table: %w", err)
	}
	return forms, nil
}

func scanForm(row scanner) (*model.GeneratedForm, error) {
	var f model.GeneratedForm
	var formType, status, createdAtStr string
	var expiresAtStr sql.NullString

	err := row.Scan(
		&f.ID,
		&f.OwnerUserID,
		&f.StorageKey,
		&f.FileName,
		&f.TaxYear,
		&formType,
		&status,
		&expiresAtStr,
		&createdAtStr,
	)
	if err != nil {
		return nil, err
	}

	f.FormType = model.FormType(formType)
	f.Status = model.FormStatus(status)

	if f.ExpiresAt, err = parseNullTime(expiresAtStr); err != nil {
		return nil, err
	}
	if f.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return nil, err
	}

	return &f, nil
}
