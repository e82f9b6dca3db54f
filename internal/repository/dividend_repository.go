package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
)

// DividendRepository provides data access methods for the dividend table.
type DividendRepository struct {
	db *sql.DB
}

// NewDividendRepository creates a new DividendRepository with the provided database connection.
func NewDividendRepository(db *sql.DB) *DividendRepository {
	return &DividendRepository{db: db}
}

const dividendColumns = `id, owner_user_id, statement_id, security_name, isin,
	payment_date, gross_amount, currency, source_country, withholding_tax,
	withholding_rate, treaty_rate, reclaimable_amount, form_id, created_at, updated_at`

// Insert stores a single manually entered dividend.
func (s *DividendRepository) Insert(ctx context.Context, d *model.Dividend) error {
	return insertDividend(ctx, s.db, d)
}

// execer abstracts *sql.DB and *sql.Tx so dividend inserts can participate
// in the statement-parsing transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertDividend(ctx context.Context, db execer, d *model.Dividend) error {
	query := `
		INSERT INTO dividend (` + dividendColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		d.ID,
		d.OwnerUserID,
		nullString(d.StatementID),
		d.SecurityName,
		d.Isin,
		d.PaymentDate.Format("2006-01-02"),
		d.GrossAmount.String(),
		d.Currency,
		d.SourceCountry,
		d.WithholdingTax.String(),
		d.WithholdingRate.String(),
		nullDecimalString(d.TreatyRate),
		nullDecimalString(d.ReclaimableAmount),
		nullString(d.FormID),
		d.CreatedAt.UTC().Format(time.RFC3339),
		d.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dividend: %w", err)
	}
	return nil
}

// GetByID retrieves a single dividend by its ID.
func (s *DividendRepository) GetByID(ctx context.Context, id string) (*model.Dividend, error) {
	query := `SELECT ` + dividendColumns + ` FROM dividend WHERE id = ?`
	d, err := scanDividend(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrDividendNotFound
		}
		return nil, fmt.Errorf("failed to query dividend: %w", err)
	}
	return d, nil
}

// ListByUser retrieves all dividends owned by a user, ordered by payment date.
func (s *DividendRepository) ListByUser(ctx context.Context, userID string) ([]model.Dividend, error) {
	query := `
		SELECT ` + dividendColumns + `
		FROM dividend
		WHERE owner_user_id = ?
		ORDER BY payment_date ASC
	`
	return s.queryDividends(ctx, query, userID)
}

// ListUnsubmittedByUser retrieves the user's dividends that have no attached
// form yet. This is the working set for batch calculation and form generation.
func (s *DividendRepository) ListUnsubmittedByUser(ctx context.Context, userID string) ([]model.Dividend, error) {
	query := `
		SELECT ` + dividendColumns + `
		FROM dividend
		WHERE owner_user_id = ? AND form_id IS NULL
		ORDER BY payment_date ASC
	`
	return s.queryDividends(ctx, query, userID)
}

// ListByIDs retrieves the dividends with the given IDs, preserving the order
// of the input slice. A missing ID yields apperrors.ErrDividendNotFound.
func (s *DividendRepository) ListByIDs(ctx context.Context, ids []string) ([]model.Dividend, error) {
	if len(ids) == 0 {
		return []model.Dividend{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `
		SELECT ` + dividendColumns + `
		FROM dividend
		WHERE id IN (` + strings.Join(placeholders, ",") + `)
	`
	dividends, err := s.queryDividends(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Dividend, len(dividends))
	for _, d := range dividends {
		byID[d.ID] = d
	}

	ordered := make([]model.Dividend, 0, len(ids))
	for _, id := range ids {
		d, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrDividendNotFound, id)
		}
		ordered = append(ordered, d)
	}
	return ordered, nil
}

// ListByStatement retrieves all dividends materialized from a statement.
func (s *DividendRepository) ListByStatement(ctx context.Context, statementID string) ([]model.Dividend, error) {
	query := `
		SELECT ` + dividendColumns + `
		FROM dividend
		WHERE statement_id = ?
		ORDER BY payment_date ASC
	`
	return s.queryDividends(ctx, query, statementID)
}

// ListByForm retrieves all dividends linked to a generated form.
func (s *DividendRepository) ListByForm(ctx context.Context, formID string) ([]model.Dividend, error) {
	query := `
		SELECT ` + dividendColumns + `
		FROM dividend
		WHERE form_id = ?
		ORDER BY payment_date ASC
	`
	return s.queryDividends(ctx, query, formID)
}

// UpdateCalculation persists the computed rate and reclaim fields onto a
// dividend in a single statement.
func (s *DividendRepository) UpdateCalculation(ctx context.Context, id string, withholdingRate decimal.Decimal, treatyRate, reclaimable *decimal.Decimal) error {
	query := `
		UPDATE dividend
		SET withholding_rate = ?, treaty_rate = ?, reclaimable_amount = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		withholdingRate.String(),
		nullDecimalString(treatyRate),
		nullDecimalString(reclaimable),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update dividend calculation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrDividendNotFound
	}
	return nil
}

// LinkToForm attaches the given dividends to a generated form inside the
// provided transaction. The update only matches unlinked rows; if any target
// dividend was linked concurrently, the whole link fails with
// apperrors.ErrDividendSubmitted so the caller can roll back.
func (s *DividendRepository) LinkToForm(ctx context.Context, tx *sql.Tx, formID string, dividendIDs []string) error {
	query := `
		UPDATE dividend
		SET form_id = ?, updated_at = ?
		WHERE id = ? AND form_id IS NULL
	`
	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range dividendIDs {
		res, err := tx.ExecContext(ctx, query, formID, now, id)
		if err != nil {
			return fmt.Errorf("failed to link dividend %s to form: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", apperrors.ErrDividendSubmitted, id)
		}
	}
	return nil
}

// UnlinkForm detaches all dividends from a generated form inside the provided
// transaction, releasing them back into the unsubmitted set.
func (s *DividendRepository) UnlinkForm(ctx context.Context, tx *sql.Tx, formID string) error {
	query := `UPDATE dividend SET form_id = NULL, updated_at = ? WHERE form_id = ?`
	if _, err := tx.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), formID); err != nil {
		return fmt.Errorf("failed to unlink dividends from form: %w", err)
	}
	return nil
}

// Delete removes a dividend. Dividends attached to a generated form are never
// deleted; before that point deletion is a hard delete.
func (s *DividendRepository) Delete(ctx context.Context, id string) error {
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if d.Submitted() {
		return fmt.Errorf("%w: %s", apperrors.ErrDividendSubmitted, id)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM dividend WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete dividend: %w", err)
	}
	return nil
}

func (s *DividendRepository) queryDividends(ctx context.Context, query string, args ...any) ([]model.Dividend, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividend table: %w", err)
	}
	defer rows.Close()

	dividends := make([]model.Dividend, 0)
	for rows.Next() {
		d, err := scanDividend(rows)
		if err != nil {
			return nil, err
		}
		dividends = append(dividends, *d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dividend table: %w", err)
	}
	return dividends, nil
}

func scanDividend(row scanner) (*model.Dividend, error) {
	var d model.Dividend
	var statementID, treatyRateStr, reclaimableStr, formID sql.NullString
	var paymentDateStr, grossStr, withholdingStr, withholdingRateStr, createdAtStr, updatedAtStr string

	err := row.Scan(
		&d.ID,
		&d.OwnerUserID,
		&statementID,
		&d.SecurityName,
		&d.Isin,
		&paymentDateStr,
		&grossStr,
		&d.Currency,
		&d.SourceCountry,
		&withholdingStr,
		&withholdingRateStr,
		&treatyRateStr,
		&reclaimableStr,
		&formID,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if statementID.Valid {
		d.StatementID = statementID.String
	}
	if formID.Valid {
		d.FormID = formID.String
	}

	if d.PaymentDate, err = ParseTime(paymentDateStr); err != nil {
		return nil, err
	}
	if d.GrossAmount, err = ParseDecimal(grossStr); err != nil {
		return nil, err
	}
	if d.WithholdingTax, err = ParseDecimal(withholdingStr); err != nil {
		return nil, err
	}
	if d.WithholdingRate, err = ParseDecimal(withholdingRateStr); err != nil {
		return nil, err
	}
	if d.TreatyRate, err = parseNullDecimal(treatyRateStr); err != nil {
		return nil, err
	}
	if d.ReclaimableAmount, err = parseNullDecimal(reclaimableStr); err != nil {
		return nil, err
	}
	if d.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = ParseTime(updatedAtStr); err != nil {
		return nil, err
	}

	return &d, nil
}
