package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
)

// StatementRepository provides data access methods for the dividend_statement table.
type StatementRepository struct {
	db *sql.DB
}

// NewStatementRepository creates a new StatementRepository with the provided database connection.
func NewStatementRepository(db *sql.DB) *StatementRepository {
	return &StatementRepository{db: db}
}

const statementColumns = `id, owner_user_id, source_file_ref, broker, period_start,
	period_end, status, parsed_at, validated_at, sent_at, paid_at, sent_method,
	sent_notes, paid_amount, dividend_count, total_gross_amount, total_reclaimable,
	created_at, updated_at`

// Insert stores a freshly uploaded statement in status UPLOADED.
func (s *StatementRepository) Insert(ctx context.Context, st *model.DividendStatement) error {
	query := `
		INSERT INTO dividend_statement (` + statementColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		st.ID,
		st.OwnerUserID,
		st.SourceFileRef,
		st.Broker,
		st.PeriodStart.Format("2006-01-02"),
		st.PeriodEnd.Format("2006-01-02"),
		string(st.Status),
		nullTimeString(st.ParsedAt),
		nullTimeString(st.ValidatedAt),
		nullTimeString(st.SentAt),
		nullTimeString(st.PaidAt),
		nullString(string(st.SentMethod)),
		st.SentNotes,
		nullDecimalString(st.PaidAmount),
		st.DividendCount,
		st.TotalGrossAmount.String(),
		st.TotalReclaimable.String(),
		st.CreatedAt.UTC().Format(time.RFC3339),
		st.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert statement: %w", err)
	}
	return nil
}

// GetByID retrieves a single statement by its ID.
func (s *StatementRepository) GetByID(ctx context.Context, id string) (*model.DividendStatement, error) {
	query := `SELECT ` + statementColumns + ` FROM dividend_statement WHERE id = ?`
	st, err := scanStatement(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrStatementNotFound
		}
		return nil, fmt.Errorf("failed to query statement: %w", err)
	}
	return st, nil
}

// ListByUser retrieves all statements owned by a user, newest first.
func (s *StatementRepository) ListByUser(ctx context.Context, userID string) ([]model.DividendStatement, error) {
	query := `
		SELECT ` + statementColumns + `
		FROM dividend_statement
		WHERE owner_user_id = ?
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividend_statement table: %w", err)
	}
	defer rows.Close()

	statements := make([]model.DividendStatement, 0)
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		statements = append(statements, *st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dividend_statement table: %w", err)
	}
	return statements, nil
}

// StatusUpdate carries the fields stamped by a status transition.
type StatusUpdate struct {
	Target     model.StatementStatus
	Timestamp  time.Time
	SentMethod model.SentMethod
	SentNotes  string
	PaidAmount *decimal.Decimal
}

// UpdateStatus advances a statement's status with an optimistic guard on the
// expected current status. The UPDATE only matches when the stored status
// still equals current, so two concurrent transitions cannot both succeed.
// Returns false without error when the guard missed (stale status).
func (s *StatementRepository) UpdateStatus(ctx context.Context, id string, current model.StatementStatus, upd StatusUpdate) (bool, error) {
	set := `status = ?, updated_at = ?`
	args := []any{string(upd.Target), upd.Timestamp.UTC().Format(time.RFC3339)}

	stamp := upd.Timestamp.UTC().Format(time.RFC3339)
	switch upd.Target {
	case model.StatementParsed:
		set += `, parsed_at = ?`
		args = append(args, stamp)
	case model.StatementValidated:
		set += `, validated_at = ?`
		args = append(args, stamp)
	case model.StatementSent:
		set += `, sent_at = ?, sent_method = ?, sent_notes = ?`
		args = append(args, stamp, string(upd.SentMethod), upd.SentNotes)
	case model.StatementPaid:
		set += `, paid_at = ?, paid_amount = ?`
		args = append(args, stamp, nullDecimalString(upd.PaidAmount))
	}

	args = append(args, id, string(current))
	query := `UPDATE dividend_statement SET ` + set + ` WHERE id = ? AND status = ?`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update statement status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

// ApplyParsedResult stores the parsed dividend rows and the statement's
// summary metadata (count, total gross, total reclaimable) in one
// transaction. The summary is never visible without its rows or vice versa.
func (s *StatementRepository) ApplyParsedResult(ctx context.Context, statementID string, dividends []model.Dividend, totalGross, totalReclaimable decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for i := range dividends {
		if err := insertDividend(ctx, tx, &dividends[i]); err != nil {
			return err
		}
	}

	query := `
		UPDATE dividend_statement
		SET dividend_count = ?, total_gross_amount = ?, total_reclaimable = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := tx.ExecContext(ctx, query,
		len(dividends),
		totalGross.String(),
		totalReclaimable.String(),
		time.Now().UTC().Format(time.RFC3339),
		statementID,
	)
	if err != nil {
		return fmt.Errorf("failed to update statement totals: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrStatementNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit parsed result: %w", err)
	}
	return nil
}

func scanStatement(row scanner) (*model.DividendStatement, error) {
	var st model.DividendStatement
	var status, periodStartStr, periodEndStr, createdAtStr, updatedAtStr string
	var parsedAtStr, validatedAtStr, sentAtStr, paidAtStr, sentMethod, paidAmountStr sql.NullString

	err := row.Scan(
		&st.ID,
		&st.OwnerUserID,
		&st.SourceFileRef,
		&st.Broker,
		&periodStartStr,
		&periodEndStr,
		&status,
		&parsedAtStr,
		&validatedAtStr,
		&sentAtStr,
		&paidAtStr,
		&sentMethod,
		&st.SentNotes,
		&paidAmountStr,
		&st.DividendCount,
		&totalScanner{&st.TotalGrossAmount},
		&totalScanner{&st.TotalReclaimable},
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	st.Status = model.StatementStatus(status)
	if sentMethod.Valid {
		st.SentMethod = model.SentMethod(sentMethod.String)
	}

	if st.PeriodStart, err = ParseTime(periodStartStr); err != nil {
		return nil, err
	}
	if st.PeriodEnd, err = ParseTime(periodEndStr); err != nil {
		return nil, err
	}
	if st.ParsedAt, err = parseNullTime(parsedAtStr); err != nil {
		return nil, err
	}
	if st.ValidatedAt, err = parseNullTime(validatedAtStr); err != nil {
		return nil, err
	}
	if st.SentAt, err = parseNullTime(sentAtStr); err != nil {
		return nil, err
	}
	if st.PaidAt, err = parseNullTime(paidAtStr); err != nil {
		return nil, err
	}
	if st.PaidAmount, err = parseNullDecimal(paidAmountStr); err != nil {
		return nil, err
	}
	if st.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return nil, err
	}
	if st.UpdatedAt, err = ParseTime(updatedAtStr); err != nil {
		return nil, err
	}

	return &st, nil
}

// totalScanner scans a decimal TEXT column directly into a decimal field.
type totalScanner struct {
	dst *decimal.Decimal
}

func (t *totalScanner) Scan(src any) error {
	var str string
	switch v := src.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	case nil:
		*t.dst = decimal.Zero
		return nil
	default:
		return fmt.Errorf("cannot scan %T into decimal", src)
	}
	d, err := ParseDecimal(str)
	if err != nil {
		return err
	}
	*t.dst = d
	return nil
}
