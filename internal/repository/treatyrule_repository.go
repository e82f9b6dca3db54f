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

// TreatyRuleRepository provides data access methods for the treaty_rule table.
// Rules are inserted by the data-loading process and read-only to the
// calculation path; the non-overlap invariant is enforced here, at ingestion.
type TreatyRuleRepository struct {
	db *sql.DB
}

// NewTreatyRuleRepository creates a new TreatyRuleRepository with the provided database connection.
func NewTreatyRuleRepository(db *sql.DB) *TreatyRuleRepository {
	return &TreatyRuleRepository{db: db}
}

const treatyRuleColumns = `id, source_country, residence_country, security_type,
	standard_withholding_rate, treaty_rate, relief_at_source_available,
	refund_procedure_available, effective_from, effective_to, created_at`

// Insert stores a new treaty rule. The insert runs in a transaction that
// first checks the non-overlap invariant for the rule's (source, residence,
// securityType) triple; a violation returns apperrors.ErrOverlappingRule and
// nothing is written.
func (s *TreatyRuleRepository) Insert(ctx context.Context, rule *model.TreatyRule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	overlapQuery := `
		SELECT COUNT(*)
		FROM treaty_rule
		WHERE source_country = ? AND residence_country = ? AND security_type = ?
		AND (effective_to IS NULL OR effective_to >= ?)
	`
	args := []any{rule.SourceCountry, rule.ResidenceCountry, string(rule.SecurityType), rule.EffectiveFrom.Format("2006-01-02")}
	if rule.EffectiveTo != nil {
		overlapQuery += ` AND effective_from <= ?`
		args = append(args, rule.EffectiveTo.Format("2006-01-02"))
	}

	var overlapping int
	if err := tx.QueryRowContext(ctx, overlapQuery, args...).Scan(&overlapping); err != nil {
		return fmt.Errorf("failed to check rule overlap: %w", err)
	}
	if overlapping > 0 {
		return fmt.Errorf("%w: %s->%s %s from %s", apperrors.ErrOverlappingRule,
			rule.SourceCountry, rule.ResidenceCountry, rule.SecurityType,
			rule.EffectiveFrom.Format("2006-01-02"))
	}

	insertQuery := `
		INSERT INTO treaty_rule (` + treatyRuleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, insertQuery,
		rule.ID,
		rule.SourceCountry,
		rule.ResidenceCountry,
		string(rule.SecurityType),
		rule.StandardWithholdingRate.String(),
		nullDecimalString(rule.TreatyRate),
		rule.ReliefAtSourceAvailable,
		rule.RefundProcedureAvailable,
		rule.EffectiveFrom.Format("2006-01-02"),
		nullTimeString(rule.EffectiveTo),
		rule.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert treaty rule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit treaty rule insert: %w", err)
	}
	return nil
}

// FindApplicable returns the single rule covering the given lookup key and
// reference date. By the non-overlap invariant at most one rule matches: no
// match is apperrors.ErrTreatyRuleNotFound, more than one means the store
// invariant is broken and resolution fails with
// apperrors.ErrDataInconsistency instead of picking a rule arbitrarily.
func (s *TreatyRuleRepository) FindApplicable(ctx context.Context, sourceCountry, residenceCountry string, securityType model.SecurityType, date time.Time) (*model.TreatyRule, error) {
	query := `
		SELECT ` + treatyRuleColumns + `
		FROM treaty_rule
		WHERE source_country = ? AND residence_country = ? AND security_type = ?
		AND effective_from <= ?
		AND (effective_to IS NULL OR effective_to >= ?)
		LIMIT 2
	`
	dateStr := date.Format("2006-01-02")
	rows, err := s.db.QueryContext(ctx, query, sourceCountry, residenceCountry, string(securityType), dateStr, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to query treaty rule: %w", err)
	}
	defer rows.Close()

	var matches []*model.TreatyRule
	for rows.Next() {
		rule, err := s.scanRule(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, rule)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating treaty_rule table: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, apperrors.ErrTreatyRuleNotFound
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%w: multiple treaty rules cover %s->%s %s on %s",
			apperrors.ErrDataInconsistency, sourceCountry, residenceCountry, securityType, dateStr)
	}
}

// GetByID retrieves a single treaty rule by its ID.
func (s *TreatyRuleRepository) GetByID(ctx context.Context, id string) (*model.TreatyRule, error) {
	query := `SELECT ` + treatyRuleColumns + ` FROM treaty_rule WHERE id = ?`
	rule, err := s.scanRule(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrTreatyRuleNotFound
		}
		return nil, fmt.Errorf("failed to query treaty rule: %w", err)
	}
	return rule, nil
}

// List retrieves all treaty rules ordered by country pair and validity start.
func (s *TreatyRuleRepository) List(ctx context.Context) ([]model.TreatyRule, error) {
	query := `
		SELECT ` + treatyRuleColumns + `
		FROM treaty_rule
		ORDER BY source_country, residence_country, security_type, effective_from
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query treaty_rule table: %w", err)
	}
	defer rows.Close()

	rules := make([]model.TreatyRule, 0)
	for rows.Next() {
		rule, err := s.scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating treaty_rule table: %w", err)
	}
	return rules, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func (s *TreatyRuleRepository) scanRule(row scanner) (*model.TreatyRule, error) {
	var r model.TreatyRule
	var securityType, standardRateStr, effectiveFromStr, createdAtStr string
	var treatyRateStr, effectiveToStr sql.NullString

	err := row.Scan(
		&r.ID,
		&r.SourceCountry,
		&r.ResidenceCountry,
		&securityType,
		&standardRateStr,
		&treatyRateStr,
		&r.ReliefAtSourceAvailable,
		&r.RefundProcedureAvailable,
		&effectiveFromStr,
		&effectiveToStr,
		&createdAtStr,
	)
	if err != nil {
		return nil, err
	}

	r.SecurityType = model.SecurityType(securityType)

	if r.StandardWithholdingRate, err = ParseDecimal(standardRateStr); err != nil {
		return nil, err
	}
	if r.TreatyRate, err = parseNullDecimal(treatyRateStr); err != nil {
		return nil, err
	}
	if r.EffectiveFrom, err = ParseTime(effectiveFromStr); err != nil {
		return nil, err
	}
	if r.EffectiveTo, err = parseNullTime(effectiveToStr); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return nil, err
	}

	return &r, nil
}
