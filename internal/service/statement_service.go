package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/parser"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/repository"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/validation"
)

// statementTransitions is the allowed-transition table: strictly forward,
// single-step. PAID has no entry and is terminal. Kept decoupled from the
// entity as a pure lookup.
var statementTransitions = map[model.StatementStatus]model.StatementStatus{
	model.StatementUploaded:  model.StatementParsing,
	model.StatementParsing:   model.StatementParsed,
	model.StatementParsed:    model.StatementValidated,
	model.StatementValidated: model.StatementSent,
	model.StatementSent:      model.StatementPaid,
}

// CanTransition reports whether a statement may move from one status to
// another in a single step.
func CanTransition(from, to model.StatementStatus) bool {
	next, ok := statementTransitions[from]
	return ok && next == to
}

// TransitionOptions carries the optional data a transition may require.
// SentMethod is mandatory when entering SENT; PaidAmount is optional when
// entering PAID.
type TransitionOptions struct {
	SentMethod model.SentMethod
	SentNotes  string
	PaidAmount *decimal.Decimal
}

// StatementService governs the broker-statement lifecycle state machine and
// the dividends attached to each statement.
type StatementService struct {
	statementRepo *repository.StatementRepository
	parser        parser.StatementParser
	now           func() time.Time
}

// NewStatementService creates a new StatementService. The parser handles
// statement files ingested through IngestFile; parsing collaborators that
// run out of process deliver their records via ApplyParsedResult instead.
func NewStatementService(statementRepo *repository.StatementRepository, statementParser parser.StatementParser) *StatementService {
	return &StatementService{
		statementRepo: statementRepo,
		parser:        statementParser,
		now:           time.Now,
	}
}

// CreateStatement registers a freshly uploaded statement in status UPLOADED.
func (s *StatementService) CreateStatement(ctx context.Context, ownerUserID, sourceFileRef, broker string, periodStart, periodEnd time.Time) (*model.DividendStatement, error) {
	now := s.now().UTC()
	st := &model.DividendStatement{
		ID:               uuid.New().String(),
		OwnerUserID:      ownerUserID,
		SourceFileRef:    sourceFileRef,
		Broker:           broker,
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		Status:           model.StatementUploaded,
		TotalGrossAmount: decimal.Zero,
		TotalReclaimable: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.statementRepo.Insert(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// GetStatement retrieves a statement by ID.
func (s *StatementService) GetStatement(ctx context.Context, id string) (*model.DividendStatement, error) {
	return s.statementRepo.GetByID(ctx, id)
}

// ListStatements retrieves all statements owned by a user.
func (s *StatementService) ListStatements(ctx context.Context, userID string) ([]model.DividendStatement, error) {
	return s.statementRepo.ListByUser(ctx, userID)
}

// Transition advances a statement to the requested status. Any transition
// not in the allowed table, including no-ops and backward moves, fails
// with an InvalidTransitionError naming both states. Entering SENT requires
// a sent method (rejected before any write); entering PAID accepts an
// optional paid amount. The underlying update is guarded on the current
// status, so concurrent transition attempts serialize: the loser observes
// the stale status and gets the same InvalidTransitionError.
func (s *StatementService) Transition(ctx context.Context, statementID string, target model.StatementStatus, opts TransitionOptions) (*model.DividendStatement, error) {
	st, err := s.statementRepo.GetByID(ctx, statementID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(st.Status, target) {
		return nil, &apperrors.InvalidTransitionError{
			Current:   string(st.Status),
			Requested: string(target),
		}
	}

	if target == model.StatementSent && opts.SentMethod == "" {
		return nil, &validation.Error{Fields: map[string]string{
			"sentMethod": apperrors.ErrSentMethodRequired.Error(),
		}}
	}

	updated, err := s.statementRepo.UpdateStatus(ctx, statementID, st.Status, repository.StatusUpdate{
		Target:     target,
		Timestamp:  s.now(),
		SentMethod: opts.SentMethod,
		SentNotes:  opts.SentNotes,
		PaidAmount: opts.PaidAmount,
	})
	if err != nil {
		return nil, err
	}
	if !updated {
		// Lost a race: re-read so the error names the actual current status.
		current, rerr := s.statementRepo.GetByID(ctx, statementID)
		if rerr != nil {
			return nil, rerr
		}
		return nil, &apperrors.InvalidTransitionError{
			Current:   string(current.Status),
			Requested: string(target),
		}
	}

	return s.statementRepo.GetByID(ctx, statementID)
}

// ApplyParsedResult records the outcome of the external parsing collaborator:
// it materializes the parsed dividend records as rows owned by the statement
// and stamps the statement's summary metadata, atomically with the rows.
// It does not change the statement's status; driving PARSING -> PARSED is a
// separate Transition call.
func (s *StatementService) ApplyParsedResult(ctx context.Context, statementID string, result parser.ParseResult) ([]model.Dividend, error) {
	st, err := s.statementRepo.GetByID(ctx, statementID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	totalGross := decimal.Zero
	totalReclaimable := decimal.Zero

	dividends := make([]model.Dividend, 0, len(result.Dividends))
	for _, rec := range result.Dividends {
		source := rec.SourceCountry
		if source == "" {
			derived, err := validation.CountryFromIsin(rec.Isin)
			if err != nil {
				return nil, err
			}
			source = derived
		}

		dividends = append(dividends, model.Dividend{
			ID:              uuid.New().String(),
			OwnerUserID:     st.OwnerUserID,
			StatementID:     st.ID,
			SecurityName:    rec.SecurityName,
			Isin:            rec.Isin,
			PaymentDate:     rec.PaymentDate,
			GrossAmount:     rec.GrossAmount,
			Currency:        rec.Currency,
			SourceCountry:   source,
			WithholdingTax:  rec.WithholdingTax,
			WithholdingRate: rec.WithholdingRate,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		totalGross = totalGross.Add(rec.GrossAmount)
	}

	if err := s.statementRepo.ApplyParsedResult(ctx, statementID, dividends, totalGross, totalReclaimable); err != nil {
		return nil, err
	}
	return dividends, nil
}

// IngestFile runs the configured parser over an uploaded statement file and
// drives the statement from UPLOADED through PARSING into PARSED,
// materializing the extracted dividends. A parse or persistence failure
// leaves the statement in PARSING; the corrected records can still be
// delivered through ApplyParsedResult and a transition.
func (s *StatementService) IngestFile(ctx context.Context, statementID string, fileBytes []byte) ([]model.Dividend, error) {
	if _, err := s.Transition(ctx, statementID, model.StatementParsing, TransitionOptions{}); err != nil {
		return nil, err
	}

	result, err := s.parser.Parse(ctx, fileBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnparsableStatement, err)
	}

	dividends, err := s.ApplyParsedResult(ctx, statementID, result)
	if err != nil {
		return nil, err
	}

	if _, err := s.Transition(ctx, statementID, model.StatementParsed, TransitionOptions{}); err != nil {
		return nil, err
	}
	return dividends, nil
}
