package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/repository"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/validation"
)

// batchParallelism bounds concurrent per-dividend calculations in a batch.
const batchParallelism = 4

// CalculationResult is the outcome of a single dividend's reclaim
// calculation. Warnings (no treaty found, reclaim clamped to zero) are
// carried as notes, not errors.
type CalculationResult struct {
	DividendID        string           `json:"dividendId"`
	Isin              string           `json:"isin"`
	GrossAmount       decimal.Decimal  `json:"grossAmount"`
	WithholdingTax    decimal.Decimal  `json:"withholdingTax"`
	WithholdingRate   decimal.Decimal  `json:"withholdingRate"`
	TreatyRate        *decimal.Decimal `json:"treatyRate,omitempty"`
	TreatyWithholding decimal.Decimal  `json:"treatyWithholding"`
	ReclaimableAmount decimal.Decimal  `json:"reclaimableAmount"`
	TreatyApplied     bool             `json:"treatyApplied"`
	Notes             []string         `json:"notes,omitempty"`
	Err               string           `json:"error,omitempty"` // per-item validation failure in a batch
}

// BatchResult aggregates a batch calculation. Results preserve input order;
// totals cover successful items only, computed decimal-exact.
type BatchResult struct {
	Results          []CalculationResult `json:"results"`
	SuccessCount     int                 `json:"successCount"`
	FailureCount     int                 `json:"failureCount"`
	TotalGross       decimal.Decimal     `json:"totalGross"`
	TotalWithholding decimal.Decimal     `json:"totalWithholding"`
	TotalReclaimable decimal.Decimal     `json:"totalReclaimable"`
	Errors           []string            `json:"errors,omitempty"`
	Warnings         []string            `json:"warnings,omitempty"`
}

// ReclaimService computes reclaimable withholding-tax amounts for dividends
// using the treaty-rule resolver. All monetary arithmetic is fixed-point
// decimal; binary floats never touch currency values.
type ReclaimService struct {
	resolver     *TreatyRuleService
	dividendRepo *repository.DividendRepository
}

// NewReclaimService creates a new ReclaimService with the provided dependencies.
func NewReclaimService(resolver *TreatyRuleService, dividendRepo *repository.DividendRepository) *ReclaimService {
	return &ReclaimService{
		resolver:     resolver,
		dividendRepo: dividendRepo,
	}
}

// CalculateOne computes withholding and reclaim amounts for a single dividend
// against the given residence country. A missing treaty rule is not an error:
// the reclaim is zero and a note explains why. A reclaim is never negative;
// when the treaty-equivalent withholding meets or exceeds the actual
// withholding the amount is clamped to zero with a warning note.
func (s *ReclaimService) CalculateOne(ctx context.Context, dividend model.Dividend, residenceCountry string) (CalculationResult, error) {
	result := CalculationResult{
		DividendID:      dividend.ID,
		Isin:            dividend.Isin,
		GrossAmount:     dividend.GrossAmount,
		WithholdingTax:  dividend.WithholdingTax,
		WithholdingRate: dividend.WithholdingRate,
	}

	source := dividend.SourceCountry
	if source == "" {
		derived, err := validation.CountryFromIsin(dividend.Isin)
		if err != nil {
			return result, err
		}
		source = derived
	}

	rule, err := s.resolver.Resolve(ctx, source, residenceCountry, model.SecurityTypeEquity, dividend.PaymentDate)
	if err != nil {
		if errors.Is(err, apperrors.ErrTreatyRuleNotFound) {
			result.ReclaimableAmount = decimal.Zero
			result.TreatyApplied = false
			result.Notes = append(result.Notes, fmt.Sprintf(
				"no treaty rule found for %s->%s on %s; reclaimable set to 0",
				source, residenceCountry, dividend.PaymentDate.Format("2006-01-02")))
			return result, nil
		}
		return result, err
	}

	if rule.TreatyRate == nil {
		result.ReclaimableAmount = decimal.Zero
		result.TreatyApplied = false
		result.Notes = append(result.Notes, fmt.Sprintf(
			"treaty between %s and %s grants no reduced rate; reclaimable set to 0",
			source, residenceCountry))
		return result, nil
	}

	result.TreatyRate = rule.TreatyRate
	result.TreatyApplied = true
	result.TreatyWithholding = dividend.GrossAmount.Mul(*rule.TreatyRate).Div(decimal.NewFromInt(100)).Round(2)

	reclaimable := dividend.WithholdingTax.Sub(result.TreatyWithholding)
	if reclaimable.IsNegative() {
		// A reclaim cannot be negative: over-treaty withholding in the other
		// direction is out of scope for a refund claim.
		result.Notes = append(result.Notes, fmt.Sprintf(
			"treaty-equivalent withholding %s exceeds actual withholding %s; reclaimable clamped to 0",
			result.TreatyWithholding, dividend.WithholdingTax))
		reclaimable = decimal.Zero
	}
	result.ReclaimableAmount = reclaimable.Round(2)

	return result, nil
}

// CalculateAndUpdate computes the reclaim for a stored dividend and persists
// the resulting rate and amount fields onto it.
func (s *ReclaimService) CalculateAndUpdate(ctx context.Context, dividendID, residenceCountry string) (CalculationResult, error) {
	dividend, err := s.dividendRepo.GetByID(ctx, dividendID)
	if err != nil {
		return CalculationResult{}, err
	}

	result, err := s.CalculateOne(ctx, *dividend, residenceCountry)
	if err != nil {
		return result, err
	}

	reclaimable := result.ReclaimableAmount
	if err := s.dividendRepo.UpdateCalculation(ctx, dividendID, dividend.WithholdingRate, result.TreatyRate, &reclaimable); err != nil {
		return result, err
	}
	return result, nil
}

// CalculateBatch computes reclaims for many dividends. Each item is
// independent: a malformed dividend is captured as a per-item error and does
// not abort the batch, while a rule-store failure is fatal for the whole
// call. Items run with bounded parallelism; results are collected in input
// order because totals and form line placement depend on it.
func (s *ReclaimService) CalculateBatch(ctx context.Context, dividends []model.Dividend, residenceCountry string) (BatchResult, error) {
	batch := BatchResult{
		Results:          make([]CalculationResult, len(dividends)),
		TotalGross:       decimal.Zero,
		TotalWithholding: decimal.Zero,
		TotalReclaimable: decimal.Zero,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchParallelism)

	for i, dividend := range dividends {
		i, dividend := i, dividend
		g.Go(func() error {
			result, err := s.CalculateOne(gctx, dividend, residenceCountry)
			if err != nil {
				if isItemFailure(err) {
					result.Err = err.Error()
					batch.Results[i] = result
					return nil
				}
				return err
			}
			batch.Results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}

	for _, result := range batch.Results {
		if result.Err != "" {
			batch.FailureCount++
			batch.Errors = append(batch.Errors, fmt.Sprintf("dividend %s (%s): %s", result.DividendID, result.Isin, result.Err))
			continue
		}
		batch.SuccessCount++
		batch.TotalGross = batch.TotalGross.Add(result.GrossAmount)
		batch.TotalWithholding = batch.TotalWithholding.Add(result.WithholdingTax)
		batch.TotalReclaimable = batch.TotalReclaimable.Add(result.ReclaimableAmount)
		for _, note := range result.Notes {
			batch.Warnings = append(batch.Warnings, fmt.Sprintf("dividend %s (%s): %s", result.DividendID, result.Isin, note))
		}
	}

	return batch, nil
}

// CalculateForUser runs a batch calculation over the user's unsubmitted
// dividends (no attached form) without persisting anything.
func (s *ReclaimService) CalculateForUser(ctx context.Context, userID, residenceCountry string) (BatchResult, error) {
	dividends, err := s.dividendRepo.ListUnsubmittedByUser(ctx, userID)
	if err != nil {
		return BatchResult{}, err
	}
	return s.CalculateBatch(ctx, dividends, residenceCountry)
}

// CalculateAndUpdateForUser runs a batch calculation over the user's
// unsubmitted dividends and persists each successful result.
func (s *ReclaimService) CalculateAndUpdateForUser(ctx context.Context, userID, residenceCountry string) (BatchResult, error) {
	dividends, err := s.dividendRepo.ListUnsubmittedByUser(ctx, userID)
	if err != nil {
		return BatchResult{}, err
	}

	batch, err := s.CalculateBatch(ctx, dividends, residenceCountry)
	if err != nil {
		return BatchResult{}, err
	}

	for i, result := range batch.Results {
		if result.Err != "" {
			continue
		}
		reclaimable := result.ReclaimableAmount
		if err := s.dividendRepo.UpdateCalculation(ctx, result.DividendID, dividends[i].WithholdingRate, result.TreatyRate, &reclaimable); err != nil {
			return BatchResult{}, err
		}
	}
	return batch, nil
}

// isItemFailure reports whether a calculation error is a per-item validation
// problem (bad ISIN, unknown country) rather than an infrastructure failure.
func isItemFailure(err error) bool {
	var verr *validation.Error
	return errors.As(err, &verr) ||
		errors.Is(err, apperrors.ErrDividendNotFound) ||
		errors.Is(err, validation.ErrInvalidIsin)
}
