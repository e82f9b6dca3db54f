package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/request"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/repository"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/validation"
)

// DividendService manages manually entered dividends. Statement-extracted
// dividends are created through StatementService.ApplyParsedResult instead.
type DividendService struct {
	dividendRepo *repository.DividendRepository
	now          func() time.Time
}

// NewDividendService creates a new DividendService with the provided repository dependency.
func NewDividendService(dividendRepo *repository.DividendRepository) *DividendService {
	return &DividendService{
		dividendRepo: dividendRepo,
		now:          time.Now,
	}
}

// CreateDividend registers a manually entered dividend for the user. The
// source country falls back to the ISIN prefix when not given; the request
// must already be validated.
func (s *DividendService) CreateDividend(ctx context.Context, userID string, req request.CreateDividendRequest) (*model.Dividend, error) {
	paymentDate, err := request.ParseDate(req.PaymentDate)
	if err != nil {
		return nil, &validation.Error{Fields: map[string]string{"paymentDate": "must be a date in YYYY-MM-DD format"}}
	}

	source := req.SourceCountry
	if source == "" {
		source, err = validation.CountryFromIsin(req.Isin)
		if err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	d := &model.Dividend{
		ID:              uuid.New().String(),
		OwnerUserID:     userID,
		SecurityName:    req.SecurityName,
		Isin:            req.Isin,
		PaymentDate:     paymentDate,
		GrossAmount:     req.GrossAmount,
		Currency:        req.Currency,
		SourceCountry:   source,
		WithholdingTax:  req.WithholdingTax,
		WithholdingRate: req.WithholdingRate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.dividendRepo.Insert(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// GetDividend retrieves a dividend owned by the user.
func (s *DividendService) GetDividend(ctx context.Context, userID, dividendID string) (*model.Dividend, error) {
	d, err := s.dividendRepo.GetByID(ctx, dividendID)
	if err != nil {
		return nil, err
	}
	if d.OwnerUserID != userID {
		return nil, apperrors.ErrDividendNotFound
	}
	return d, nil
}

// ListDividends retrieves all dividends owned by the user. When
// unsubmittedOnly is set, dividends already attached to a generated form are
// excluded.
func (s *DividendService) ListDividends(ctx context.Context, userID string, unsubmittedOnly bool) ([]model.Dividend, error) {
	if unsubmittedOnly {
		return s.dividendRepo.ListUnsubmittedByUser(ctx, userID)
	}
	return s.dividendRepo.ListByUser(ctx, userID)
}

// DeleteDividend removes a dividend owned by the user. Dividends already
// attached to a generated form cannot be deleted.
func (s *DividendService) DeleteDividend(ctx context.Context, userID, dividendID string) error {
	if _, err := s.GetDividend(ctx, userID, dividendID); err != nil {
		return err
	}
	return s.dividendRepo.Delete(ctx, dividendID)
}
