package service

import (
	"context"
	"strings"
	"time"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/api/request"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/repository"
)

// ProfileService manages the identity data projected onto tax forms.
type ProfileService struct {
	userRepo                *repository.UserRepository
	defaultResidenceCountry string
	now                     func() time.Time
}

// NewProfileService creates a new ProfileService with the provided repository dependency.
func NewProfileService(userRepo *repository.UserRepository, defaultResidenceCountry string) *ProfileService {
	return &ProfileService{
		userRepo:                userRepo,
		defaultResidenceCountry: defaultResidenceCountry,
		now:                     time.Now,
	}
}

// GetProfile retrieves the user's profile.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	return s.userRepo.GetProfile(ctx, userID)
}

// UpsertProfile creates or replaces the user's profile. The residence
// country defaults to the configured country when not given.
func (s *ProfileService) UpsertProfile(ctx context.Context, userID string, req request.UpsertProfileRequest) (*model.UserProfile, error) {
	country := strings.ToUpper(req.CountryOfResidence)
	if country == "" {
		country = s.defaultResidenceCountry
	}

	p := &model.UserProfile{
		UserID:             userID,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Street:             req.Street,
		PostalCode:         req.PostalCode,
		City:               req.City,
		Canton:             req.Canton,
		CountryOfResidence: country,
		TaxID:              req.TaxID,
		Email:              req.Email,
		UpdatedAt:          s.now().UTC(),
	}
	if err := s.userRepo.UpsertProfile(ctx, p); err != nil {
		return nil, err
	}
	return s.userRepo.GetProfile(ctx, userID)
}
