package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
)

// RuleStore is the slice of the treaty-rule repository the resolver needs.
// It is an interface so tests can observe how often the store is hit.
type RuleStore interface {
	FindApplicable(ctx context.Context, sourceCountry, residenceCountry string, securityType model.SecurityType, date time.Time) (*model.TreatyRule, error)
	Insert(ctx context.Context, rule *model.TreatyRule) error
	List(ctx context.Context) ([]model.TreatyRule, error)
}

// ruleCacheEntry is a cached positive or negative resolution. A nil rule
// records a NotFound so repeated misses don't re-query the store.
type ruleCacheEntry struct {
	rule *model.TreatyRule
}

// TreatyRuleService resolves the applicable treaty rule for a lookup key,
// with a bounded TTL cache in front of the rule store. The cache is owned by
// the service instance, never process-global, and is safe for concurrent use;
// no lock is held across a store fetch, so a miss on one key does not block
// other keys.
type TreatyRuleService struct {
	rules RuleStore
	cache *expirable.LRU[string, ruleCacheEntry]
	now   func() time.Time // injected clock for "today" defaults in tests
}

// NewTreatyRuleService creates a TreatyRuleService with a cache of the given
// capacity and TTL.
func NewTreatyRuleService(rules RuleStore, cacheSize int, cacheTTL time.Duration) *TreatyRuleService {
	return &TreatyRuleService{
		rules: rules,
		cache: expirable.NewLRU[string, ruleCacheEntry](cacheSize, nil, cacheTTL),
		now:   time.Now,
	}
}

// Resolve returns the single treaty rule applicable to the given source and
// residence countries, security type and reference date. Inputs are
// normalized to uppercase; a zero securityType defaults to EQUITY and a zero
// referenceDate defaults to today. Returns apperrors.ErrTreatyRuleNotFound
// when no rule covers the date; store errors propagate and are not cached.
func (s *TreatyRuleService) Resolve(ctx context.Context, sourceCountry, residenceCountry string, securityType model.SecurityType, referenceDate time.Time) (*model.TreatyRule, error) {
	source := strings.ToUpper(strings.TrimSpace(sourceCountry))
	residence := strings.ToUpper(strings.TrimSpace(residenceCountry))
	secType := model.SecurityType(strings.ToUpper(strings.TrimSpace(string(securityType))))
	if secType == "" {
		secType = model.SecurityTypeEquity
	}
	if referenceDate.IsZero() {
		referenceDate = s.now()
	}

	key := fmt.Sprintf("%s|%s|%s|%s", source, residence, secType, referenceDate.Format("2006-01-02"))

	if entry, ok := s.cache.Get(key); ok {
		if entry.rule == nil {
			return nil, apperrors.ErrTreatyRuleNotFound
		}
		return entry.rule, nil
	}

	rule, err := s.rules.FindApplicable(ctx, source, residence, secType, referenceDate)
	if err != nil {
		if errors.Is(err, apperrors.ErrTreatyRuleNotFound) {
			s.cache.Add(key, ruleCacheEntry{})
			return nil, apperrors.ErrTreatyRuleNotFound
		}
		return nil, err
	}

	s.cache.Add(key, ruleCacheEntry{rule: rule})
	return rule, nil
}

// CreateRule ingests a new treaty rule. Countries and the security type are
// normalized to uppercase; the store rejects overlapping validity ranges with
// apperrors.ErrOverlappingRule. The cache is purged so stale resolutions
// cannot outlive an administrative correction.
func (s *TreatyRuleService) CreateRule(ctx context.Context, rule *model.TreatyRule) (*model.TreatyRule, error) {
	rule.ID = uuid.New().String()
	rule.SourceCountry = strings.ToUpper(strings.TrimSpace(rule.SourceCountry))
	rule.ResidenceCountry = strings.ToUpper(strings.TrimSpace(rule.ResidenceCountry))
	rule.SecurityType = model.SecurityType(strings.ToUpper(strings.TrimSpace(string(rule.SecurityType))))
	if rule.SecurityType == "" {
		rule.SecurityType = model.SecurityTypeEquity
	}
	rule.CreatedAt = s.now().UTC()

	if rule.StandardWithholdingRate.IsNegative() {
		return nil, apperrors.ErrNegativeAmount
	}
	if rule.TreatyRate != nil && rule.TreatyRate.IsNegative() {
		return nil, apperrors.ErrNegativeAmount
	}

	if err := s.rules.Insert(ctx, rule); err != nil {
		return nil, err
	}

	s.cache.Purge()
	return rule, nil
}

// ListRules retrieves all treaty rules.
func (s *TreatyRuleService) ListRules(ctx context.Context) ([]model.TreatyRule, error) {
	return s.rules.List(ctx)
}
