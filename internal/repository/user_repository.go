package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/apperrors"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/model"
)

// UserRepository provides data access methods for the user_profile table.
// Tax IDs are fernet-encrypted at rest when a key is configured; reads
// transparently decrypt.
type UserRepository struct {
	db   *sql.DB
	keys []*fernet.Key
}

// NewUserRepository creates a new UserRepository. fernetKey is the base64
// encryption key for tax IDs; empty disables encryption (development only).
func NewUserRepository(db *sql.DB, fernetKey string) (*UserRepository, error) {
	repo := &UserRepository{db: db}
	if fernetKey != "" {
		keys, err := fernet.DecodeKeys(fernetKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decode fernet key: %w", err)
		}
		repo.keys = keys
	}
	return repo, nil
}

const profileColumns = `user_id, first_name, last_name, street, postal_code,
	city, canton, country_of_residence, tax_id, email, created_at, updated_at`

// GetProfile retrieves a user's profile by user ID.
func (s *UserRepository) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profile WHERE user_id = ?`

	var p model.UserProfile
	var taxID, createdAtStr, updatedAtStr string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID,
		&p.FirstName,
		&p.LastName,
		&p.Street,
		&p.PostalCode,
		&p.City,
		&p.Canton,
		&p.CountryOfResidence,
		&taxID,
		&p.Email,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to query user profile: %w", err)
	}

	p.TaxID = s.decryptTaxID(taxID)

	if p.CreatedAt, err = ParseTime(createdAtStr); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = ParseTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile inserts or replaces a user's profile.
func (s *UserRepository) UpsertProfile(ctx context.Context, p *model.UserProfile) error {
	taxID, err := s.encryptTaxID(p.TaxID)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO user_profile (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			street = excluded.street,
			postal_code = excluded.postal_code,
			city = excluded.city,
			canton = excluded.canton,
			country_of_residence = excluded.country_of_residence,
			tax_id = excluded.tax_id,
			email = excluded.email,
			updated_at = excluded.updated_at
	`
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, query,
		p.UserID,
		p.FirstName,
		p.LastName,
		p.Street,
		p.PostalCode,
		p.City,
		p.Canton,
		p.CountryOfResidence,
		taxID,
		p.Email,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user profile: %w", err)
	}
	return nil
}

func (s *UserRepository) encryptTaxID(taxID string) (string, error) {
	if len(s.keys) == 0 || taxID == "" {
		return taxID, nil
	}
	tok, err := fernet.EncryptAndSign([]byte(taxID), s.keys[0])
	if err != nil {
		return "", fmt.Errorf("failed to encrypt tax ID: %w", err)
	}
	return string(tok), nil
}

func (s *UserRepository) decryptTaxID(stored string) string {
	if len(s.keys) == 0 || stored == "" {
		return stored
	}
	msg := fernet.VerifyAndDecrypt([]byte(stored), 0, s.keys)
	if msg == nil {
		// Legacy plaintext value written before encryption was enabled.
		return stored
	}
	return string(msg)
}
