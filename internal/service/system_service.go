package service

import (
	"database/sql"

	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/database"
	"github.com/treatyflow/Dividend-Reclaim-Backend/internal/version"
)

// SystemService answers the unauthenticated health and version endpoints.
type SystemService struct {
	db *sql.DB
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB) *SystemService {
	return &SystemService{
		db: db,
	}
}

// CheckHealth reports whether the database behind the reclaim services is
// reachable.
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

func (s *SystemService) CheckVersion() string {
	return version.Version
}
