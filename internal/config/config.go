package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Storage  StorageConfig
	Forms    FormsConfig
	Cache    CacheConfig
	Security SecurityConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// StorageConfig holds object-storage (MinIO/S3) configuration used for
// uploaded statements and generated form artifacts.
type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	Region        string
	PresignExpiry time.Duration
}

// FormsConfig holds form-generation configuration.
type FormsConfig struct {
	TemplateDir             string
	DefaultResidenceCountry string
	// Generated forms expire after this many days; the cleanup job removes
	// the row together with its stored artifact.
	RetentionDays int
}

// CacheConfig holds treaty-rule cache tuning.
type CacheConfig struct {
	RuleCacheSize int
	RuleCacheTTL  time.Duration
}

// SecurityConfig holds secrets used by the persistence layer.
type SecurityConfig struct {
	// Base64 fernet key used to encrypt tax IDs at rest. Empty disables
	// encryption (development only).
	FernetKey string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/reclaim.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
		Storage: StorageConfig{
			Endpoint:      getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKey:     getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:     getEnv("STORAGE_SECRET_KEY", ""),
			Bucket:        getEnv("STORAGE_BUCKET", "reclaim-documents"),
			UseSSL:        getEnvBool("STORAGE_USE_SSL", false),
			Region:        getEnv("STORAGE_REGION", "us-east-1"),
			PresignExpiry: getEnvDuration("STORAGE_PRESIGN_EXPIRY", time.Hour),
		},
		Forms: FormsConfig{
			TemplateDir:             getEnv("FORM_TEMPLATE_DIR", "./templates"),
			DefaultResidenceCountry: getEnv("DEFAULT_RESIDENCE_COUNTRY", "CH"),
			RetentionDays:           getEnvInt("FORM_RETENTION_DAYS", 90),
		},
		Cache: CacheConfig{
			RuleCacheSize: getEnvInt("RULE_CACHE_SIZE", 512),
			RuleCacheTTL:  getEnvDuration("RULE_CACHE_TTL", 15*time.Minute),
		},
		Security: SecurityConfig{
			FernetKey: getEnv("FERNET_KEY", ""),
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvDuration gets a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
