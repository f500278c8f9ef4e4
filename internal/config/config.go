package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Report source modes.
const (
	SourceLocal  = "local"
	SourceServer = "server"
	SourceAuto   = "auto"
)

type Config struct {
	// HTTP Server
	Port string

	// Finance backend
	BackendAPIURL  string
	BackendTimeout time.Duration
	ReportSource   string
	// JWTSecret is the HMAC key the backend signs access tokens with.
	JWTSecret string

	// Archive storage
	ArchiveBackend string
	SQLiteDBPath   string
	DatabaseURL    string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Cache
	CacheTTL  time.Duration
	CacheSize int

	LogLevel        string
	TypeAliasesFile string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		BackendAPIURL:  getEnv("BACKEND_API_URL", "http://localhost:8080/api"),
		BackendTimeout: getEnvDuration("BACKEND_TIMEOUT", 15*time.Second),
		ReportSource:   strings.ToLower(getEnv("REPORT_SOURCE", SourceAuto)),
		JWTSecret:      getEnv("JWT_SECRET", ""),

		ArchiveBackend: strings.ToLower(getEnv("ARCHIVE_BACKEND", "sqlite")),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/finreport.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finreport"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "report_exports"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Reports"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),

		CacheTTL:  getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSize: getEnvInt("CACHE_SIZE", 500),

		LogLevel:        getEnv("LOG_LEVEL", "info"),
		TypeAliasesFile: getEnv("TYPE_ALIASES_FILE", ""),
	}

	return cfg
}

// SheetsEnabled reports whether archived reports are exported to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.BackendAPIURL == "" {
		errors = append(errors, "backend API URL cannot be empty")
	} else if u, err := url.Parse(c.BackendAPIURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid backend API URL '%s': %v", c.BackendAPIURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid backend API URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}

	if c.BackendTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid backend timeout %v: must be at least 1 second", c.BackendTimeout))
	}

	if !oneOf(c.ReportSource, SourceLocal, SourceServer, SourceAuto) {
		errors = append(errors, fmt.Sprintf("invalid report source '%s': must be one of [local server auto]", c.ReportSource))
	}

	validBackends := []string{"memory", "sqlite", "postgres"}
	if !oneOf(c.ArchiveBackend, validBackends...) {
		errors = append(errors, fmt.Sprintf("invalid archive backend '%s': must be one of %v", c.ArchiveBackend, validBackends))
	}

	if c.ArchiveBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.ArchiveBackend == "postgres" {
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// URL")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}

	if !oneOf(strings.ToLower(c.LogLevel), "debug", "info", "warn", "warning", "error") {
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	if c.TypeAliasesFile != "" {
		if _, err := os.Stat(c.TypeAliasesFile); err != nil {
			errors = append(errors, fmt.Sprintf("type aliases file not readable: %s", c.TypeAliasesFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// minJWTSecretLen matches the 256-bit key size of HS256.
const minJWTSecretLen = 32

// ValidateServer checks the settings only the HTTP server needs. The worker
// never sees caller tokens.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to verify bearer tokens")
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLen)
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
