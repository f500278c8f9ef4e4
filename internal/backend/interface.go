package backend

import (
	"context"

	"finreport/internal/amqp"
	"finreport/internal/services"
	"finreport/internal/sheets"
	"finreport/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the archive infrastructure built from configuration.
// Broker is nil when no AMQP URL is configured or the broker is unreachable.
type BackendResult struct {
	Store    storage.ArchiveStore
	Broker   *amqp.Client
	Exporter sheets.ReportExporter
	Cleanup  CleanupFunc
}

// Publisher returns the broker as a services.Publisher, or nil without one.
func (r *BackendResult) Publisher() services.Publisher {
	if r.Broker == nil {
		return nil
	}
	return r.Broker
}

// Factory creates archive backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// StoreType represents the kind of archive store
type StoreType string

const (
	SQLiteStore   StoreType = "sqlite"
	PostgresStore StoreType = "postgres"
	MemoryStore   StoreType = "memory"
)

// String implements fmt.Stringer
func (st StoreType) String() string {
	return string(st)
}

// IsValid returns true if the store type is valid
func (st StoreType) IsValid() bool {
	switch st {
	case SQLiteStore, PostgresStore, MemoryStore:
		return true
	default:
		return false
	}
}

// Config holds configuration for backend creation
type Config struct {
	Store StoreType

	SQLiteDBPath string
	DatabaseURL  string

	// Broker is optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sheets export is enabled when a spreadsheet ID is set
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}
