package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finreport/internal/amqp"
	"finreport/internal/sheets"
	gsheet "finreport/internal/sheets/google"
	sheetsmem "finreport/internal/sheets/memory"
	"finreport/internal/storage"
	"finreport/internal/storage/memory"
	"finreport/internal/storage/postgres"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend builds the archive store, the optional broker client and the
// report exporter. Cleanup closes whatever was opened.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}

	exporter, err := f.createExporter(ctx, config)
	if err != nil {
		store.Close()
		return nil, err
	}

	broker := f.createBroker(config)

	f.logger.Info("Initialized archive backend",
		"store", config.Store,
		"amqp_enabled", broker != nil,
		"sheets_enabled", config.SheetsEnabled())

	return &BackendResult{
		Store:    store,
		Broker:   broker,
		Exporter: exporter,
		Cleanup: func() error {
			var errs []error
			if broker != nil {
				if err := broker.Close(); err != nil {
					errs = append(errs, fmt.Errorf("close amqp client: %w", err))
				}
			}
			if err := store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close archive store: %w", err))
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (storage.ArchiveStore, error) {
	switch config.Store {
	case SQLiteStore:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite archive store", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresStore:
		store, err := postgres.New(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres archive store")
		return store, nil
	case MemoryStore:
		f.logger.Warn("Using in-memory archive store, archives are lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported archive store: %s", config.Store)
	}
}

func (f *DefaultFactory) createExporter(ctx context.Context, config Config) (sheets.ReportExporter, error) {
	if !config.SheetsEnabled() {
		f.logger.Info("Google Sheets export disabled, using in-memory exporter")
		return sheetsmem.New(), nil
	}
	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return cli, nil
}

// createBroker returns nil when AMQP is not configured or unreachable. The
// worker's pending sweep covers archives whose sync message was never sent.
func (f *DefaultFactory) createBroker(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without sync messages", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
