package backend

import (
	"errors"
	"fmt"

	"finreport/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	store := StoreType(appConfig.ArchiveBackend)
	if !store.IsValid() {
		return Config{}, fmt.Errorf("invalid archive backend in config: %s", appConfig.ArchiveBackend)
	}

	return Config{
		Store: store,

		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Store.IsValid() {
		return fmt.Errorf("invalid archive store: %s", c.Store)
	}

	switch c.Store {
	case SQLiteStore:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite store")
		}
	case PostgresStore:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for postgres store")
		}
	}

	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return errors.New("AMQP exchange and queue are required when AMQP URL is set")
	}
	return nil
}

// SheetsEnabled reports whether archives are exported to Google Sheets.
func (c Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// GetStoreTypes returns all valid store types
func GetStoreTypes() []StoreType {
	return []StoreType{SQLiteStore, PostgresStore, MemoryStore}
}

// GetStoreTypeStrings returns all valid store type strings
func GetStoreTypeStrings() []string {
	types := GetStoreTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
