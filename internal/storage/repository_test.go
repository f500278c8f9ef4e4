package storage_test

import (
	"path/filepath"
	"testing"

	"finreport/internal/storage"
	"finreport/internal/storage/storagetest"
)

func TestSQLiteRepository(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.ArchiveStore {
		repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "finreport.db"))
		if err != nil {
			t.Fatalf("NewSQLiteRepository: %v", err)
		}
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finreport.db")
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer repo.Close()

	if err := storage.RunMigrations(path); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
}
