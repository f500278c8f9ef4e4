package postgres

import (
	"context"
	"os"
	"testing"

	"finreport/internal/storage"
	"finreport/internal/storage/storagetest"
)

// Runs against a disposable database named by TEST_DATABASE_URL.
func TestStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	storagetest.Run(t, func(t *testing.T) storage.ArchiveStore {
		ctx := context.Background()
		s, err := New(ctx, url)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := s.pool.Exec(ctx, `TRUNCATE report_archive_rows, report_archives RESTART IDENTITY`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}
