// Package storage persists archived monthly reports.
package storage

import (
	"context"
	"errors"

	"finreport/internal/core"
)

var ErrNotFound = errors.New("archive not found")

// ArchiveStore is implemented by the SQLite, Postgres and memory stores.
type ArchiveStore interface {
	// SaveArchive inserts the archive for (UserID, Year, Month), or replaces
	// the stored one and bumps its version. The returned archive carries the
	// assigned ID, Version and timestamps, with SyncStatus pending.
	SaveArchive(ctx context.Context, a core.ReportArchive) (core.ReportArchive, error)
	GetArchive(ctx context.Context, id int64) (core.ReportArchive, error)
	FindArchive(ctx context.Context, userID int64, year, month int) (core.ReportArchive, error)
	// ListArchives returns the user's archives newest period first, without rows.
	ListArchives(ctx context.Context, userID int64) ([]core.ReportArchive, error)
	DeleteArchive(ctx context.Context, id int64) error

	// PendingSync returns up to limit archives awaiting export, oldest first,
	// without rows.
	PendingSync(ctx context.Context, limit int) ([]core.ReportArchive, error)
	// MarkSynced and MarkSyncError only apply when version is still current.
	MarkSynced(ctx context.Context, id, version int64) error
	MarkSyncError(ctx context.Context, id, version int64) error

	Close() error
}
