package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finreport/internal/amqp"
	"finreport/internal/core"
	"finreport/internal/sheets"
	"finreport/internal/storage"
)

// SyncWorker exports archived reports to the configured ReportExporter.
type SyncWorker struct {
	storage   storage.ArchiveStore
	exporter  sheets.ReportExporter
	batchSize int

	// one export per archive at a time; the AMQP consumer and the pending
	// sweep can race on the same archive
	locksMu sync.Mutex
	locks   map[int64]*archiveLock
}

type archiveLock struct {
	mu   sync.Mutex
	refs int
}

func NewSyncWorker(store storage.ArchiveStore, exporter sheets.ReportExporter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   store,
		exporter:  exporter,
		batchSize: batchSize,
		locks:     make(map[int64]*archiveLock),
	}
}

// HandleSyncMessage processes a single report sync message from AMQP.
// Messages for versions older than the stored one are acknowledged without
// exporting.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ReportSyncMessage) error {
	slog.InfoContext(ctx, "Processing report sync message",
		"archive_id", msg.ID,
		"version", msg.Version,
		"message_id", msg.MessageID)

	if _, err := w.exportArchive(ctx, msg.ID, msg.Version); err != nil {
		return fmt.Errorf("export archive: %w", err)
	}
	return nil
}

// ProcessPending exports archives that are still pending or failed. It
// recovers from lost AMQP messages and worker downtime.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	synced, failed, err := w.processPending(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if synced+failed > 0 {
		slog.InfoContext(ctx, "Processed pending archives", "synced", synced, "errors", failed)
	}
	return nil
}

// StartupSyncCheck runs a larger pending sweep when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending archives found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed,
		"synced", synced,
		"errors", failed)
	return nil
}

// Run sweeps pending archives every interval until ctx is done.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Pending sweep failed", "error", err)
			}
		}
	}
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.storage.PendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending archives: %w", err)
	}

	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}

		exported, err := w.exportArchive(ctx, p.ID, 0)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export archive", "archive_id", p.ID, "error", err)
			failed++
			continue
		}
		if exported {
			synced++
		}
	}
	return synced, failed, nil
}

// exportArchive exports the stored archive id and reports whether it did.
// The archive is read under the per-archive lock, so a version another caller
// already exported is skipped. version is the version the caller was asked to
// export, 0 for whatever is current.
func (w *SyncWorker) exportArchive(ctx context.Context, id, version int64) (bool, error) {
	unlock := w.lock(id)
	defer unlock()

	archive, err := w.storage.GetArchive(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Archive no longer exists, dropping sync", "archive_id", id)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get archive from storage: %w", err)
	}

	if version > 0 && archive.Version > version {
		slog.InfoContext(ctx, "Skipping stale sync message",
			"archive_id", id,
			"message_version", version,
			"current_version", archive.Version)
		return false, nil
	}
	if archive.SyncStatus == core.SyncDone {
		slog.DebugContext(ctx, "Archive version already exported", "archive_id", id, "version", archive.Version)
		return false, nil
	}

	ref, err := w.exporter.ExportReport(ctx, archive)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, archive.ID, archive.Version); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "archive_id", archive.ID, "error", markErr)
		}
		return false, fmt.Errorf("export report: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, archive.ID, archive.Version); err != nil {
		// export went through; the next sweep re-exports and replaces the rows
		slog.ErrorContext(ctx, "Failed to mark as synced", "archive_id", archive.ID, "error", err)
	}

	slog.InfoContext(ctx, "Exported report archive",
		"archive_id", archive.ID,
		"user_id", archive.UserID,
		"year", archive.Year,
		"month", archive.Month,
		"version", archive.Version,
		"export_ref", ref,
		"rows", len(archive.Rows))
	return true, nil
}

// lock serializes exports of one archive. The entry is dropped once the last
// holder or waiter releases it.
func (w *SyncWorker) lock(id int64) func() {
	w.locksMu.Lock()
	l, ok := w.locks[id]
	if !ok {
		l = &archiveLock{}
		w.locks[id] = l
	}
	l.refs++
	w.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		w.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(w.locks, id)
		}
		w.locksMu.Unlock()
	}
}
