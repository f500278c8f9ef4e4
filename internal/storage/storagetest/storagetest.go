// Package storagetest holds the behaviour every ArchiveStore must share.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"finreport/internal/core"
	"finreport/internal/storage"
)

func sampleArchive(userID int64, year, month int) core.ReportArchive {
	rows := []core.ReportRow{
		core.NewReportRow("Ăn uống", decimal.NewFromInt(500000), decimal.NewFromInt(3000000)),
		core.NewReportRow("Di chuyển", decimal.RequireFromString("1200.5"), decimal.NewFromInt(1000)),
	}
	return core.ReportArchive{
		UserID: userID,
		Year:   year,
		Month:  month,
		Source: core.SourceLocal,
		Rows:   rows,
		Summary: core.Summary{
			TotalIncome:     decimal.NewFromInt(15000000),
			TotalExpense:    decimal.RequireFromString("501200.5"),
			TotalBudget:     decimal.NewFromInt(3001000),
			ExpectedSavings: decimal.NewFromInt(11999000),
			ActualSavings:   decimal.RequireFromString("14498799.5"),
		},
	}
}

// Run exercises store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.ArchiveStore) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		s := newStore(t)
		saved, err := s.SaveArchive(ctx, sampleArchive(7, 2024, 1))
		if err != nil {
			t.Fatalf("SaveArchive: %v", err)
		}
		if saved.ID == 0 || saved.Version != 1 || saved.SyncStatus != core.SyncPending {
			t.Fatalf("unexpected saved archive %+v", saved)
		}

		got, err := s.GetArchive(ctx, saved.ID)
		if err != nil {
			t.Fatalf("GetArchive: %v", err)
		}
		if got.UserID != 7 || got.Year != 2024 || got.Month != 1 || got.Source != core.SourceLocal {
			t.Fatalf("unexpected archive %+v", got)
		}
		if len(got.Rows) != 2 || got.Rows[0].CategoryName != "Ăn uống" || got.Rows[1].CategoryName != "Di chuyển" {
			t.Fatalf("rows not kept in order: %+v", got.Rows)
		}
		if !got.Rows[1].AmountSpent.Equal(decimal.RequireFromString("1200.5")) {
			t.Fatalf("amount lost precision: %s", got.Rows[1].AmountSpent)
		}
		if !got.Rows[1].Difference.Equal(decimal.RequireFromString("-200.5")) {
			t.Fatalf("difference not recomputed: %s", got.Rows[1].Difference)
		}
		if !got.Summary.ActualSavings.Equal(decimal.RequireFromString("14498799.5")) {
			t.Fatalf("summary not kept: %+v", got.Summary)
		}
	})

	t.Run("re-archive bumps version", func(t *testing.T) {
		s := newStore(t)
		first, err := s.SaveArchive(ctx, sampleArchive(7, 2024, 2))
		if err != nil {
			t.Fatalf("SaveArchive: %v", err)
		}
		if err := s.MarkSynced(ctx, first.ID, first.Version); err != nil {
			t.Fatalf("MarkSynced: %v", err)
		}

		next := sampleArchive(7, 2024, 2)
		next.Rows = next.Rows[:1]
		second, err := s.SaveArchive(ctx, next)
		if err != nil {
			t.Fatalf("SaveArchive: %v", err)
		}
		if second.ID != first.ID || second.Version != 2 || second.SyncStatus != core.SyncPending {
			t.Fatalf("expected same id with version 2, got %+v", second)
		}

		got, err := s.FindArchive(ctx, 7, 2024, 2)
		if err != nil {
			t.Fatalf("FindArchive: %v", err)
		}
		if len(got.Rows) != 1 || got.Version != 2 {
			t.Fatalf("expected replaced rows, got %+v", got)
		}
	})

	t.Run("not found", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.GetArchive(ctx, 999); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := s.FindArchive(ctx, 1, 2024, 1); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := s.DeleteArchive(ctx, 999); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list per user newest first", func(t *testing.T) {
		s := newStore(t)
		for _, p := range [][2]int{{2023, 12}, {2024, 3}, {2024, 1}} {
			if _, err := s.SaveArchive(ctx, sampleArchive(7, p[0], p[1])); err != nil {
				t.Fatalf("SaveArchive: %v", err)
			}
		}
		if _, err := s.SaveArchive(ctx, sampleArchive(8, 2024, 5)); err != nil {
			t.Fatalf("SaveArchive: %v", err)
		}

		list, err := s.ListArchives(ctx, 7)
		if err != nil {
			t.Fatalf("ListArchives: %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("expected 3 archives, got %d", len(list))
		}
		if list[0].Month != 3 || list[1].Month != 1 || list[2].Year != 2023 {
			t.Fatalf("unexpected order: %+v", list)
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		a, _ := s.SaveArchive(ctx, sampleArchive(7, 2024, 4))
		if err := s.DeleteArchive(ctx, a.ID); err != nil {
			t.Fatalf("DeleteArchive: %v", err)
		}
		if _, err := s.GetArchive(ctx, a.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		again, err := s.SaveArchive(ctx, sampleArchive(7, 2024, 4))
		if err != nil || again.Version != 1 {
			t.Fatalf("expected fresh archive after delete, got %+v %v", again, err)
		}
	})

	t.Run("pending sync and stale marks", func(t *testing.T) {
		s := newStore(t)
		a, _ := s.SaveArchive(ctx, sampleArchive(7, 2024, 6))
		b, _ := s.SaveArchive(ctx, sampleArchive(7, 2024, 7))

		pending, err := s.PendingSync(ctx, 10)
		if err != nil {
			t.Fatalf("PendingSync: %v", err)
		}
		if len(pending) != 2 {
			t.Fatalf("expected 2 pending, got %d", len(pending))
		}
		if limited, _ := s.PendingSync(ctx, 1); len(limited) != 1 {
			t.Fatalf("expected limit to apply, got %d", len(limited))
		}

		if err := s.MarkSynced(ctx, a.ID, a.Version); err != nil {
			t.Fatalf("MarkSynced: %v", err)
		}
		if err := s.MarkSyncError(ctx, b.ID, b.Version); err != nil {
			t.Fatalf("MarkSyncError: %v", err)
		}
		pending, _ = s.PendingSync(ctx, 10)
		if len(pending) != 1 || pending[0].ID != b.ID || pending[0].SyncStatus != core.SyncError {
			t.Fatalf("expected only b pending with error, got %+v", pending)
		}

		// a newer version must not be marked synced by an old export
		b2, _ := s.SaveArchive(ctx, sampleArchive(7, 2024, 7))
		if err := s.MarkSynced(ctx, b.ID, b.Version); err != nil {
			t.Fatalf("MarkSynced: %v", err)
		}
		got, _ := s.GetArchive(ctx, b.ID)
		if got.Version != b2.Version || got.SyncStatus != core.SyncPending {
			t.Fatalf("stale mark applied: %+v", got)
		}
	})
}
