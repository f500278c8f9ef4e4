package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"finreport/internal/core"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ArchiveStore = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) SaveArchive(ctx context.Context, a core.ReportArchive) (core.ReportArchive, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return a, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now().UTC()
	var existingID, version int64
	var createdAt string
	err = tx.QueryRowContext(ctx,
		`SELECT id, version, created_at FROM report_archives WHERE user_id = ? AND year = ? AND month = ?`,
		a.UserID, a.Year, a.Month).Scan(&existingID, &version, &createdAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
			INSERT INTO report_archives
				(user_id, year, month, source, version, sync_status,
				 total_income, total_expense, total_budget, expected_savings, actual_savings,
				 created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.UserID, a.Year, a.Month, a.Source, core.SyncPending,
			a.Summary.TotalIncome.String(), a.Summary.TotalExpense.String(), a.Summary.TotalBudget.String(),
			a.Summary.ExpectedSavings.String(), a.Summary.ActualSavings.String(),
			now.Format(timeLayout), now.Format(timeLayout))
		if err != nil {
			return a, fmt.Errorf("insert archive: %w", err)
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return a, fmt.Errorf("archive id: %w", err)
		}
		a.Version = 1
		a.CreatedAt = now
	case err != nil:
		return a, fmt.Errorf("find archive: %w", err)
	default:
		version++
		_, err := tx.ExecContext(ctx, `
			UPDATE report_archives
			SET source = ?, version = ?, sync_status = ?,
			    total_income = ?, total_expense = ?, total_budget = ?, expected_savings = ?, actual_savings = ?,
			    updated_at = ?, synced_at = NULL
			WHERE id = ?`,
			a.Source, version, core.SyncPending,
			a.Summary.TotalIncome.String(), a.Summary.TotalExpense.String(), a.Summary.TotalBudget.String(),
			a.Summary.ExpectedSavings.String(), a.Summary.ActualSavings.String(),
			now.Format(timeLayout), existingID)
		if err != nil {
			return a, fmt.Errorf("update archive: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM report_archive_rows WHERE archive_id = ?`, existingID); err != nil {
			return a, fmt.Errorf("clear archive rows: %w", err)
		}
		a.ID = existingID
		a.Version = version
		a.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	}

	for i, row := range a.Rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO report_archive_rows (archive_id, position, category_name, amount_spent, amount_limit)
			VALUES (?, ?, ?, ?, ?)`,
			a.ID, i, row.CategoryName, row.AmountSpent.String(), row.AmountLimit.String())
		if err != nil {
			return a, fmt.Errorf("insert archive row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return a, fmt.Errorf("commit archive: %w", err)
	}

	a.SyncStatus = core.SyncPending
	a.UpdatedAt = now

	slog.InfoContext(ctx, "Report archive saved to SQLite",
		"id", a.ID,
		"user_id", a.UserID,
		"year", a.Year,
		"month", a.Month,
		"version", a.Version,
		"rows", len(a.Rows))

	return a, nil
}

const archiveColumns = `id, user_id, year, month, source, version, sync_status,
	total_income, total_expense, total_budget, expected_savings, actual_savings,
	created_at, updated_at`

func (r *SQLiteRepository) GetArchive(ctx context.Context, id int64) (core.ReportArchive, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+archiveColumns+` FROM report_archives WHERE id = ?`, id)
	return r.loadArchive(ctx, row)
}

func (r *SQLiteRepository) FindArchive(ctx context.Context, userID int64, year, month int) (core.ReportArchive, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+archiveColumns+` FROM report_archives WHERE user_id = ? AND year = ? AND month = ?`,
		userID, year, month)
	return r.loadArchive(ctx, row)
}

func (r *SQLiteRepository) loadArchive(ctx context.Context, row *sql.Row) (core.ReportArchive, error) {
	a, err := scanArchive(row)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	if err != nil {
		return a, fmt.Errorf("get archive: %w", err)
	}
	if a.Rows, err = r.archiveRows(ctx, a.ID); err != nil {
		return a, err
	}
	return a, nil
}

func (r *SQLiteRepository) archiveRows(ctx context.Context, id int64) ([]core.ReportRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category_name, amount_spent, amount_limit
		FROM report_archive_rows WHERE archive_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get archive rows: %w", err)
	}
	defer rows.Close()

	out := make([]core.ReportRow, 0)
	for rows.Next() {
		var name string
		var spent, limit decimal.Decimal
		if err := rows.Scan(&name, &spent, &limit); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		out = append(out, core.NewReportRow(name, spent, limit))
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListArchives(ctx context.Context, userID int64) ([]core.ReportArchive, error) {
	return r.queryArchives(ctx,
		`SELECT `+archiveColumns+` FROM report_archives WHERE user_id = ? ORDER BY year DESC, month DESC`,
		userID)
}

func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.ReportArchive, error) {
	return r.queryArchives(ctx,
		`SELECT `+archiveColumns+` FROM report_archives
		 WHERE sync_status IN (?, ?) ORDER BY updated_at, id LIMIT ?`,
		core.SyncPending, core.SyncError, limit)
}

func (r *SQLiteRepository) queryArchives(ctx context.Context, query string, args ...any) ([]core.ReportArchive, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	out := make([]core.ReportArchive, 0)
	for rows.Next() {
		a, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteArchive(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_archive_rows WHERE archive_id = ?`, id); err != nil {
		return fmt.Errorf("delete archive rows: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM report_archives WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete archive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, version int64) error {
	now := r.now().UTC().Format(timeLayout)
	_, err := r.db.ExecContext(ctx,
		`UPDATE report_archives SET sync_status = ?, synced_at = ? WHERE id = ? AND version = ?`,
		core.SyncDone, now, id, version)
	if err != nil {
		return fmt.Errorf("mark archive %d synced: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE report_archives SET sync_status = ? WHERE id = ? AND version = ?`,
		core.SyncError, id, version)
	if err != nil {
		return fmt.Errorf("mark archive %d sync error: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArchive(s scanner) (core.ReportArchive, error) {
	var a core.ReportArchive
	var createdAt, updatedAt string
	err := s.Scan(&a.ID, &a.UserID, &a.Year, &a.Month, &a.Source, &a.Version, &a.SyncStatus,
		&a.Summary.TotalIncome, &a.Summary.TotalExpense, &a.Summary.TotalBudget,
		&a.Summary.ExpectedSavings, &a.Summary.ActualSavings,
		&createdAt, &updatedAt)
	if err != nil {
		return a, err
	}
	a.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	a.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return a, nil
}
