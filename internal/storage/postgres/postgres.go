// Package postgres stores report archives in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finreport/internal/core"
	"finreport/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS report_archives (
    id               BIGSERIAL PRIMARY KEY,
    user_id          BIGINT      NOT NULL,
    year             INT         NOT NULL,
    month            INT         NOT NULL CHECK (month BETWEEN 1 AND 12),
    source           TEXT        NOT NULL DEFAULT 'local',
    version          BIGINT      NOT NULL DEFAULT 1,
    sync_status      TEXT        NOT NULL DEFAULT 'pending',
    total_income     NUMERIC     NOT NULL DEFAULT 0,
    total_expense    NUMERIC     NOT NULL DEFAULT 0,
    total_budget     NUMERIC     NOT NULL DEFAULT 0,
    expected_savings NUMERIC     NOT NULL DEFAULT 0,
    actual_savings   NUMERIC     NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    synced_at        TIMESTAMPTZ,
    UNIQUE (user_id, year, month)
);
CREATE INDEX IF NOT EXISTS idx_report_archives_sync ON report_archives (sync_status, updated_at);
CREATE TABLE IF NOT EXISTS report_archive_rows (
    archive_id    BIGINT  NOT NULL REFERENCES report_archives (id) ON DELETE CASCADE,
    position      INT     NOT NULL,
    category_name TEXT    NOT NULL,
    amount_spent  NUMERIC NOT NULL,
    amount_limit  NUMERIC NOT NULL,
    PRIMARY KEY (archive_id, position)
);`

type Store struct {
	pool *pgxpool.Pool
}

var _ storage.ArchiveStore = (*Store)(nil)

// New connects to databaseURL and ensures the schema exists.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) SaveArchive(ctx context.Context, a core.ReportArchive) (core.ReportArchive, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return a, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO report_archives
			(user_id, year, month, source, version, sync_status,
			 total_income, total_expense, total_budget, expected_savings, actual_savings)
		VALUES ($1, $2, $3, $4, 1, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, year, month) DO UPDATE SET
			source = EXCLUDED.source,
			version = report_archives.version + 1,
			sync_status = EXCLUDED.sync_status,
			total_income = EXCLUDED.total_income,
			total_expense = EXCLUDED.total_expense,
			total_budget = EXCLUDED.total_budget,
			expected_savings = EXCLUDED.expected_savings,
			actual_savings = EXCLUDED.actual_savings,
			updated_at = now(),
			synced_at = NULL
		RETURNING id, version, created_at, updated_at`,
		a.UserID, a.Year, a.Month, a.Source, core.SyncPending,
		a.Summary.TotalIncome, a.Summary.TotalExpense, a.Summary.TotalBudget,
		a.Summary.ExpectedSavings, a.Summary.ActualSavings,
	).Scan(&a.ID, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, fmt.Errorf("upsert archive: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM report_archive_rows WHERE archive_id = $1`, a.ID); err != nil {
		return a, fmt.Errorf("clear archive rows: %w", err)
	}

	batch := &pgx.Batch{}
	for i, row := range a.Rows {
		batch.Queue(`
			INSERT INTO report_archive_rows (archive_id, position, category_name, amount_spent, amount_limit)
			VALUES ($1, $2, $3, $4, $5)`,
			a.ID, i, row.CategoryName, row.AmountSpent, row.AmountLimit)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return a, fmt.Errorf("insert archive rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return a, fmt.Errorf("commit archive: %w", err)
	}
	a.SyncStatus = core.SyncPending

	slog.InfoContext(ctx, "Report archive saved to Postgres",
		"id", a.ID, "user_id", a.UserID, "year", a.Year, "month", a.Month, "version", a.Version)
	return a, nil
}

const archiveColumns = `id, user_id, year, month, source, version, sync_status,
	total_income, total_expense, total_budget, expected_savings, actual_savings,
	created_at, updated_at`

func (s *Store) GetArchive(ctx context.Context, id int64) (core.ReportArchive, error) {
	return s.loadArchive(ctx, `SELECT `+archiveColumns+` FROM report_archives WHERE id = $1`, id)
}

func (s *Store) FindArchive(ctx context.Context, userID int64, year, month int) (core.ReportArchive, error) {
	return s.loadArchive(ctx,
		`SELECT `+archiveColumns+` FROM report_archives WHERE user_id = $1 AND year = $2 AND month = $3`,
		userID, year, month)
}

func (s *Store) loadArchive(ctx context.Context, query string, args ...any) (core.ReportArchive, error) {
	a, err := scanArchive(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return a, storage.ErrNotFound
	}
	if err != nil {
		return a, fmt.Errorf("get archive: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT category_name, amount_spent, amount_limit
		FROM report_archive_rows WHERE archive_id = $1 ORDER BY position`, a.ID)
	if err != nil {
		return a, fmt.Errorf("get archive rows: %w", err)
	}
	defer rows.Close()

	a.Rows = make([]core.ReportRow, 0)
	for rows.Next() {
		var r core.ReportRow
		if err := rows.Scan(&r.CategoryName, &r.AmountSpent, &r.AmountLimit); err != nil {
			return a, fmt.Errorf("scan archive row: %w", err)
		}
		a.Rows = append(a.Rows, core.NewReportRow(r.CategoryName, r.AmountSpent, r.AmountLimit))
	}
	return a, rows.Err()
}

func (s *Store) ListArchives(ctx context.Context, userID int64) ([]core.ReportArchive, error) {
	return s.queryArchives(ctx,
		`SELECT `+archiveColumns+` FROM report_archives WHERE user_id = $1 ORDER BY year DESC, month DESC`,
		userID)
}

func (s *Store) PendingSync(ctx context.Context, limit int) ([]core.ReportArchive, error) {
	return s.queryArchives(ctx,
		`SELECT `+archiveColumns+` FROM report_archives
		 WHERE sync_status IN ($1, $2) ORDER BY updated_at, id LIMIT $3`,
		core.SyncPending, core.SyncError, limit)
}

func (s *Store) queryArchives(ctx context.Context, query string, args ...any) ([]core.ReportArchive, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *Store) DeleteArchive(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM report_archives WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete archive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) MarkSynced(ctx context.Context, id, version int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE report_archives SET sync_status = $1, synced_at = now() WHERE id = $2 AND version = $3`,
		core.SyncDone, id, version)
	if err != nil {
		return fmt.Errorf("mark archive %d synced: %w", id, err)
	}
	return nil
}

func (s *Store) MarkSyncError(ctx context.Context, id, version int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE report_archives SET sync_status = $1 WHERE id = $2 AND version = $3`,
		core.SyncError, id, version)
	if err != nil {
		return fmt.Errorf("mark archive %d sync error: %w", id, err)
	}
	return nil
}

func scanArchive(row pgx.Row) (core.ReportArchive, error) {
	var a core.ReportArchive
	err := row.Scan(&a.ID, &a.UserID, &a.Year, &a.Month, &a.Source, &a.Version, &a.SyncStatus,
		&a.Summary.TotalIncome, &a.Summary.TotalExpense, &a.Summary.TotalBudget,
		&a.Summary.ExpectedSavings, &a.Summary.ActualSavings,
		&a.CreatedAt, &a.UpdatedAt)
	return a, err
}
