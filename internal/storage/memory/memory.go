// Package memory is an in-process ArchiveStore for tests and single-node
// setups that do not need persistence.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"finreport/internal/core"
	"finreport/internal/storage"
)

type key struct {
	userID int64
	year   int
	month  int
}

type Store struct {
	mu       sync.RWMutex
	nextID   int64
	archives map[int64]core.ReportArchive
	byPeriod map[key]int64
	now      func() time.Time
}

var _ storage.ArchiveStore = (*Store)(nil)

func New() *Store {
	return &Store{
		archives: make(map[int64]core.ReportArchive),
		byPeriod: make(map[key]int64),
		now:      time.Now,
	}
}

func (s *Store) SaveArchive(_ context.Context, a core.ReportArchive) (core.ReportArchive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	k := key{a.UserID, a.Year, a.Month}
	if id, ok := s.byPeriod[k]; ok {
		prev := s.archives[id]
		a.ID = id
		a.Version = prev.Version + 1
		a.CreatedAt = prev.CreatedAt
	} else {
		s.nextID++
		a.ID = s.nextID
		a.Version = 1
		a.CreatedAt = now
		s.byPeriod[k] = a.ID
	}
	a.UpdatedAt = now
	a.SyncStatus = core.SyncPending
	a.Rows = copyRows(a.Rows)
	s.archives[a.ID] = a

	out := a
	out.Rows = copyRows(a.Rows)
	return out, nil
}

func (s *Store) GetArchive(_ context.Context, id int64) (core.ReportArchive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.archives[id]
	if !ok {
		return core.ReportArchive{}, storage.ErrNotFound
	}
	a.Rows = copyRows(a.Rows)
	return a, nil
}

func (s *Store) FindArchive(ctx context.Context, userID int64, year, month int) (core.ReportArchive, error) {
	s.mu.RLock()
	id, ok := s.byPeriod[key{userID, year, month}]
	s.mu.RUnlock()
	if !ok {
		return core.ReportArchive{}, storage.ErrNotFound
	}
	return s.GetArchive(ctx, id)
}

func (s *Store) ListArchives(_ context.Context, userID int64) ([]core.ReportArchive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.ReportArchive, 0)
	for _, a := range s.archives {
		if a.UserID == userID {
			a.Rows = nil
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out, nil
}

func (s *Store) DeleteArchive(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.archives[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.archives, id)
	delete(s.byPeriod, key{a.UserID, a.Year, a.Month})
	return nil
}

func (s *Store) PendingSync(_ context.Context, limit int) ([]core.ReportArchive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.ReportArchive, 0)
	for _, a := range s.archives {
		if a.SyncStatus == core.SyncPending || a.SyncStatus == core.SyncError {
			a.Rows = nil
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id, version int64) error {
	s.setStatus(id, version, core.SyncDone)
	return nil
}

func (s *Store) MarkSyncError(_ context.Context, id, version int64) error {
	s.setStatus(id, version, core.SyncError)
	return nil
}

func (s *Store) setStatus(id, version int64, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.archives[id]
	if !ok || a.Version != version {
		return
	}
	a.SyncStatus = status
	s.archives[id] = a
}

func (s *Store) Close() error { return nil }

func copyRows(rows []core.ReportRow) []core.ReportRow {
	out := make([]core.ReportRow, len(rows))
	copy(out, rows)
	return out
}
