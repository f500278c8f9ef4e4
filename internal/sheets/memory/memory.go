package memory

import (
	"context"
	"fmt"
	"sync"

	"finreport/internal/core"
)

// Exporter keeps the latest exported version of each archive in memory. It
// stands in for Google Sheets when no spreadsheet is configured.
type Exporter struct {
	mu      sync.Mutex
	reports map[int64]core.ReportArchive
	calls   int
	err     error
}

func New() *Exporter {
	return &Exporter{reports: make(map[int64]core.ReportArchive)}
}

// ExportReport stores a copy of the archive and returns a synthetic reference.
func (e *Exporter) ExportReport(_ context.Context, a core.ReportArchive) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	if a.ID <= 0 {
		return "", fmt.Errorf("export report: invalid archive id %d", a.ID)
	}
	a.Rows = append([]core.ReportRow(nil), a.Rows...)
	e.reports[a.ID] = a
	return fmt.Sprintf("mem:%d:v%d", a.ID, a.Version), nil
}

// Exported returns the last exported snapshot of an archive.
func (e *Exporter) Exported(id int64) (core.ReportArchive, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.reports[id]
	if ok {
		a.Rows = append([]core.ReportRow(nil), a.Rows...)
	}
	return a, ok
}

// Calls counts ExportReport invocations, failed ones included.
func (e *Exporter) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// SetError makes subsequent exports fail with err. Pass nil to recover.
func (e *Exporter) SetError(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}
