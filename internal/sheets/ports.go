package sheets

import (
	"context"

	"finreport/internal/core"
)

// Ports for outbound adapters.
type (
	// ReportExporter publishes an archived report to an external destination
	// and returns a reference to where it was written.
	ReportExporter interface {
		ExportReport(ctx context.Context, a core.ReportArchive) (ref string, err error)
	}
)
