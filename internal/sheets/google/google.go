package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"finreport/internal/core"
	ports "finreport/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// header is written when the target sheet is empty.
var header = []any{"Archive", "Year", "Month", "Category", "Spent", "Limit", "Difference", "Version"}

// Options selects the spreadsheet and the service account used to write it.
type Options struct {
	SpreadsheetID   string
	SheetName       string // base name, the report year is prefixed
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var _ ports.ReportExporter = (*Client)(nil)

// New creates a Sheets exporter authenticated with service account
// credentials. Extra client options are passed to the Sheets service.
func New(ctx context.Context, opts Options, extra ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Reports"
	}

	var svcOpts []goption.ClientOption
	if len(extra) == 0 {
		creds, err := readCredentials(ctx, opts)
		if err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts,
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	svcOpts = append(svcOpts, extra...)

	svc, err := gsheet.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready",
		"component", "sheets", "spreadsheet_id", spreadsheetID, "sheet_base", base)
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: base}, nil
}

// readCredentials loads service account JSON from Options, falling back to
// GOOGLE_APPLICATION_CREDENTIALS.
func readCredentials(ctx context.Context, opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials", "component", "sheets")
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account file", "component", "sheets", "path", file, "size", len(b))
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ExportReport writes one row per category of the archive to the
// "<year> <base>" sheet. Rows previously exported for the same archive are
// cleared first, so the sheet holds only the latest version.
func (c *Client) ExportReport(ctx context.Context, a core.ReportArchive) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if a.ID <= 0 {
		return "", fmt.Errorf("export report: invalid archive id %d", a.ID)
	}
	if err := core.ValidateYearMonth(a.Year, a.Month); err != nil {
		return "", fmt.Errorf("export report: %w", err)
	}

	sheet := yearPrefixedName(c.sheetBase, a.Year)
	rng := fmt.Sprintf("%s!A:H", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rng, err)
	}

	if stale := archiveRows(resp.Values, a.ID); len(stale) > 0 {
		ranges := make([]string, len(stale))
		for i, n := range stale {
			ranges[i] = fmt.Sprintf("%s!A%d:H%d", sheet, n, n)
		}
		_, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID,
			&gsheet.BatchClearValuesRequest{Ranges: ranges}).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("clear previous rows in %s: %w", sheet, err)
		}
		slog.DebugContext(ctx, "Cleared previously exported rows",
			"component", "sheets", "archive_id", a.ID, "rows", len(stale))
	}

	values := reportValues(a)
	if len(resp.Values) == 0 {
		values = append([][]any{header}, values...)
	}
	if len(values) == 0 {
		return sheet, nil
	}

	out, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := sheet
	if out.Updates != nil && out.Updates.UpdatedRange != "" {
		ref = out.Updates.UpdatedRange
	}
	return ref, nil
}

func reportValues(a core.ReportArchive) [][]any {
	values := make([][]any, 0, len(a.Rows))
	for _, r := range a.Rows {
		values = append(values, []any{
			a.ID,
			a.Year,
			a.Month,
			r.CategoryName,
			r.AmountSpent.InexactFloat64(),
			r.AmountLimit.InexactFloat64(),
			r.Difference.InexactFloat64(),
			a.Version,
		})
	}
	return values
}

// archiveRows returns the 1-based sheet row numbers holding rows of the
// archive. The header and rows with a non-numeric first column are skipped.
func archiveRows(values [][]any, id int64) []int {
	var rows []int
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) == 0 {
			continue
		}
		got, err := strconv.ParseInt(cols[0], 10, 64)
		if err != nil || got != id {
			continue
		}
		rows = append(rows, i+1)
	}
	return rows
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
