package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: ComponentReport,
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.InfoContext(context.Background(), "built", FieldRows, 3)
	entry := lastEntry(t, &buf)
	if entry["component"] != ComponentReport || entry[FieldRows] != float64(3) {
		t.Fatalf("unexpected entry: %v", entry)
	}

	logger.WithComponent(ComponentWorker).With(FieldArchiveID, 9).Warn("stale")
	entry = lastEntry(t, &buf)
	if entry["component"] != ComponentWorker || entry[FieldArchiveID] != float64(9) {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestFromContext(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got component %q", l.Component())
	}

	var buf bytes.Buffer
	logger := newBufferLogger(&buf)
	ctx := context.WithValue(context.Background(), LoggerContextKey, logger)
	if FromContext(ctx) != logger {
		t.Fatal("expected logger from context")
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf))
	ctx := context.Background()

	sl.LogReportBuilt(ctx, 2024, 3, "local", 4, true)
	entry := lastEntry(t, &buf)
	if entry[FieldYear] != float64(2024) || entry[FieldMonth] != float64(3) || entry[FieldPartial] != true {
		t.Fatalf("unexpected report entry: %v", entry)
	}

	sl.LogArchiveSaved(ctx, 11, 7, 2, 2024, 3)
	entry = lastEntry(t, &buf)
	if entry[FieldArchiveID] != float64(11) || entry[FieldVersion] != float64(2) || entry[FieldOperation] != OpCreate {
		t.Fatalf("unexpected archive entry: %v", entry)
	}

	sl.LogError(ctx, "failed", errors.New("boom"), ComponentHTTP, OpRead,
		NewFields().WithRequestID("req_1").WithErrorType(ErrorTypeInternal))
	entry = lastEntry(t, &buf)
	if entry["level"] != "ERROR" || entry[FieldError] != "boom" || entry[FieldErrorType] != ErrorTypeInternal || entry[FieldRequestID] != "req_1" {
		t.Fatalf("unexpected error entry: %v", entry)
	}
}

func TestWithPeriodOmitsZeroMonth(t *testing.T) {
	f := NewFields().WithPeriod(2024, 0)
	if _, ok := f[FieldMonth]; ok {
		t.Fatal("month should be omitted for yearly periods")
	}
	if f[FieldYear] != 2024 {
		t.Fatalf("unexpected fields: %v", f)
	}
}

func TestComponentAttachedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf).With(FieldUserID, 7).WithComponent(ComponentHTTP)

	logger.InfoContext(context.Background(), "request")
	line := strings.TrimSpace(buf.String())
	if n := strings.Count(line, `"component"`); n != 1 {
		t.Fatalf("expected one component attribute, got %d in %s", n, line)
	}
	entry := lastEntry(t, &buf)
	if entry["component"] != ComponentHTTP || entry[FieldUserID] != float64(7) {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
