package log

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger tagged with the component it logs for. The
// component attribute is attached once, so WithComponent replaces it rather
// than adding a second one.
type Logger struct {
	*slog.Logger
	component string

	// base carries every attribute except component
	base *slog.Logger
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

// DefaultConfig logs Info and above as text to stdout.
func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: "app",
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}
}

func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.Level,
		})
	}
	return wrap(slog.New(handler), config.Component)
}

func wrap(base *slog.Logger, component string) *Logger {
	l := &Logger{Logger: base, component: component, base: base}
	if component != "" {
		l.Logger = base.With("component", component)
	}
	return l
}

// With returns a logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		component: l.component,
		base:      l.base.With(args...),
	}
}

// WithComponent returns a logger tagged with component instead of the
// current one.
func (l *Logger) WithComponent(component string) *Logger {
	return wrap(l.base, component)
}

// SetDefault sets the default logger for the application
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

func (l *Logger) Component() string {
	return l.component
}

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
