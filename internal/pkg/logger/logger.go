package logger

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Logger wraps slog with a component convention: every subsystem gets
// a child logger tagged with its name.
type Logger struct {
	*slog.Logger
}

func New(cfg *Config) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      cfg.SlogLevel(),
			AddSource:  cfg.AddSource,
			TimeFormat: "15:04:05",
		})
	default:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     cfg.SlogLevel(),
			AddSource: cfg.AddSource,
		})
	}

	return &Logger{slog.New(handler)}, nil
}

func (l *Logger) Component(name string) *Logger {
	return &Logger{l.Logger.With("component", name)}
}
