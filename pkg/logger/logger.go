package logger

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"
)

// ParseLevel maps a configured level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// New builds a logger writing JSON ("json") or colored text (anything else).
func New(writer io.Writer, level slog.Level, format string) *slog.Logger {
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				switch a.Key {
				case slog.TimeKey:
					a.Key = "timestamp"
				case slog.MessageKey:
					a.Key = "message"
				case slog.SourceKey:
					trimSource(a)
				}
				return a
			},
		}))
	}
	return slog.New(tint.NewHandler(writer, &tint.Options{
		AddSource: true,
		Level:     level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				trimSource(a)
			}
			return a
		},
	}))
}

// Init initializes the global slog logger.
func Init(writer io.Writer, level slog.Level, format string) *slog.Logger {
	logger := New(writer, level, format)
	slog.SetDefault(logger)
	return logger
}

func trimSource(a slog.Attr) {
	if source, ok := a.Value.Any().(*slog.Source); ok {
		source.File = filepath.Base(source.File)
	}
}
