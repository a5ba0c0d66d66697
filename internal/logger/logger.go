// Package logger builds the run logger that writes every record both to the
// console and to a per-run file under the log directory.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Constants for different environment types.
const (
	EnvLocal = "local"
	EnvDev   = "development"
	EnvProd  = "production"
)

const (
	fileTimeLayout   = "20060102_150405"
	recordTimeLayout = "2006-01-02 15:04:05"
	logDirPerm       = 0o755
)

// FileName returns the name of the log file for a run started at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("geocoding_log_%s.txt", now.Format(fileTimeLayout))
}

// Logger is a slog.Logger bound to a log file that must be closed at the end
// of the run.
type Logger struct {
	*slog.Logger

	file *os.File
}

// Path returns the path of the log file.
func (l *Logger) Path() string {
	return l.file.Name()
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("failed to sync log file: %w", err)
	}

	return l.file.Close()
}

// New creates the log directory if needed, opens a fresh log file named after
// now and returns a logger writing to both console and that file.
func New(env, dir string, now time.Time, console io.Writer) (*Logger, error) {
	if err := os.MkdirAll(dir, logDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.Create(filepath.Join(dir, FileName(now)))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	return &Logger{
		Logger: setupLogger(env, io.MultiWriter(console, file)),
		file:   file,
	}, nil
}

// formatTime renders record timestamps in a compact local format.
func formatTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		return slog.String(slog.TimeKey, a.Value.Time().Format(recordTimeLayout))
	}
	return a
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string, out io.Writer) *slog.Logger {
	var log *slog.Logger

	switch env {
	case EnvLocal:
		log = slog.New(
			slog.NewTextHandler(out, &slog.HandlerOptions{
				Level:       slog.LevelDebug,
				ReplaceAttr: formatTime,
			}),
		)
	case EnvDev:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{
				Level:       slog.LevelInfo,
				ReplaceAttr: formatTime,
			}),
		)
	case EnvProd:
		log = slog.New(
			slog.NewJSONHandler(out, &slog.HandlerOptions{
				Level:       slog.LevelWarn,
				ReplaceAttr: formatTime,
			}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(out, &slog.HandlerOptions{
				Level:       slog.LevelInfo,
				ReplaceAttr: formatTime,
			}),
		)

		log.Warn(
			"The env parameter was not specified or was invalid. Using info level by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
