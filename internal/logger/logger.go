package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

var levelVar = new(slog.LevelVar)

var L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))

// SetLevel configures the global log level (debug, info, warn, error).
func SetLevel(lvl string) {
	switch strings.ToLower(lvl) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// Setup replaces L with a logger writing text to stderr and, when logFile is
// set, JSON to that file. The returned func closes the file.
func Setup(logFile string) func() error {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})
	if logFile == "" {
		L = slog.New(stderrHandler)
		return func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		L = slog.New(stderrHandler)
		L.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return func() error { return nil }
	}

	L = newFanout(os.Stderr, file)
	return file.Close
}

// SetupWithWriters is Setup with caller-provided writers, for tests.
func SetupWithWriters(stderr, file io.Writer) {
	L = newFanout(stderr, file)
}

func newFanout(stderr, file io.Writer) *slog.Logger {
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: levelVar}),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: levelVar}),
	))
}
