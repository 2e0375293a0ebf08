// Package logger is the process-wide levelled logger used by every
// control2310 component.
//
// Messages are printf-style. Output is either a single text line
//
//	[2006-01-02 15:04:05] [INFO] message
//
// or one JSON object per line, rendered by log/slog's JSON handler, when the
// format is "json". The default sink is
// stderr: stdout is reserved for the assigned-port line printed at startup.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Format selects how log records are rendered.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

var (
	currentLevel  atomic.Int32
	currentFormat atomic.Int32

	outMu      sync.Mutex
	out        io.Writer = os.Stderr
	jsonLogger           = newJSONLogger(os.Stderr)
)

// newJSONLogger accepts every level; filtering happens in log.
func newJSONLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func init() {
	currentLevel.Store(int32(LevelInfo))
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel sets the minimum level. Unknown names leave the level unchanged.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel.Store(int32(LevelDebug))
	case "INFO":
		currentLevel.Store(int32(LevelInfo))
	case "WARN":
		currentLevel.Store(int32(LevelWarn))
	case "ERROR":
		currentLevel.Store(int32(LevelError))
	}
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	return Level(currentLevel.Load())
}

// SetFormat selects "text" or "json" rendering. Unknown names select text.
func SetFormat(format string) {
	if strings.EqualFold(format, "json") {
		currentFormat.Store(int32(FormatJSON))
		return
	}
	currentFormat.Store(int32(FormatText))
}

// SetOutput redirects all subsequent records to w.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out = w
	jsonLogger = newJSONLogger(w)
}

// OpenOutput resolves a configured output name to a writer: "stdout",
// "stderr", or a file path opened for appending.
func OpenOutput(name string) (io.Writer, error) {
	switch strings.ToLower(name) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	}

	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log output %q: %w", name, err)
	}
	return f, nil
}

func log(level Level, format string, v ...any) {
	if level < GetLevel() {
		return
	}

	message := fmt.Sprintf(format, v...)

	outMu.Lock()
	defer outMu.Unlock()

	if Format(currentFormat.Load()) == FormatJSON {
		jsonLogger.Log(context.Background(), level.slogLevel(), message)
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	_, _ = fmt.Fprintf(out, "[%s] [%s] %s\n", timestamp, level.String(), message)
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
