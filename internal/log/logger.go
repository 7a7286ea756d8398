// SPDX-License-Identifier: MIT
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

var (
	currentLevel atomic.Uint32
	output       atomic.Pointer[stdlog.Logger]
)

func init() {
	SetOutput(os.Stderr)
	SetLevel(LevelInfo)
}

// SetOutput redirects all log output to w. Safe to call while other
// goroutines are logging.
func SetOutput(w io.Writer) {
	output.Store(stdlog.New(w, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds))
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// SetLevelString parses levelStr and applies it. Unknown names leave the
// level untouched and return false.
func SetLevelString(levelStr string) bool {
	level, ok := ParseLevel(levelStr)
	if ok {
		SetLevel(level)
	}
	return ok
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// Enabled reports whether a message at level would be written.
func Enabled(level LogLevel) bool {
	return level >= GetLevel()
}

func write(level LogLevel, msg string) {
	// INFO and WARN get a second space so messages line up with DEBUG/ERROR.
	pad := " "
	if len(level.String()) == 4 {
		pad = "  "
	}
	out := output.Load()
	if level == LevelFatal {
		out.Fatalf("[%s]%s%s", level, pad, msg)
		return
	}
	out.Printf("[%s]%s%s", level, pad, msg)
}

func logf(level LogLevel, format string, v ...any) {
	if level != LevelFatal && !Enabled(level) {
		return
	}
	write(level, fmt.Sprintf(format, v...))
}

func logln(level LogLevel, v ...any) {
	if level != LevelFatal && !Enabled(level) {
		return
	}
	write(level, fmt.Sprint(v...))
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) { logf(LevelDebug, format, v...) }

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) { logf(LevelInfo, format, v...) }

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) { logf(LevelWarn, format, v...) }

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) { logf(LevelError, format, v...) }

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) { logf(LevelFatal, format, v...) }

// Debug logs a debug message if the level is appropriate.
func Debug(v ...any) { logln(LevelDebug, v...) }

// Info logs an info message if the level is appropriate.
func Info(v ...any) { logln(LevelInfo, v...) }

// Warn logs a warning message if the level is appropriate.
func Warn(v ...any) { logln(LevelWarn, v...) }

// Error logs an error message if the level is appropriate.
func Error(v ...any) { logln(LevelError, v...) }

// Fatal logs a fatal message and exits the application.
func Fatal(v ...any) { logln(LevelFatal, v...) }
