// Package logging provides the leveled logger shared by the library and the
// CLI.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level is a minimum severity
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int32(l))
	}
}

// Logger is implemented by every logger handed to cantiming packages.
type Logger interface {
	// Debugf logs a debug-level message.
	Debugf(format string, args ...any)
	// Infof logs an info-level message.
	Infof(format string, args ...any)
	// Warnf logs a warning message.
	Warnf(format string, args ...any)
	// Errorf logs an error-level message.
	Errorf(format string, args ...any)
}

type stdLogger struct {
	level atomic.Int32
	l     *log.Logger
}

// New creates a logger writing to w with the requested minimum level and
// line prefix.
func New(w io.Writer, prefix, level string) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	sl := &stdLogger{l: log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)}
	sl.level.Store(int32(lvl))
	return sl, nil
}

// NewStderr is New writing to os.Stderr, so command output on stdout stays
// machine readable.
func NewStderr(level string) (Logger, error) {
	return New(os.Stderr, "", level)
}

// ParseLevel converts the textual representation into a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error", "err":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}

func (l *stdLogger) enabled(level Level) bool {
	return Level(l.level.Load()) <= level
}

func (l *stdLogger) logf(level Level, prefix, format string, args ...any) {
	if !l.enabled(level) {
		return
	}
	l.l.Printf(prefix+format, args...)
}

func (l *stdLogger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, "[DEBUG] ", format, args...)
}

func (l *stdLogger) Infof(format string, args ...any) {
	l.logf(LevelInfo, "[INFO] ", format, args...)
}

func (l *stdLogger) Warnf(format string, args ...any) {
	l.logf(LevelWarn, "[WARN] ", format, args...)
}

func (l *stdLogger) Errorf(format string, args ...any) {
	l.logf(LevelError, "[ERROR] ", format, args...)
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
