// Package telemetry provides the thin logging wrapper used by the
// cmd/nexus serve command: plain stdlib log.Printf/Fatalf
// with a leading context word ("connecting to database", "migrating"),
// extended with the leveled, per-component prefixing a long-running server
// needs that a one-shot CLI command does not.
//
// No third-party structured-logging library (zap, zerolog, logrus) is
// pulled in here: adopting one would add a dependency this module has no
// other use for, where a leveled wrapper over the stdlib logger already
// covers every call site.
package telemetry

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Level is a log severity, ordered low to high.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

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

// Logger wraps a stdlib *log.Logger with a component name and minimum
// level. Safe for concurrent use, since the underlying log.Logger is.
type Logger struct {
	component string
	min       Level
	out       *log.Logger
}

// New builds a Logger writing to w, prefixed with component, suppressing
// messages below min.
func New(component string, min Level, w io.Writer) *Logger {
	return &Logger{
		component: component,
		min:       min,
		out:       log.New(w, "", log.LstdFlags|log.Lmicroseconds),
	}
}

// Default builds a Logger writing to stderr at LevelInfo, the default for
// an unconfigured logger.
func Default(component string) *Logger {
	return New(component, LevelInfo, os.Stderr)
}

// With returns a Logger for a sub-component, sharing the same output and
// minimum level, e.g. telemetry.Default("engine").With("evaluator").
func (l *Logger) With(sub string) *Logger {
	return &Logger{component: l.component + "." + sub, min: l.min, out: l.out}
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.out.Printf("[%s] %s: %s", level, l.component, msg)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

// Fatalf logs at LevelError then exits the process, for unrecoverable
// startup failures in cmd/nexus.
func (l *Logger) Fatalf(format string, args ...any) {
	l.log(LevelError, format, args...)
	os.Exit(1)
}

// ParseLevel maps a config string ("debug", "info", "warn", "error") to
// a Level, defaulting to LevelInfo for an empty or unrecognized string.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
