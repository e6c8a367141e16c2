// Package logging provides the leveled logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents a log severity level.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level. Unknown names map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// sink is the output shared by a logger and all of its children.
type sink struct {
	mu    sync.Mutex
	level Level
	inner *log.Logger
}

// Logger writes leveled messages, optionally tagged with a component name.
type Logger struct {
	out       *sink
	component string
}

var defaultLogger = &Logger{
	out: &sink{
		level: INFO,
		inner: log.New(os.Stderr, "", log.LstdFlags),
	},
}

// Default returns the package-level default logger.
func Default() *Logger {
	return defaultLogger
}

// With returns a child logger whose messages are tagged with component.
// Level and output stay shared with the parent.
func (l *Logger) With(component string) *Logger {
	return &Logger{out: l.out, component: component}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.level = level
}

// SetOutput redirects log output.
func (l *Logger) SetOutput(w io.Writer) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.inner.SetOutput(w)
}

// Debug logs a message at DEBUG level.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs a message at INFO level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a message at WARN level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs a message at ERROR level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if level < l.out.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if l.component != "" {
		l.out.inner.Printf("[%s] %s: %s", level, l.component, msg)
		return
	}
	l.out.inner.Printf("[%s] %s", level, msg)
}
