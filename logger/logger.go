// Package logger provides leveled logging with key/value context for the
// firmware update tool. Output goes to stderr and optionally to a log file.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	ERROR LogLevel = iota
	WARN
	INFO
	DEBUG
)

var levelNames = map[LogLevel]string{
	ERROR: "ERROR",
	WARN:  "WARN",
	INFO:  "INFO",
	DEBUG: "DEBUG",
}

// ParseLevel maps a config string to a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return ERROR
	case "warn", "warning":
		return WARN
	case "debug":
		return DEBUG
	default:
		return INFO
	}
}

// Logger provides structured logging with levels
type Logger struct {
	mu            sync.Mutex
	level         LogLevel
	consoleOutput bool
	file          *os.File
}

// Global is the process-wide logger used by packages that are not handed
// an explicit instance. Set by the CLI during startup.
var Global *Logger

// New creates a new Logger instance writing to stderr.
func New(level LogLevel) *Logger {
	return &Logger{level: level, consoleOutput: true}
}

// SetLevel changes the current log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetConsoleOutput enables or disables console output
func (l *Logger) SetConsoleOutput(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consoleOutput = enabled
}

// OpenLogFile additionally appends log lines to the given file path.
func (l *Logger) OpenLogFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.file = f
	return nil
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) log(level LogLevel, msg string, context ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level > l.level {
		return
	}
	line := fmt.Sprintf("%s [%s] %s%s",
		time.Now().Format(time.RFC3339),
		levelNames[level],
		msg,
		formatContext(context),
	)
	if l.consoleOutput {
		fmt.Fprintln(os.Stderr, line)
	}
	if l.file != nil {
		_, _ = l.file.WriteString(line + "\n")
	}
}

// formatContext renders key/value pairs as " key=value ...". An odd
// trailing element is rendered as-is.
func formatContext(context []interface{}) string {
	if len(context) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(context); i += 2 {
		if i+1 < len(context) {
			fmt.Fprintf(&b, " %v=%v", context[i], context[i+1])
		} else {
			fmt.Fprintf(&b, " %v", context[i])
		}
	}
	return b.String()
}

// Error logs an error message with optional key/value context.
func (l *Logger) Error(msg string, context ...interface{}) {
	l.log(ERROR, msg, context...)
}

// Warn logs a warning message with optional key/value context.
func (l *Logger) Warn(msg string, context ...interface{}) {
	l.log(WARN, msg, context...)
}

// Info logs an informational message with optional key/value context.
func (l *Logger) Info(msg string, context ...interface{}) {
	l.log(INFO, msg, context...)
}

// Debug logs a debug message with optional key/value context.
func (l *Logger) Debug(msg string, context ...interface{}) {
	l.log(DEBUG, msg, context...)
}
