package logger

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level represents the severity of a log message
type Level int32

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	SILENT // No logging
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "SILENT"}

var levelColors = [...]string{
	"\033[36m", // Cyan
	"\033[32m", // Green
	"\033[33m", // Yellow
	"\033[31m", // Red
	"",
}

const resetColor = "\033[0m"

// String returns the string representation of a log level
func (l Level) String() string {
	if l < DEBUG || l > SILENT {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel parses a log level string such as "info" or "WARN"
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	case "silent", "none":
		return SILENT, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %q", s)
	}
}

// Logger provides leveled logging with module tags
type Logger struct {
	level    atomic.Int32
	useColor bool
	out      *log.Logger
}

var defaultLogger *Logger
var once sync.Once

// Init initializes the global logger (call once at startup)
func Init(level Level, output io.Writer, useColor bool) {
	once.Do(func() {
		defaultLogger = New(level, output, useColor)
	})
}

// New creates a new Logger instance writing to output (stderr when nil)
func New(level Level, output io.Writer, useColor bool) *Logger {
	if output == nil {
		output = os.Stderr
	}
	l := &Logger{
		useColor: useColor,
		out:      log.New(output, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	l.level.Store(int32(level))
	return l
}

// SetLevel changes the minimum level that will be written
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// GetLevel returns the current minimum level
func (l *Logger) GetLevel() Level {
	return Level(l.level.Load())
}

func (l *Logger) write(level Level, module string, format string, args ...any) {
	if l == nil || level >= SILENT || level < Level(l.level.Load()) {
		return
	}

	prefix := "[" + levelNames[level] + "]"
	if l.useColor {
		prefix = levelColors[level] + prefix + resetColor
	}
	if module != "" {
		prefix += " [" + module + "]"
	}

	l.out.Printf("%s %s", prefix, fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func (l *Logger) Debug(module string, format string, args ...any) {
	l.write(DEBUG, module, format, args...)
}

// Info logs an info message
func (l *Logger) Info(module string, format string, args ...any) {
	l.write(INFO, module, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(module string, format string, args ...any) {
	l.write(WARN, module, format, args...)
}

// Error logs an error message
func (l *Logger) Error(module string, format string, args ...any) {
	l.write(ERROR, module, format, args...)
}

// Global logger functions (use default logger)

// SetLevel sets the global log level
func SetLevel(level Level) {
	if defaultLogger != nil {
		defaultLogger.SetLevel(level)
	}
}

// GetLevel returns the global log level
func GetLevel() Level {
	if defaultLogger != nil {
		return defaultLogger.GetLevel()
	}
	return INFO
}

// Debug logs a debug message using the global logger
func Debug(module string, format string, args ...any) {
	defaultLogger.write(DEBUG, module, format, args...)
}

// Info logs an info message using the global logger
func Info(module string, format string, args ...any) {
	defaultLogger.write(INFO, module, format, args...)
}

// Warn logs a warning message using the global logger
func Warn(module string, format string, args ...any) {
	defaultLogger.write(WARN, module, format, args...)
}

// Error logs an error message using the global logger
func Error(module string, format string, args ...any) {
	defaultLogger.write(ERROR, module, format, args...)
}

// Writer returns an io.Writer that logs each complete line written to it
// at the given level using the global logger. Used to capture subprocess
// stderr output.
func Writer(level Level, module string) io.Writer {
	return &lineWriter{level: level, module: module}
}

// Writer returns a line-buffered io.Writer bound to this logger.
func (l *Logger) Writer(level Level, module string) io.Writer {
	return &lineWriter{target: l, level: level, module: module}
}

type lineWriter struct {
	target *Logger // nil means the global logger
	level  Level
	module string
	buf    []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	target := w.target
	if target == nil {
		target = defaultLogger
	}
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(w.buf[:i]), "\r")
		if line != "" {
			target.write(w.level, w.module, "%s", line)
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}
