package errors

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelError logs only errors.
	LogLevelError LogLevel = iota
	// LogLevelWarn logs warnings and errors.
	LogLevelWarn
	// LogLevelInfo logs info, warnings, and errors.
	LogLevelInfo
	// LogLevelDebug logs everything including command traces.
	LogLevelDebug
)

// String returns the string representation of LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

var levelColors = map[LogLevel]*color.Color{
	LogLevelError: color.New(color.FgRed, color.Bold),
	LogLevelWarn:  color.New(color.FgYellow, color.Bold),
	LogLevelInfo:  color.New(color.FgCyan),
	LogLevelDebug: color.New(color.Faint),
}

// Logger writes leveled messages to stderr.
type Logger struct {
	mu      sync.Mutex
	output  io.Writer
	level   LogLevel
	verbose bool
}

var defaultLogger = &Logger{
	output: os.Stderr,
	level:  LogLevelInfo,
}

// SetVerbose enables or disables debug tracing.
func SetVerbose(verbose bool) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.verbose = verbose
	if verbose {
		defaultLogger.level = LogLevelDebug
	} else {
		defaultLogger.level = LogLevelInfo
	}
}

// IsVerbose returns whether debug tracing is enabled.
func IsVerbose() bool {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	return defaultLogger.verbose
}

// SetOutput sets the output writer for the logger.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.output = w
}

// DebugFromEnv reports whether the DEBUG environment variable asks for tracing.
func DebugFromEnv() bool {
	v := strings.TrimSpace(os.Getenv("DEBUG"))
	return v != "" && v != "0" && !strings.EqualFold(v, "false")
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(output io.Writer, verbose bool) *Logger {
	level := LogLevelInfo
	if verbose {
		level = LogLevelDebug
	}
	return &Logger{
		output:  output,
		level:   level,
		verbose: verbose,
	}
}

// log writes a log message at the given level.
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level > l.level {
		return
	}

	timestamp := time.Now().Format("15:04:05")
	message := fmt.Sprintf(format, args...)
	name := level.String()
	if c, ok := levelColors[level]; ok {
		name = c.Sprint(name)
	}
	fmt.Fprintf(l.output, "[%s] %s: %s\n", timestamp, name, message)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LogLevelError, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LogLevelWarn, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LogLevelInfo, format, args...)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LogLevelDebug, format, args...)
}

// LogCommand traces an external command invocation in verbose mode.
func (l *Logger) LogCommand(dir string, name string, args []string, duration time.Duration, err error) {
	if !l.verbose {
		return
	}
	status := "ok"
	if err != nil {
		status = err.Error()
	}
	l.Debug("exec: dir=%s cmd=%s %s duration=%v status=%s",
		dir, name, strings.Join(args, " "), duration.Round(time.Millisecond), status)
}

// Package-level logging functions using the default logger

// Error logs an error message.
func Error(format string, args ...interface{}) {
	defaultLogger.Error(format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	defaultLogger.Warn(format, args...)
}

// Info logs an info message.
func Info(format string, args ...interface{}) {
	defaultLogger.Info(format, args...)
}

// Debug logs a debug message.
func Debug(format string, args ...interface{}) {
	defaultLogger.Debug(format, args...)
}

// LogCommand traces an external command invocation in verbose mode.
func LogCommand(dir string, name string, args []string, duration time.Duration, err error) {
	defaultLogger.LogCommand(dir, name, args, duration, err)
}

// PrintFatal writes err to w in the fatal style, with full detail when
// verbose tracing is on.
func PrintFatal(w io.Writer, err error) {
	text := FormatError(err)
	if IsVerbose() {
		text = strings.TrimRight(FormatErrorVerbose(err), "\n")
	}
	lines := strings.SplitN(text, "\n", 2)
	fmt.Fprintln(w, color.New(color.FgRed, color.Bold).Sprint(lines[0]))
	if len(lines) > 1 {
		fmt.Fprintln(w, lines[1])
	}
}
