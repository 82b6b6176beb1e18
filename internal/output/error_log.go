package output

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configure the rotating error log
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ErrorLogger appends structured error entries to a size-rotated file
type ErrorLogger struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
}

// NewErrorLogger creates an ErrorLogger; the file is opened on first write
func NewErrorLogger(opts FileOptions) *ErrorLogger {
	return &ErrorLogger{
		writer: &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		},
	}
}

// LogError writes an error entry with timestamp, type, message and stack trace
func (e *ErrorLogger) LogError(errorType, errorMessage string, originalErr error) error {
	return e.LogErrorWithRequestID(errorType, errorMessage, originalErr, "")
}

// LogErrorWithRequestID writes an error entry tagged with an actuator request id
func (e *ErrorLogger) LogErrorWithRequestID(errorType, errorMessage string, originalErr error, requestID string) error {
	var entry strings.Builder
	fmt.Fprintf(&entry, "[%s] ERROR: %s\n", time.Now().Format("2006-01-02 15:04:05"), errorMessage)
	fmt.Fprintf(&entry, "Type: %s\n", errorType)
	if requestID != "" {
		fmt.Fprintf(&entry, "Request ID: %s\n", requestID)
	}
	if originalErr != nil {
		fmt.Fprintf(&entry, "Details: %s\n", originalErr.Error())
	}
	entry.WriteString("Stack Trace:\n")
	entry.WriteString(stackTrace())
	entry.WriteString("\n")

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.writer.Write([]byte(entry.String())); err != nil {
		return fmt.Errorf("failed to write to error log: %w", err)
	}
	return nil
}

// Close closes the underlying file
func (e *ErrorLogger) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writer.Close()
}

// stackTrace captures the caller's stack, skipping the logger's own frames
func stackTrace() string {
	const maxStackDepth = 32
	stackBuf := make([]uintptr, maxStackDepth)
	length := runtime.Callers(4, stackBuf)
	frames := runtime.CallersFrames(stackBuf[:length])

	var trace strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&trace, "  at %s (%s:%d)\n", frame.Function, filepath.Base(frame.File), frame.Line)
		if !more {
			break
		}
	}
	return trace.String()
}

// EnsureLogDirectory creates the log directory if it doesn't exist
func EnsureLogDirectory(logPath string) error {
	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}
