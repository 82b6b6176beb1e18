package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Logger defines the interface for colored terminal output
type Logger interface {
	Info(format string, args ...interface{})
	Success(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	ChannelMessage(channel, nick, message string)
	PrivateMessage(nick, message string)
}

// ColorLogger implements Logger with colored terminal output
type ColorLogger struct {
	mu           sync.Mutex
	out          io.Writer
	debug        bool
	now          func() time.Time
	infoColor    *color.Color
	successColor *color.Color
	warningColor *color.Color
	errorColor   *color.Color
	debugColor   *color.Color
	channelColor *color.Color
	pmColor      *color.Color
	nickColor    *color.Color
}

// NewColorLogger creates a ColorLogger writing to stdout.
// Debug lines are only printed when debug is true.
func NewColorLogger(debug bool) *ColorLogger {
	return NewColorLoggerWriter(os.Stdout, debug)
}

// NewColorLoggerWriter creates a ColorLogger writing to w
func NewColorLoggerWriter(w io.Writer, debug bool) *ColorLogger {
	return &ColorLogger{
		out:          w,
		debug:        debug,
		now:          time.Now,
		infoColor:    color.New(color.FgCyan),
		successColor: color.New(color.FgGreen, color.Bold),
		warningColor: color.New(color.FgYellow, color.Bold),
		errorColor:   color.New(color.FgRed, color.Bold),
		debugColor:   color.New(color.FgHiBlack),
		channelColor: color.New(color.FgBlue, color.Bold),
		pmColor:      color.New(color.FgMagenta, color.Bold),
		nickColor:    color.New(color.FgGreen),
	}
}

// SetDebug toggles debug output
func (l *ColorLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = enabled
}

func (l *ColorLogger) line(c *color.Color, level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := l.now().Format("15:04:05")
	message := fmt.Sprintf(format, args...)
	_, _ = c.Fprintf(l.out, "[%s] %s: %s\n", timestamp, level, message)
}

// Info prints an informational message in cyan
func (l *ColorLogger) Info(format string, args ...interface{}) {
	l.line(l.infoColor, "INFO", format, args...)
}

// Success prints a success message in bold green
func (l *ColorLogger) Success(format string, args ...interface{}) {
	l.line(l.successColor, "SUCCESS", format, args...)
}

// Warning prints a warning message in bold yellow
func (l *ColorLogger) Warning(format string, args ...interface{}) {
	l.line(l.warningColor, "WARNING", format, args...)
}

// Error prints an error message in bold red
func (l *ColorLogger) Error(format string, args ...interface{}) {
	l.line(l.errorColor, "ERROR", format, args...)
}

// Debug prints a dimmed message when debug output is enabled
func (l *ColorLogger) Debug(format string, args ...interface{}) {
	l.mu.Lock()
	enabled := l.debug
	l.mu.Unlock()
	if !enabled {
		return
	}
	l.line(l.debugColor, "DEBUG", format, args...)
}

// ChannelMessage prints a channel message with color-coded formatting
// Format: [HH:MM:SS] #channel <nick> message
func (l *ColorLogger) ChannelMessage(channel, nick, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := l.now().Format("15:04:05")
	_, _ = fmt.Fprintf(l.out, "[%s] ", timestamp)
	_, _ = l.channelColor.Fprintf(l.out, "%s ", channel)
	_, _ = l.nickColor.Fprintf(l.out, "<%s> ", nick)
	_, _ = fmt.Fprintf(l.out, "%s\n", message)
}

// PrivateMessage prints a private message with distinct color formatting
// Format: [HH:MM:SS] PM from nick: message
func (l *ColorLogger) PrivateMessage(nick, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := l.now().Format("15:04:05")
	_, _ = fmt.Fprintf(l.out, "[%s] ", timestamp)
	_, _ = l.pmColor.Fprintf(l.out, "PM from ")
	_, _ = l.nickColor.Fprintf(l.out, "%s: ", nick)
	_, _ = fmt.Fprintf(l.out, "%s\n", message)
}

// Banner prints the startup line
func Banner(l Logger, version string) {
	l.Success("STARTED jolt %s", version)
}
