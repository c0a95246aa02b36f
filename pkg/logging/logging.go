package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy the fmt.Stringer interface.
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
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo // Default to INFO for unknown
	}
}

// ParseLevel maps a textual level ("debug", "info", ...) to a LogLevel.
// Unknown values fall back to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// LogEntry is the structured log entry passed to the live view.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Subsystem string
	Message   string
	Err       error
}

const channelBufferSize = 2048

// sink is shared by a root Logger and every Logger derived from it with With.
type sink struct {
	slogger *slog.Logger
	level   LogLevel

	mu      sync.Mutex
	entries chan LogEntry
	closed  bool
}

// Logger writes subsystem-tagged messages. It is passed explicitly to every
// component that logs; there is no package-level default.
type Logger struct {
	sink      *sink
	subsystem string
}

// New returns a Logger that writes text records to w.
func New(w io.Writer, level LogLevel) *Logger {
	opts := &slog.HandlerOptions{Level: level.SlogLevel()}
	return &Logger{sink: &sink{
		slogger: slog.New(slog.NewTextHandler(w, opts)),
		level:   level,
	}}
}

// NewChannel returns a Logger that delivers entries on a buffered channel
// instead of writing them. Used when the live view owns the terminal.
func NewChannel(level LogLevel, buffer int) (*Logger, <-chan LogEntry) {
	if buffer <= 0 {
		buffer = channelBufferSize
	}
	ch := make(chan LogEntry, buffer)
	return &Logger{sink: &sink{level: level, entries: ch}}, ch
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, LevelError+1)
}

// With returns a Logger bound to the given subsystem.
func (l *Logger) With(subsystem string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{sink: l.sink, subsystem: subsystem}
}

// Subsystem returns the subsystem the Logger is bound to.
func (l *Logger) Subsystem() string {
	if l == nil {
		return ""
	}
	return l.subsystem
}

// Close closes the entry channel of a channel logger. Safe to call more than once.
func (l *Logger) Close() {
	if l == nil || l.sink.entries == nil {
		return
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if !l.sink.closed {
		close(l.sink.entries)
		l.sink.closed = true
	}
}

func (l *Logger) log(level LogLevel, err error, messageFmt string, args ...interface{}) {
	if l == nil || level < l.sink.level {
		return
	}
	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	if l.sink.entries != nil {
		l.sink.mu.Lock()
		defer l.sink.mu.Unlock()
		if l.sink.closed {
			return
		}
		entry := LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Subsystem: l.subsystem,
			Message:   msg,
			Err:       err,
		}
		// Drop rather than block a scenario on a slow view.
		select {
		case l.sink.entries <- entry:
		default:
		}
		return
	}

	attrs := []slog.Attr{slog.String("subsystem", l.subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.sink.slogger.LogAttrs(context.Background(), level.SlogLevel(), msg, attrs...)
}

// Debug logs a debug message.
func (l *Logger) Debug(messageFmt string, args ...interface{}) {
	l.log(LevelDebug, nil, messageFmt, args...)
}

// Info logs an informational message.
func (l *Logger) Info(messageFmt string, args ...interface{}) {
	l.log(LevelInfo, nil, messageFmt, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(messageFmt string, args ...interface{}) {
	l.log(LevelWarn, nil, messageFmt, args...)
}

// Error logs an error message.
func (l *Logger) Error(err error, messageFmt string, args ...interface{}) {
	l.log(LevelError, err, messageFmt, args...)
}
