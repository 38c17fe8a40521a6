// Package obslog wraps zerolog with the structured fields the engine and its
// subsystems attach to every log line: session id, call id, and event kind.
// It deliberately does not wrap exporters or telemetry pipelines — those are
// named collaborators outside this core's scope.
package obslog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the engine-wide structured logger.
type Logger struct {
	zl zerolog.Logger
}

// New creates a Logger writing to w (os.Stderr by default via NewDefault).
func New(w io.Writer, level zerolog.Level) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zl := zerolog.New(w).With().Timestamp().Logger().Level(level)
	return &Logger{zl: zl}
}

// NewDefault creates a Logger at Info level writing to stderr.
func NewDefault() *Logger {
	return New(os.Stderr, zerolog.InfoLevel)
}

// WithSession returns a logger scoped to a session id.
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{zl: l.zl.With().Str("session_id", sessionID).Logger()}
}

// WithCall returns a logger scoped to a tool call id.
func (l *Logger) WithCall(callID string) *Logger {
	return &Logger{zl: l.zl.With().Str("call_id", callID).Logger()}
}

// WithEventKind returns a logger scoped to an event kind.
func (l *Logger) WithEventKind(kind string) *Logger {
	return &Logger{zl: l.zl.With().Str("event_kind", kind).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }
