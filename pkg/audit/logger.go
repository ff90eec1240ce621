// Package audit records security-relevant authorization events. Critical
// operations get a durable record of who did what, from where, and why.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// NewEvent creates an event with an id and timestamp filled in.
func NewEvent(eventType EventType, status EventStatus) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
	}
}

// NopLogger discards all events. Used when auditing is not configured.
type NopLogger struct{}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *NopLogger { return &NopLogger{} }

// Log implements Logger.
func (*NopLogger) Log(context.Context, *Event) error { return nil }

// Close implements Logger.
func (*NopLogger) Close() error { return nil }
