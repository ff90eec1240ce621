package audit

import (
	"context"
	"errors"
	"testing"
)

type recordingLogger struct {
	events []*Event
	logErr error
}

func (r *recordingLogger) Log(_ context.Context, event *Event) error {
	r.events = append(r.events, event)
	return r.logErr
}

func (r *recordingLogger) Close() error { return nil }

func TestMultiLoggerFansOut(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}
	multi := NewMultiLogger(a, b)

	event := NewEvent(EventTypeCriticalAccess, EventStatusAllowed)
	if err := multi.Log(context.Background(), event); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("fan-out incomplete: %d, %d", len(a.events), len(b.events))
	}
}

func TestMultiLoggerContinuesPastFailure(t *testing.T) {
	failing := &recordingLogger{logErr: errors.New("sink down")}
	healthy := &recordingLogger{}
	multi := NewMultiLogger(failing, healthy)

	err := multi.Log(context.Background(), NewEvent(EventTypeAccessDenied, EventStatusDenied))
	if err == nil {
		t.Error("expected the sink failure to surface")
	}
	if len(healthy.events) != 1 {
		t.Error("a failing sink must not block the others")
	}
}
