package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileLoggerWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(FileLoggerConfig{BasePath: dir})
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer logger.Close()

	ctx := context.Background()
	first := NewEvent(EventTypeCriticalAccess, EventStatusAllowed)
	first.PrincipalID = "user-1"
	first.PermissionID = "records.export.bulk"
	first.Purpose = "bulk data export"
	if err := logger.Log(ctx, first); err != nil {
		t.Fatalf("Log: %v", err)
	}

	second := NewEvent(EventTypeAccessDenied, EventStatusDenied)
	second.PrincipalID = "user-2"
	if err := logger.Log(ctx, second); err != nil {
		t.Fatalf("Log: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "audit.log"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		events = append(events, e)
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].PrincipalID != "user-1" || events[0].Purpose != "bulk data export" {
		t.Errorf("first event mangled: %+v", events[0])
	}
	if events[1].EventType != EventTypeAccessDenied {
		t.Errorf("second event type = %q", events[1].EventType)
	}
	if events[0].ID == events[1].ID {
		t.Error("event ids must be unique")
	}
}

func TestFileLoggerRotation(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(FileLoggerConfig{
		BasePath: dir,
		Rotate:   true,
		MaxSize:  200, // force rotation after a couple of events
		MaxFiles: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		e := NewEvent(EventTypeCriticalAccess, EventStatusAllowed)
		e.PrincipalID = "user-rotation"
		e.Message = strings.Repeat("x", 64)
		if err := logger.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	var rotated int
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "audit-") {
			rotated++
		}
	}
	if rotated == 0 {
		t.Error("expected at least one rotated file")
	}
	if rotated > 2 {
		t.Errorf("pruning kept %d rotated files, max is 2", rotated)
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	logger, err := NewFileLogger(FileLoggerConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
