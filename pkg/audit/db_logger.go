package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DBLogger implements audit logging to a SQL database (PostgreSQL via
// lib/pq in production; the schema also works on SQLite for tests).
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}

	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}
	return logger, nil
}

// ensureTable creates the audit_events table if it doesn't exist
func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id VARCHAR(64) PRIMARY KEY,
		timestamp TIMESTAMP NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		principal_id VARCHAR(255),
		client_id VARCHAR(255),
		source_ip VARCHAR(45),
		permission_id VARCHAR(255),
		resource_path TEXT,
		purpose VARCHAR(255),
		request_id VARCHAR(100),
		method VARCHAR(10),
		path TEXT,
		message TEXT,
		metadata TEXT
	)`
	_, err := l.db.Exec(query)
	return err
}

// Log inserts the event as one row.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadata []byte
	if event.Metadata != nil {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal event metadata: %w", err)
		}
	}

	query := `
	INSERT INTO audit_events (
		id, timestamp, event_type, status,
		principal_id, client_id, source_ip,
		permission_id, resource_path, purpose,
		request_id, method, path, message, metadata
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := l.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		string(event.EventType),
		string(event.Status),
		event.PrincipalID,
		event.ClientID,
		event.SourceIP,
		event.PermissionID,
		event.ResourcePath,
		event.Purpose,
		event.RequestID,
		event.Method,
		event.Path,
		event.Message,
		nullableString(metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Close implements Logger. The caller owns the *sql.DB.
func (l *DBLogger) Close() error { return nil }

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
