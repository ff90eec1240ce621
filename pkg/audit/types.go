package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// EventTypeCriticalAccess records an allowed invocation of a
	// critical-flagged operation.
	EventTypeCriticalAccess EventType = "authz.critical_access"

	// EventTypeAccessDenied records a denied invocation of a
	// critical-flagged operation.
	EventTypeAccessDenied EventType = "authz.access_denied"

	// EventTypeRegistration records the outcome of a catalog registration
	// attempt against the central authority.
	EventTypeRegistration EventType = "registration.publish"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusAllowed EventStatus = "allowed"
	EventStatusDenied  EventStatus = "denied"
	EventStatusFailure EventStatus = "failure"
	EventStatusSuccess EventStatus = "success"
)

// Event represents a single audit log entry
type Event struct {
	// Core fields
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	PrincipalID string `json:"principal_id,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	SourceIP    string `json:"source_ip,omitempty"`

	// What was accessed
	PermissionID string `json:"permission_id,omitempty"`
	ResourcePath string `json:"resource_path,omitempty"`

	// Purpose is the server-configured audit purpose of the operation.
	// Never sourced from request headers.
	Purpose string `json:"purpose,omitempty"`

	// Request context
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	// Additional details
	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}
