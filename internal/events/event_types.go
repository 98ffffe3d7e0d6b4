package events

import (
	"time"

	"github.com/spec-kit/user-admin-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserCreated      EventType = "user_created"
	EventUserUpdated      EventType = "user_updated"
	EventUserDeleted      EventType = "user_deleted"
	EventUsersBulkDeleted EventType = "users_bulk_deleted"
)

// Actor identifies the admin performing a change. Empty ActorID means the
// change came from system bootstrap.
type Actor struct {
	ActorID string      `json:"actor_id,omitempty"`
	Role    domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserChangedPayload describes a single-record mutation.
type UserChangedPayload struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// UsersBulkDeletedPayload describes a bulk removal.
type UsersBulkDeletedPayload struct {
	UserIDs []string `json:"user_ids"`
}
