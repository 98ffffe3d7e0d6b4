package events

import (
	"context"

	"go.uber.org/zap"
)

// RegisterAuditLogger subscribes a zap-backed audit trail to every user
// mutation event.
func RegisterAuditLogger(dispatcher Dispatcher, logger *zap.Logger) {
	handler := func(_ context.Context, event Event) error {
		logger.Info("audit",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("actor_id", event.Actor.ActorID),
			zap.Time("timestamp", event.Timestamp),
			zap.Any("payload", event.Payload),
		)
		return nil
	}

	for _, eventType := range []EventType{
		EventUserCreated,
		EventUserUpdated,
		EventUserDeleted,
		EventUsersBulkDeleted,
	} {
		dispatcher.Subscribe(eventType, handler)
	}
}
