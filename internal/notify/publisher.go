package notify

import (
	"context"

	"groupsend/internal/entity"
)

// StatusEvent is the terminal outcome pushed back to the user whose
// message was dispatched. It is the only signal an asynchronous send
// produces for the UI.
type StatusEvent struct {
	Event     string               `json:"event"`
	MessageID string               `json:"message_id"`
	Status    entity.MessageStatus `json:"status"`
	GroupName string               `json:"group_name"`
}

// Publisher pushes status events to a per-user topic. Fire-and-forget:
// a publish failure must never undo a status that is already persisted.
type Publisher interface {
	PublishStatus(ctx context.Context, userID int64, event StatusEvent) error
	Close() error
}

// NopPublisher stands in when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishStatus(context.Context, int64, StatusEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
