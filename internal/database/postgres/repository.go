package repository

import (
	"context"
	"time"

	"groupsend/internal/entity"
)

type MessageRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	Update(ctx context.Context, message *entity.Message) error
	Delete(ctx context.Context, id string) error

	// SaveSnapshot writes the recipient snapshot when a draft is
	// finalized; a message carries at most one snapshot.
	SaveSnapshot(ctx context.Context, message *entity.Message) error

	// Query operations
	GetByGroupID(ctx context.Context, groupID int64) ([]*entity.Message, error)
	GetByStatus(ctx context.Context, status entity.MessageStatus) ([]*entity.Message, error)

	// Dispatch operations
	TransitionStatus(ctx context.Context, id string, from, to entity.MessageStatus, sentAt *time.Time, sentBy int64) error
	MarkReminderFired(ctx context.Context, reminderID int64, firedAt time.Time) error
	RecordDeliveryAttempts(ctx context.Context, attempts []entity.DeliveryAttempt) error

	// Recurrence: persist the next occurrence as a new message row
	// sharing content and snapshot with the finished one.
	CreateOccurrence(ctx context.Context, message *entity.Message) error

	// Sweep operations for the catch-up worker
	GetOverdueMessages(ctx context.Context, before time.Time, limit int) ([]*entity.Message, error)
}

type MemberRepository interface {
	GetGroupMembers(ctx context.Context, groupID int64) ([]*entity.GroupMember, error)
	GetMemberByID(ctx context.Context, id int64) (*entity.GroupMember, error)
	GetChannelConfigs(ctx context.Context, userID int64) ([]*entity.ChannelConfig, error)
	GetGroupName(ctx context.Context, groupID int64) (string, error)
}
