package service

import (
	"context"
	"time"

	"groupsend/internal/entity"
)

// ReminderInput is one user-chosen reminder lead time.
type ReminderInput struct {
	Count int    `json:"count" binding:"required,min=1,max=36"`
	Unit  string `json:"unit" binding:"required,oneof=months weeks days"`
}

// CreateMessageRequest carries the compose form. Include maps member id
// to the sender's explicit per-member recipient choice; members absent
// from the map keep their group default.
type CreateMessageRequest struct {
	GroupID int64  `json:"group_id" binding:"required"`
	Subject string `json:"subject" binding:"max=255"`
	Content string `json:"content" binding:"required,max=4000"`
	Draft   bool   `json:"draft"`

	IsScheduled bool               `json:"is_scheduled"`
	ScheduledAt *entity.CustomTime `json:"scheduled_at,omitempty"`

	IsRecurring    bool   `json:"is_recurring"`
	RecurringCount int    `json:"recurring_count,omitempty"`
	RecurringUnit  string `json:"recurring_unit,omitempty"`

	IsReminders bool            `json:"is_reminders"`
	Reminders   []ReminderInput `json:"reminders,omitempty"`

	Include map[int64]bool `json:"include,omitempty"`

	UserID int64 `json:"-"`
}

// UpdateMessageRequest mirrors the compose form for edits of a
// not-yet-sent message.
type UpdateMessageRequest struct {
	Subject string `json:"subject" binding:"max=255"`
	Content string `json:"content" binding:"required,max=4000"`
	Draft   bool   `json:"draft"`

	IsScheduled bool               `json:"is_scheduled"`
	ScheduledAt *entity.CustomTime `json:"scheduled_at,omitempty"`

	IsRecurring    bool   `json:"is_recurring"`
	RecurringCount int    `json:"recurring_count,omitempty"`
	RecurringUnit  string `json:"recurring_unit,omitempty"`

	IsReminders bool            `json:"is_reminders"`
	Reminders   []ReminderInput `json:"reminders,omitempty"`

	Include map[int64]bool `json:"include,omitempty"`

	UserID int64 `json:"-"`
}

// ReminderOption tells the compose surface what reminder counts are
// still possible for one unit given a scheduled time.
type ReminderOption struct {
	Unit string `json:"unit"`
	Max  int    `json:"max"`
}

type MessageService interface {
	CreateMessage(ctx context.Context, req *CreateMessageRequest) (*entity.Message, error)
	UpdateMessage(ctx context.Context, id string, req *UpdateMessageRequest) (*entity.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	GetMessage(ctx context.Context, id string) (*entity.Message, error)
	GetGroupMessages(ctx context.Context, groupID int64) ([]*entity.Message, error)
	ReminderOptions(scheduledAt time.Time) []ReminderOption
}

// DispatchResult is the aggregate outcome of one dispatch: the final
// status plus the per-(recipient, channel) attempt list.
type DispatchResult struct {
	MessageID string                   `json:"message_id"`
	Status    entity.MessageStatus     `json:"status"`
	Attempts  []entity.DeliveryAttempt `json:"attempts"`
}

type DispatchService interface {
	// Dispatch performs a send-kind due callback: fan out, aggregate,
	// persist, notify, recur. Safe to call repeatedly for the same
	// message.
	Dispatch(ctx context.Context, messageID string) (*DispatchResult, error)

	// DispatchReminder performs a reminder-kind due callback: fan out
	// only, no status transition.
	DispatchReminder(ctx context.Context, messageID string, reminderID int64) error

	// SweepOverdue re-enqueues scheduled messages whose timers were
	// lost.
	SweepOverdue(ctx context.Context) error
}

// Task mirrors the queue task so services do not import pkg/queue.
type Task struct {
	ID         string
	Kind       string
	MessageID  string
	ReminderID int64
	ExecuteAt  time.Time
}

const (
	TaskKindSend     = "send"
	TaskKindReminder = "reminder"
)

// TaskPublisher is the scheduler collaborator as seen by the services.
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
	PublishBatch(ctx context.Context, tasks []*Task) error
	CancelMessage(ctx context.Context, messageID string) error
}
