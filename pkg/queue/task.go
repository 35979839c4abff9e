package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TaskKind discriminates what a due callback should do.

type TaskKind string

const (
	TaskKindSend     TaskKind = "send"
	TaskKindReminder TaskKind = "reminder"
)

// Task is one pending timer: the scheduler calls the handler back with
// it once ExecuteAt arrives. MessageID plus Kind (plus ReminderID for
// reminder tasks) is everything the dispatcher needs; delivery is
// at-least-once and the handler must be idempotent.
type Task struct {
	ID         string   `json:"id"`
	Kind       TaskKind `json:"kind"`
	MessageID  string   `json:"message_id"`
	ReminderID int64    `json:"reminder_id,omitempty"`

	ExecuteAt  time.Time `json:"execute_at"`
	CreatedAt  time.Time `json:"created_at"`
	Attempts   int       `json:"attempts"`
	MaxRetries int       `json:"max_retries"`
}

// Validate checks if the task is valid
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task ID is required")
	}
	if t.Kind != TaskKindSend && t.Kind != TaskKindReminder {
		return fmt.Errorf("unknown task kind: %s", t.Kind)
	}
	if strings.TrimSpace(t.MessageID) == "" {
		return fmt.Errorf("task message ID is required")
	}
	return nil
}

// SendTaskID and ReminderTaskID build deterministic task ids so that a
// re-enqueue of the same timer overwrites rather than duplicates.
func SendTaskID(messageID string) string {
	return fmt.Sprintf("msg:%s:send", messageID)
}

func ReminderTaskID(messageID string, reminderID int64) string {
	return fmt.Sprintf("msg:%s:reminder:%d", messageID, reminderID)
}

// Queue is the scheduler collaborator: enqueue timers, cancel all of a
// message's timers, consume due ones.
type Queue interface {
	Publish(ctx context.Context, task *Task) error
	CancelMessage(ctx context.Context, messageID string) (int, error)
	Subscribe(ctx context.Context, handler func(*Task) error) error
	Close() error
}
