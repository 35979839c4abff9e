package entity

import (
	"time"
)

type MessageStatus string

const (
	MessageStatusDraft     MessageStatus = "draft"
	MessageStatusScheduled MessageStatus = "scheduled"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusFailed    MessageStatus = "failed"
)

type IntervalUnit string

const (
	IntervalUnitYears  IntervalUnit = "years"
	IntervalUnitMonths IntervalUnit = "months"
	IntervalUnitWeeks  IntervalUnit = "weeks"
	IntervalUnitDays   IntervalUnit = "days"
)

type ReminderUnit string

const (
	ReminderUnitMonths  ReminderUnit = "months"
	ReminderUnitWeeks   ReminderUnit = "weeks"
	ReminderUnitDays    ReminderUnit = "days"
	ReminderUnitHours   ReminderUnit = "hours"
	ReminderUnitMinutes ReminderUnit = "minutes"
)

// RecurringInterval describes how far apart two occurrences of a
// recurring message are.
type RecurringInterval struct {
	Count int          `json:"count" db:"recurring_count"`
	Unit  IntervalUnit `json:"unit" db:"recurring_unit"`
}

type Message struct {
	ID          string        `json:"id" db:"id"`
	GroupID     int64         `json:"group_id" db:"group_id"`
	Subject     string        `json:"subject,omitempty" db:"subject"`
	Content     string        `json:"content" db:"content"`
	Status      MessageStatus `json:"status" db:"status"`
	IsScheduled bool          `json:"is_scheduled" db:"is_scheduled"`
	ScheduledAt *time.Time    `json:"scheduled_at,omitempty" db:"scheduled_at"`
	IsRecurring bool          `json:"is_recurring" db:"is_recurring"`
	Recurring   *RecurringInterval
	IsReminders bool       `json:"is_reminders" db:"is_reminders"`
	Reminders   []Reminder `json:"reminders,omitempty"`
	Snapshot    []RecipientSnapshot

	CreatedBy     int64      `json:"created_by" db:"created_by"`
	SentBy        int64      `json:"sent_by,omitempty" db:"sent_by"`
	LastUpdatedBy int64      `json:"last_updated_by" db:"last_updated_by"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	SentAt        *time.Time `json:"sent_at,omitempty" db:"sent_at"`
}

// IsTerminal reports whether this occurrence can no longer be dispatched.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusSent || s == MessageStatusFailed
}

// Reminder is a secondary send fired count*unit before the owning
// message's scheduled time. FiredAt guards against duplicate delivery
// from the at-least-once queue.
type Reminder struct {
	ID        int64        `json:"id" db:"id"`
	MessageID string       `json:"message_id" db:"message_id"`
	Count     int          `json:"count" db:"count"`
	Unit      ReminderUnit `json:"unit" db:"unit"`
	FiredAt   *time.Time   `json:"fired_at,omitempty" db:"fired_at"`
}

// RecipientSnapshot is a frozen copy of a group member's contact data
// taken when the message left draft. Later group edits do not touch it.
type RecipientSnapshot struct {
	ID          int64  `json:"id" db:"id"`
	MessageID   string `json:"message_id" db:"message_id"`
	MemberID    int64  `json:"member_id" db:"member_id"`
	Name        string `json:"name" db:"name"`
	Phone       string `json:"phone,omitempty" db:"phone"`
	Email       string `json:"email,omitempty" db:"email"`
	ChatID      string `json:"chat_id,omitempty" db:"chat_id"`
	Notes       string `json:"notes,omitempty" db:"notes"`
	IsRecipient bool   `json:"is_recipient" db:"is_recipient"`
}

// DeliveryOutcome is the per-attempt verdict recorded for one
// (recipient, channel) pair.
type DeliveryOutcome string

const (
	DeliveryOutcomeSent   DeliveryOutcome = "sent"
	DeliveryOutcomeFailed DeliveryOutcome = "failed"
)

type DeliveryAttempt struct {
	ID         int64           `json:"id" db:"id"`
	MessageID  string          `json:"message_id" db:"message_id"`
	SnapshotID int64           `json:"snapshot_id" db:"snapshot_id"`
	Channel    string          `json:"channel" db:"channel"`
	Outcome    DeliveryOutcome `json:"outcome" db:"outcome"`
	Error      string          `json:"error,omitempty" db:"error"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
