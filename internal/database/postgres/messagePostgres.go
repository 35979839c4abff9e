package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"groupsend/internal/entity"
)

type messageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create persists the message together with its reminders and recipient
// snapshot in one transaction so a half-written message never becomes
// visible to the dispatcher.
func (r *messageRepository) Create(ctx context.Context, message *entity.Message) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	now := time.Now()

	query := `
		INSERT INTO messages (
			id, group_id, subject, content, status,
			is_scheduled, scheduled_at, is_recurring, recurring_count, recurring_unit,
			is_reminders, created_by, last_updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	var recurringCount sql.NullInt64
	var recurringUnit sql.NullString
	if message.Recurring != nil {
		recurringCount = sql.NullInt64{Int64: int64(message.Recurring.Count), Valid: true}
		recurringUnit = sql.NullString{String: string(message.Recurring.Unit), Valid: true}
	}

	_, err = tx.ExecContext(ctx, query,
		message.ID,
		message.GroupID,
		message.Subject,
		message.Content,
		message.Status,
		message.IsScheduled,
		message.ScheduledAt,
		message.IsRecurring,
		recurringCount,
		recurringUnit,
		message.IsReminders,
		message.CreatedBy,
		message.LastUpdatedBy,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %v", err)
	}

	if err := insertReminders(ctx, tx, message); err != nil {
		return err
	}
	if err := insertSnapshot(ctx, tx, message); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	message.CreatedAt = now
	message.UpdatedAt = now
	return nil
}

func insertReminders(ctx context.Context, tx *sql.Tx, message *entity.Message) error {
	query := `
		INSERT INTO reminders (message_id, count, unit)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	for i := range message.Reminders {
		rem := &message.Reminders[i]
		rem.MessageID = message.ID
		if err := tx.QueryRowContext(ctx, query, message.ID, rem.Count, rem.Unit).Scan(&rem.ID); err != nil {
			return fmt.Errorf("failed to create reminder: %v", err)
		}
	}
	return nil
}

func insertSnapshot(ctx context.Context, tx *sql.Tx, message *entity.Message) error {
	query := `
		INSERT INTO recipient_snapshots (
			message_id, member_id, name, phone, email, chat_id, notes, is_recipient
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	for i := range message.Snapshot {
		snap := &message.Snapshot[i]
		snap.MessageID = message.ID
		err := tx.QueryRowContext(ctx, query,
			message.ID, snap.MemberID, snap.Name, snap.Phone,
			snap.Email, snap.ChatID, snap.Notes, snap.IsRecipient,
		).Scan(&snap.ID)
		if err != nil {
			return fmt.Errorf("failed to create recipient snapshot: %v", err)
		}
	}
	return nil
}

// GetByID loads a message with its reminders and recipient snapshot.
func (r *messageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	query := `
		SELECT
			id, group_id, subject, content, status,
			is_scheduled, scheduled_at, is_recurring, recurring_count, recurring_unit,
			is_reminders, created_by, sent_by, last_updated_by,
			created_at, updated_at, sent_at
		FROM messages
		WHERE id = $1
	`

	message, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %v", err)
	}

	if message.Reminders, err = r.getReminders(ctx, id); err != nil {
		return nil, err
	}
	if message.Snapshot, err = r.getSnapshot(ctx, id); err != nil {
		return nil, err
	}

	return message, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*entity.Message, error) {
	var message entity.Message
	var recurringCount sql.NullInt64
	var recurringUnit sql.NullString
	var sentBy sql.NullInt64

	err := row.Scan(
		&message.ID,
		&message.GroupID,
		&message.Subject,
		&message.Content,
		&message.Status,
		&message.IsScheduled,
		&message.ScheduledAt,
		&message.IsRecurring,
		&recurringCount,
		&recurringUnit,
		&message.IsReminders,
		&message.CreatedBy,
		&sentBy,
		&message.LastUpdatedBy,
		&message.CreatedAt,
		&message.UpdatedAt,
		&message.SentAt,
	)
	if err != nil {
		return nil, err
	}

	if recurringCount.Valid && recurringUnit.Valid {
		message.Recurring = &entity.RecurringInterval{
			Count: int(recurringCount.Int64),
			Unit:  entity.IntervalUnit(recurringUnit.String),
		}
	}
	if sentBy.Valid {
		message.SentBy = sentBy.Int64
	}

	return &message, nil
}

func (r *messageRepository) getReminders(ctx context.Context, messageID string) ([]entity.Reminder, error) {
	query := `
		SELECT id, message_id, count, unit, fired_at
		FROM reminders
		WHERE message_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reminders: %v", err)
	}
	defer rows.Close()

	var reminders []entity.Reminder
	for rows.Next() {
		var rem entity.Reminder
		if err := rows.Scan(&rem.ID, &rem.MessageID, &rem.Count, &rem.Unit, &rem.FiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %v", err)
		}
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}

func (r *messageRepository) getSnapshot(ctx context.Context, messageID string) ([]entity.RecipientSnapshot, error) {
	query := `
		SELECT id, message_id, member_id, name, phone, email, chat_id, notes, is_recipient
		FROM recipient_snapshots
		WHERE message_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient snapshot: %v", err)
	}
	defer rows.Close()

	var snapshot []entity.RecipientSnapshot
	for rows.Next() {
		var snap entity.RecipientSnapshot
		err := rows.Scan(
			&snap.ID, &snap.MessageID, &snap.MemberID, &snap.Name,
			&snap.Phone, &snap.Email, &snap.ChatID, &snap.Notes, &snap.IsRecipient,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipient snapshot: %v", err)
		}
		snapshot = append(snapshot, snap)
	}
	return snapshot, rows.Err()
}

// Update rewrites the mutable fields and replaces the reminder list
// wholesale. Only unsent messages may be updated; the status predicate
// makes a racing edit against a concurrent dispatch lose cleanly.
func (r *messageRepository) Update(ctx context.Context, message *entity.Message) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	var recurringCount sql.NullInt64
	var recurringUnit sql.NullString
	if message.Recurring != nil {
		recurringCount = sql.NullInt64{Int64: int64(message.Recurring.Count), Valid: true}
		recurringUnit = sql.NullString{String: string(message.Recurring.Unit), Valid: true}
	}

	query := `
		UPDATE messages SET
			subject = $2, content = $3, status = $4,
			is_scheduled = $5, scheduled_at = $6,
			is_recurring = $7, recurring_count = $8, recurring_unit = $9,
			is_reminders = $10, last_updated_by = $11, updated_at = $12
		WHERE id = $1 AND status IN ('draft', 'scheduled')
	`

	now := time.Now()
	result, err := tx.ExecContext(ctx, query,
		message.ID,
		message.Subject,
		message.Content,
		message.Status,
		message.IsScheduled,
		message.ScheduledAt,
		message.IsRecurring,
		recurringCount,
		recurringUnit,
		message.IsReminders,
		message.LastUpdatedBy,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to update message: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %v", err)
	}
	if affected == 0 {
		return entity.ErrMessageNotEditable
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE message_id = $1`, message.ID); err != nil {
		return fmt.Errorf("failed to clear reminders: %v", err)
	}
	if err := insertReminders(ctx, tx, message); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	message.UpdatedAt = now
	return nil
}

// SaveSnapshot replaces the message's recipient snapshot. Used once, on
// the draft to scheduled transition.
func (r *messageRepository) SaveSnapshot(ctx context.Context, message *entity.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recipient_snapshots WHERE message_id = $1`, message.ID); err != nil {
		return fmt.Errorf("failed to clear recipient snapshot: %v", err)
	}
	if err := insertSnapshot(ctx, tx, message); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

// Delete removes the message; reminders, snapshot rows and delivery
// attempts go with it via ON DELETE CASCADE.
func (r *messageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %v", err)
	}
	if affected == 0 {
		return entity.ErrMessageNotFound
	}
	return nil
}

func (r *messageRepository) GetByGroupID(ctx context.Context, groupID int64) ([]*entity.Message, error) {
	query := `
		SELECT
			id, group_id, subject, content, status,
			is_scheduled, scheduled_at, is_recurring, recurring_count, recurring_unit,
			is_reminders, created_by, sent_by, last_updated_by,
			created_at, updated_at, sent_at
		FROM messages
		WHERE group_id = $1
		ORDER BY created_at DESC
	`
	return r.queryMessages(ctx, query, groupID)
}

func (r *messageRepository) GetByStatus(ctx context.Context, status entity.MessageStatus) ([]*entity.Message, error) {
	query := `
		SELECT
			id, group_id, subject, content, status,
			is_scheduled, scheduled_at, is_recurring, recurring_count, recurring_unit,
			is_reminders, created_by, sent_by, last_updated_by,
			created_at, updated_at, sent_at
		FROM messages
		WHERE status = $1
		ORDER BY created_at DESC
	`
	return r.queryMessages(ctx, query, status)
}

// GetOverdueMessages returns scheduled messages whose send time passed
// more than the grace period ago. Used by the catch-up sweep; dispatch
// idempotency makes double pickup harmless.
func (r *messageRepository) GetOverdueMessages(ctx context.Context, before time.Time, limit int) ([]*entity.Message, error) {
	query := `
		SELECT
			id, group_id, subject, content, status,
			is_scheduled, scheduled_at, is_recurring, recurring_count, recurring_unit,
			is_reminders, created_by, sent_by, last_updated_by,
			created_at, updated_at, sent_at
		FROM messages
		WHERE status = 'scheduled' AND scheduled_at IS NOT NULL AND scheduled_at < $1
		ORDER BY scheduled_at
		LIMIT $2
	`
	return r.queryMessages(ctx, query, before, limit)
}

func (r *messageRepository) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*entity.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %v", err)
	}
	defer rows.Close()

	var messages []*entity.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %v", err)
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

// TransitionStatus performs the compare-and-set the idempotency guard
// relies on: the row only moves when its current status still equals
// from. Zero affected rows means another dispatch (or a delete) won the
// race.
func (r *messageRepository) TransitionStatus(ctx context.Context, id string, from, to entity.MessageStatus, sentAt *time.Time, sentBy int64) error {
	query := `
		UPDATE messages
		SET status = $3, sent_at = COALESCE($4, sent_at), sent_by = $5, updated_at = $6
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, from, to, sentAt, sentBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to transition message status: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %v", err)
	}
	if affected == 0 {
		return entity.ErrConcurrentUpdate
	}
	return nil
}

// MarkReminderFired sets fired_at once; a second attempt for the same
// reminder returns ErrReminderFired so redelivered reminder callbacks
// are dropped.
func (r *messageRepository) MarkReminderFired(ctx context.Context, reminderID int64, firedAt time.Time) error {
	query := `
		UPDATE reminders
		SET fired_at = $2
		WHERE id = $1 AND fired_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, reminderID, firedAt)
	if err != nil {
		return fmt.Errorf("failed to mark reminder fired: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %v", err)
	}
	if affected == 0 {
		return entity.ErrReminderFired
	}
	return nil
}

func (r *messageRepository) RecordDeliveryAttempts(ctx context.Context, attempts []entity.DeliveryAttempt) error {
	if len(attempts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO delivery_attempts (message_id, snapshot_id, channel, outcome, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now()
	for _, attempt := range attempts {
		_, err := tx.ExecContext(ctx, query,
			attempt.MessageID, attempt.SnapshotID, attempt.Channel,
			attempt.Outcome, attempt.Error, now,
		)
		if err != nil {
			return fmt.Errorf("failed to record delivery attempt: %v", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}
	return nil
}

// CreateOccurrence persists the next occurrence of a recurring message:
// a fresh row with the same content plus a copy of the frozen snapshot,
// entering the schedule as a new cycle.
func (r *messageRepository) CreateOccurrence(ctx context.Context, message *entity.Message) error {
	return r.Create(ctx, message)
}
