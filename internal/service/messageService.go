package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	repository "groupsend/internal/database/postgres"
	"groupsend/internal/entity"
	"groupsend/internal/schedule"
)

type messageService struct {
	messageRepo repository.MessageRepository
	memberRepo  repository.MemberRepository
	snapshotter *Snapshotter
	queue       TaskPublisher
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	memberRepo repository.MemberRepository,
	snapshotter *Snapshotter,
	queue TaskPublisher,
) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		memberRepo:  memberRepo,
		snapshotter: snapshotter,
		queue:       queue,
	}
}

// CreateMessage normalizes the scheduling intent, freezes the recipient
// list (unless saved as a draft) and enqueues the due callbacks.
func (s *messageService) CreateMessage(ctx context.Context, req *CreateMessageRequest) (*entity.Message, error) {
	now := time.Now()

	norm, err := schedule.Normalize(scheduleInput(
		req.IsScheduled, req.ScheduledAt,
		req.IsRecurring, req.RecurringCount, req.RecurringUnit,
		req.IsReminders, req.Reminders,
	), now)
	if err != nil {
		return nil, err
	}

	message := &entity.Message{
		ID:            uuid.New().String(),
		GroupID:       req.GroupID,
		Subject:       req.Subject,
		Content:       req.Content,
		Status:        entity.MessageStatusDraft,
		CreatedBy:     req.UserID,
		LastUpdatedBy: req.UserID,
	}
	applySchedule(message, norm)

	if req.Draft {
		if err := s.messageRepo.Create(ctx, message); err != nil {
			return nil, fmt.Errorf("failed to create draft: %w", err)
		}
		return message, nil
	}

	// Finalizing: snapshot now, before persisting, so message plus
	// snapshot land in one transaction.
	snapshot, err := s.snapshotter.Snapshot(ctx, req.GroupID, req.Include)
	if err != nil {
		return nil, err
	}
	if countRecipients(snapshot) == 0 {
		return nil, entity.ErrNoRecipients
	}

	message.Status = entity.MessageStatusScheduled
	message.Snapshot = snapshot

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	if err := s.enqueue(ctx, message, norm); err != nil {
		return nil, err
	}

	return message, nil
}

// UpdateMessage re-runs normalization from scratch: pending timers are
// cancelled, the reminder list is replaced wholesale, and new callbacks
// are enqueued. Messages already sent or failed are not editable.
func (s *messageService) UpdateMessage(ctx context.Context, id string, req *UpdateMessageRequest) (*entity.Message, error) {
	message, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if message.Status.IsTerminal() {
		return nil, entity.ErrMessageNotEditable
	}

	now := time.Now()
	norm, err := schedule.Normalize(scheduleInput(
		req.IsScheduled, req.ScheduledAt,
		req.IsRecurring, req.RecurringCount, req.RecurringUnit,
		req.IsReminders, req.Reminders,
	), now)
	if err != nil {
		return nil, err
	}

	if err := s.queue.CancelMessage(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to cancel pending timers: %w", err)
	}

	wasDraft := message.Status == entity.MessageStatusDraft

	message.Subject = req.Subject
	message.Content = req.Content
	message.LastUpdatedBy = req.UserID
	applySchedule(message, norm)

	if req.Draft {
		message.Status = entity.MessageStatusDraft
		if err := s.messageRepo.Update(ctx, message); err != nil {
			return nil, err
		}
		return message, nil
	}

	message.Status = entity.MessageStatusScheduled

	if wasDraft {
		// Leaving draft is the snapshot moment.
		snapshot, err := s.snapshotter.Snapshot(ctx, message.GroupID, req.Include)
		if err != nil {
			return nil, err
		}
		if countRecipients(snapshot) == 0 {
			return nil, entity.ErrNoRecipients
		}
		message.Snapshot = snapshot
	}

	if err := s.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}

	if wasDraft {
		if err := s.messageRepo.SaveSnapshot(ctx, message); err != nil {
			return nil, err
		}
	}

	if err := s.enqueue(ctx, message, norm); err != nil {
		return nil, err
	}

	return message, nil
}

// DeleteMessage cancels pending timers before removing the record; the
// dispatcher's existence check covers any timer that already left the
// queue.
func (s *messageService) DeleteMessage(ctx context.Context, id string) error {
	if err := s.queue.CancelMessage(ctx, id); err != nil {
		return fmt.Errorf("failed to cancel pending timers: %w", err)
	}
	return s.messageRepo.Delete(ctx, id)
}

func (s *messageService) GetMessage(ctx context.Context, id string) (*entity.Message, error) {
	return s.messageRepo.GetByID(ctx, id)
}

func (s *messageService) GetGroupMessages(ctx context.Context, groupID int64) ([]*entity.Message, error) {
	messages, err := s.messageRepo.GetByGroupID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group messages: %w", err)
	}
	return messages, nil
}

// ReminderOptions reports, per user-facing unit, the maximum reminder
// count still inside the window before scheduledAt.
func (s *messageService) ReminderOptions(scheduledAt time.Time) []ReminderOption {
	now := time.Now()

	var options []ReminderOption
	for _, unit := range []entity.ReminderUnit{
		entity.ReminderUnitDays,
		entity.ReminderUnitWeeks,
		entity.ReminderUnitMonths,
	} {
		if max := schedule.MaxAllowed(unit, scheduledAt, now); max >= 1 {
			options = append(options, ReminderOption{Unit: string(unit), Max: max})
		}
	}
	return options
}

// enqueue publishes one timer per fire time of the normalized schedule.
func (s *messageService) enqueue(ctx context.Context, message *entity.Message, norm *schedule.NormalizedSchedule) error {
	for _, fire := range norm.FireTimes() {
		task := &Task{
			MessageID: message.ID,
			ExecuteAt: fire.At,
		}
		switch fire.Kind {
		case schedule.FireKindReminder:
			task.Kind = TaskKindReminder
			task.ReminderID = reminderID(message, fire.Reminder)
		default:
			task.Kind = TaskKindSend
		}

		if err := s.queue.Publish(ctx, task); err != nil {
			return fmt.Errorf("failed to enqueue %s timer: %w", task.Kind, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"message_id": message.ID,
		"timers":     len(norm.FireTimes()),
	}).Info("Message timers enqueued")
	return nil
}

// reminderID resolves the persisted reminder row matching a normalized
// reminder by its (count, unit) key.
func reminderID(message *entity.Message, rem *entity.Reminder) int64 {
	if rem == nil {
		return 0
	}
	for _, persisted := range message.Reminders {
		if persisted.Count == rem.Count && persisted.Unit == rem.Unit {
			return persisted.ID
		}
	}
	return 0
}

func countRecipients(snapshot []entity.RecipientSnapshot) int {
	n := 0
	for _, snap := range snapshot {
		if snap.IsRecipient {
			n++
		}
	}
	return n
}

func scheduleInput(
	isScheduled bool, scheduledAt *entity.CustomTime,
	isRecurring bool, recurringCount int, recurringUnit string,
	isReminders bool, reminders []ReminderInput,
) schedule.ScheduleInput {
	in := schedule.ScheduleInput{
		IsScheduled: isScheduled,
		IsRecurring: isRecurring,
		IsReminders: isReminders,
	}

	if scheduledAt != nil {
		at := scheduledAt.Time
		in.ScheduledAt = &at
	}
	if isRecurring {
		in.Recurring = &entity.RecurringInterval{
			Count: recurringCount,
			Unit:  entity.IntervalUnit(recurringUnit),
		}
	}
	for _, r := range reminders {
		in.Reminders = append(in.Reminders, entity.Reminder{
			Count: r.Count,
			Unit:  entity.ReminderUnit(r.Unit),
		})
	}
	return in
}

func applySchedule(message *entity.Message, norm *schedule.NormalizedSchedule) {
	message.IsScheduled = norm.IsScheduled
	message.ScheduledAt = norm.ScheduledAt
	message.IsRecurring = norm.IsRecurring
	message.Recurring = norm.Recurring
	message.IsReminders = norm.IsReminders
	message.Reminders = norm.Reminders
}
