package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"groupsend/internal/channel"
	repository "groupsend/internal/database/postgres"
	"groupsend/internal/entity"
	"groupsend/internal/notify"
	"groupsend/internal/schedule"
)

const (
	// maxConcurrentSends bounds the per-dispatch fan-out.
	maxConcurrentSends = 8

	// sweepGrace keeps the sweeper off messages whose timer is merely
	// a few seconds behind the queue poll.
	sweepGrace = 2 * time.Minute

	sweepBatchSize = 100
)

type dispatchService struct {
	messageRepo repository.MessageRepository
	memberRepo  repository.MemberRepository
	senders     []channel.Sender
	notifier    notify.Publisher
	queue       TaskPublisher
}

func NewDispatchService(
	messageRepo repository.MessageRepository,
	memberRepo repository.MemberRepository,
	senders []channel.Sender,
	notifier notify.Publisher,
	queue TaskPublisher,
) DispatchService {
	return &dispatchService{
		messageRepo: messageRepo,
		memberRepo:  memberRepo,
		senders:     senders,
		notifier:    notifier,
		queue:       queue,
	}
}

// Dispatch runs a send-kind due callback end to end. Every step before
// the status transition is side-effect free on the message row, so a
// duplicate or late callback either short-circuits on the loaded status
// or loses the compare-and-set and stops there.
func (s *dispatchService) Dispatch(ctx context.Context, messageID string) (*DispatchResult, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, entity.ErrMessageNotFound) {
			// Deleted after the timer was set. Nothing to do.
			logrus.WithField("message_id", messageID).Info("Dispatch skipped: message no longer exists")
			return nil, nil
		}
		return nil, err
	}

	if message.Status.IsTerminal() {
		logrus.WithFields(logrus.Fields{
			"message_id": messageID,
			"status":     message.Status,
		}).Info("Dispatch skipped: message already settled")
		return &DispatchResult{MessageID: messageID, Status: message.Status}, nil
	}
	if message.Status == entity.MessageStatusDraft {
		logrus.WithField("message_id", messageID).Warn("Dispatch skipped: message is a draft")
		return nil, nil
	}

	attempts, err := s.fanOut(ctx, message, channel.Message{
		Subject: message.Subject,
		Body:    message.Content,
	})
	if err != nil {
		return nil, err
	}

	status := entity.MessageStatusFailed
	var sentAt *time.Time
	if len(attempts) > 0 && allSent(attempts) {
		status = entity.MessageStatusSent
		now := time.Now()
		sentAt = &now
	}

	err = s.messageRepo.TransitionStatus(ctx, messageID,
		entity.MessageStatusScheduled, status, sentAt, message.CreatedBy)
	if err != nil {
		if errors.Is(err, entity.ErrConcurrentUpdate) {
			// Another worker settled this message between our load and
			// the transition. Its outcome stands; ours is discarded.
			logrus.WithField("message_id", messageID).Warn("Dispatch lost status race, discarding outcome")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to transition message status: %w", err)
	}

	if err := s.messageRepo.RecordDeliveryAttempts(ctx, attempts); err != nil {
		logrus.WithError(err).WithField("message_id", messageID).Warn("Failed to record delivery attempts")
	}

	s.publishStatus(ctx, message, status)

	if status == entity.MessageStatusSent && message.IsRecurring {
		if err := s.createNextOccurrence(ctx, message); err != nil {
			logrus.WithError(err).WithField("message_id", messageID).Error("Failed to create next occurrence")
		}
	}

	logrus.WithFields(logrus.Fields{
		"message_id": messageID,
		"status":     status,
		"attempts":   len(attempts),
	}).Info("Message dispatched")

	return &DispatchResult{MessageID: messageID, Status: status, Attempts: attempts}, nil
}

// DispatchReminder runs a reminder-kind due callback: the same fan-out
// as a send but with reminder framing, no status transition and no
// status event. The fired_at mark makes duplicates no-ops.
func (s *dispatchService) DispatchReminder(ctx context.Context, messageID string, reminderID int64) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, entity.ErrMessageNotFound) {
			logrus.WithField("message_id", messageID).Info("Reminder skipped: message no longer exists")
			return nil
		}
		return err
	}
	if message.Status != entity.MessageStatusScheduled {
		logrus.WithFields(logrus.Fields{
			"message_id": messageID,
			"status":     message.Status,
		}).Info("Reminder skipped: message not scheduled")
		return nil
	}

	reminder := findReminder(message.Reminders, reminderID)
	if reminder == nil {
		// Rescheduled out from under the timer.
		logrus.WithFields(logrus.Fields{
			"message_id":  messageID,
			"reminder_id": reminderID,
		}).Info("Reminder skipped: reminder no longer exists")
		return nil
	}

	if err := s.messageRepo.MarkReminderFired(ctx, reminderID, time.Now()); err != nil {
		if errors.Is(err, entity.ErrReminderFired) {
			logrus.WithField("reminder_id", reminderID).Info("Reminder skipped: already fired")
			return nil
		}
		return fmt.Errorf("failed to mark reminder fired: %w", err)
	}

	attempts, err := s.fanOut(ctx, message, reminderPayload(message, reminder))
	if err != nil {
		return err
	}
	if err := s.messageRepo.RecordDeliveryAttempts(ctx, attempts); err != nil {
		logrus.WithError(err).WithField("message_id", messageID).Warn("Failed to record reminder attempts")
	}

	logrus.WithFields(logrus.Fields{
		"message_id":  messageID,
		"reminder_id": reminderID,
		"attempts":    len(attempts),
	}).Info("Reminder dispatched")
	return nil
}

// SweepOverdue re-enqueues scheduled messages whose send time passed
// without a timer firing. The queue task id is deterministic, so
// re-publishing an already pending timer just rewrites it.
func (s *dispatchService) SweepOverdue(ctx context.Context) error {
	before := time.Now().Add(-sweepGrace)

	overdue, err := s.messageRepo.GetOverdueMessages(ctx, before, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to load overdue messages: %w", err)
	}
	if len(overdue) == 0 {
		return nil
	}

	now := time.Now()
	tasks := make([]*Task, 0, len(overdue))
	for _, m := range overdue {
		tasks = append(tasks, &Task{
			Kind:      TaskKindSend,
			MessageID: m.ID,
			ExecuteAt: now,
		})
	}

	if err := s.queue.PublishBatch(ctx, tasks); err != nil {
		return fmt.Errorf("failed to re-enqueue overdue messages: %w", err)
	}

	logrus.WithField("count", len(tasks)).Warn("Re-enqueued overdue messages")
	return nil
}

// fanOut delivers the payload to every (recipient, enabled channel)
// pair with an address, in parallel, and returns one attempt record per
// pair. One failing pair never stops the others.
func (s *dispatchService) fanOut(ctx context.Context, message *entity.Message, payload channel.Message) ([]entity.DeliveryAttempt, error) {
	configs, err := s.memberRepo.GetChannelConfigs(ctx, message.CreatedBy)
	if err != nil {
		// Transient store failure: surface it so the queue retries the
		// timer instead of settling the message on zero attempts.
		return nil, fmt.Errorf("failed to load channel configs: %w", err)
	}

	senders := channel.Enabled(s.senders, configs)
	if len(senders) == 0 {
		logrus.WithField("message_id", message.ID).Warn("No channels enabled for sender")
		return nil, nil
	}

	type target struct {
		sender  channel.Sender
		snap    *entity.RecipientSnapshot
		address string
	}

	var targets []target
	for i := range message.Snapshot {
		snap := &message.Snapshot[i]
		if !snap.IsRecipient {
			continue
		}
		for _, sender := range senders {
			if address := sender.AddressOf(snap); address != "" {
				targets = append(targets, target{sender: sender, snap: snap, address: address})
			}
		}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, maxConcurrentSends)
		attempts = make([]entity.DeliveryAttempt, 0, len(targets))
	)

	for _, t := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(t target) {
			defer wg.Done()
			defer func() { <-sem }()

			attempt := entity.DeliveryAttempt{
				MessageID:  message.ID,
				SnapshotID: t.snap.ID,
				Channel:    t.sender.Name(),
				Outcome:    entity.DeliveryOutcomeSent,
				CreatedAt:  time.Now(),
			}

			if err := t.sender.Send(ctx, t.address, payload); err != nil {
				attempt.Outcome = entity.DeliveryOutcomeFailed
				attempt.Error = err.Error()
				logrus.WithError(err).WithFields(logrus.Fields{
					"message_id": message.ID,
					"channel":    t.sender.Name(),
					"member_id":  t.snap.MemberID,
				}).Error("Channel send failed")
			}

			mu.Lock()
			attempts = append(attempts, attempt)
			mu.Unlock()
		}(t)
	}
	wg.Wait()

	return attempts, nil
}

// createNextOccurrence clones a just-sent recurring message into a
// fresh scheduled row at the next interval step, carrying the original
// snapshot forward, and enqueues its timers.
func (s *dispatchService) createNextOccurrence(ctx context.Context, message *entity.Message) error {
	norm := schedule.NextSchedule(message, time.Now())

	next := &entity.Message{
		ID:            uuid.New().String(),
		GroupID:       message.GroupID,
		Subject:       message.Subject,
		Content:       message.Content,
		Status:        entity.MessageStatusScheduled,
		CreatedBy:     message.CreatedBy,
		LastUpdatedBy: message.LastUpdatedBy,
	}
	applySchedule(next, norm)

	next.Snapshot = make([]entity.RecipientSnapshot, len(message.Snapshot))
	for i, snap := range message.Snapshot {
		snap.ID = 0
		snap.MessageID = ""
		next.Snapshot[i] = snap
	}

	if err := s.messageRepo.CreateOccurrence(ctx, next); err != nil {
		return fmt.Errorf("failed to persist next occurrence: %w", err)
	}

	for _, fire := range norm.FireTimes() {
		task := &Task{MessageID: next.ID, ExecuteAt: fire.At}
		if fire.Kind == schedule.FireKindReminder {
			task.Kind = TaskKindReminder
			task.ReminderID = reminderID(next, fire.Reminder)
		} else {
			task.Kind = TaskKindSend
		}
		if err := s.queue.Publish(ctx, task); err != nil {
			return fmt.Errorf("failed to enqueue occurrence timer: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"message_id":   message.ID,
		"next_id":      next.ID,
		"scheduled_at": norm.ScheduledAt,
	}).Info("Next occurrence created")
	return nil
}

// publishStatus pushes the terminal outcome to the author. Best effort:
// the status is already persisted and must not be rolled back over a
// broker hiccup.
func (s *dispatchService) publishStatus(ctx context.Context, message *entity.Message, status entity.MessageStatus) {
	groupName, err := s.memberRepo.GetGroupName(ctx, message.GroupID)
	if err != nil {
		logrus.WithError(err).WithField("group_id", message.GroupID).Warn("Failed to resolve group name for status event")
	}

	event := notify.StatusEvent{
		Event:     "message-status",
		MessageID: message.ID,
		Status:    status,
		GroupName: groupName,
	}
	if err := s.notifier.PublishStatus(ctx, message.CreatedBy, event); err != nil {
		logrus.WithError(err).WithField("message_id", message.ID).Warn("Failed to publish status event")
	}
}

func reminderPayload(message *entity.Message, reminder *entity.Reminder) channel.Message {
	subject := "Reminder: " + message.Subject
	if message.Subject == "" {
		subject = "Reminder"
	}

	body := message.Content
	if message.ScheduledAt != nil {
		body = fmt.Sprintf("Scheduled for %s\n\n%s",
			message.ScheduledAt.Format("2006-01-02 15:04"), message.Content)
	}
	return channel.Message{Subject: subject, Body: body}
}

func findReminder(reminders []entity.Reminder, id int64) *entity.Reminder {
	for i := range reminders {
		if reminders[i].ID == id {
			return &reminders[i]
		}
	}
	return nil
}

func allSent(attempts []entity.DeliveryAttempt) bool {
	for _, a := range attempts {
		if a.Outcome != entity.DeliveryOutcomeSent {
			return false
		}
	}
	return true
}
