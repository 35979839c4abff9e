package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupsend/internal/entity"
)

func testMembers() []*entity.GroupMember {
	return []*entity.GroupMember{
		{ID: 1, Name: "Anna", Phone: "+4915550001", Email: "anna@example.com", IsDefault: true},
		{ID: 2, Name: "Boris", Phone: "+4915550002", IsDefault: true},
		{ID: 3, Name: "Clara", Email: "clara@example.com", IsDefault: true},
		{ID: 4, Name: "Dora", IsDefault: true}, // no contact data
		{ID: 5, Name: "Emil", Email: "emil@example.com", IsDefault: false},
	}
}

func newTestMessageService() (*messageService, *fakeMessageRepo, *fakePublisher) {
	messageRepo := newFakeMessageRepo()
	memberRepo := &fakeMemberRepo{members: testMembers(), groupName: "Handball U14"}
	publisher := &fakePublisher{}

	svc := NewMessageService(messageRepo, memberRepo, NewSnapshotter(memberRepo), publisher)
	return svc.(*messageService), messageRepo, publisher
}

func customTime(t time.Time) *entity.CustomTime {
	return &entity.CustomTime{Time: t}
}

func TestCreateMessage_Immediate(t *testing.T) {
	svc, repo, publisher := newTestMessageService()

	message, err := svc.CreateMessage(context.Background(), &CreateMessageRequest{
		GroupID: 7,
		Subject: "Training",
		Content: "Training moved to 18:00",
		UserID:  42,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.MessageStatusScheduled, message.Status)
	assert.False(t, message.IsScheduled)
	assert.Nil(t, message.ScheduledAt)

	// Members without contact data are excluded from the snapshot.
	assert.Len(t, message.Snapshot, 4)
	for _, snap := range message.Snapshot {
		assert.NotEqual(t, int64(4), snap.MemberID)
	}

	stored, err := repo.GetByID(context.Background(), message.ID)
	require.NoError(t, err)
	assert.Equal(t, "Training moved to 18:00", stored.Content)

	// One immediate send timer, no reminders.
	require.Len(t, publisher.published, 1)
	assert.Equal(t, TaskKindSend, publisher.published[0].Kind)
	assert.WithinDuration(t, time.Now(), publisher.published[0].ExecuteAt, 5*time.Second)
}

func TestCreateMessage_ScheduledWithReminders(t *testing.T) {
	svc, _, publisher := newTestMessageService()

	at := time.Now().Add(21 * 24 * time.Hour)
	message, err := svc.CreateMessage(context.Background(), &CreateMessageRequest{
		GroupID:     7,
		Content:     "Season opener",
		UserID:      42,
		IsScheduled: true,
		ScheduledAt: customTime(at),
		IsReminders: true,
		Reminders: []ReminderInput{
			{Count: 2, Unit: "weeks"},
			{Count: 3, Unit: "days"},
		},
	})
	require.NoError(t, err)

	assert.True(t, message.IsReminders)
	require.Len(t, message.Reminders, 2)

	sends := publisher.tasksOfKind(TaskKindSend)
	reminders := publisher.tasksOfKind(TaskKindReminder)
	require.Len(t, sends, 1)
	require.Len(t, reminders, 2)
	assert.WithinDuration(t, at, sends[0].ExecuteAt, time.Second)
	for _, task := range reminders {
		assert.NotZero(t, task.ReminderID, "reminder timers must carry the persisted reminder id")
		assert.True(t, task.ExecuteAt.Before(sends[0].ExecuteAt))
	}
}

func TestCreateMessage_OutOfWindowRemindersDropped(t *testing.T) {
	svc, _, publisher := newTestMessageService()

	// Ten minutes out: a one-day reminder cannot fit, and the message
	// still goes through without reminders.
	message, err := svc.CreateMessage(context.Background(), &CreateMessageRequest{
		GroupID:     7,
		Content:     "Last call",
		UserID:      42,
		IsScheduled: true,
		ScheduledAt: customTime(time.Now().Add(10 * time.Minute)),
		IsReminders: true,
		Reminders:   []ReminderInput{{Count: 1, Unit: "days"}},
	})
	require.NoError(t, err)

	assert.False(t, message.IsReminders)
	assert.Empty(t, message.Reminders)
	assert.Empty(t, publisher.tasksOfKind(TaskKindReminder))
}

func TestCreateMessage_Draft(t *testing.T) {
	svc, repo, publisher := newTestMessageService()

	message, err := svc.CreateMessage(context.Background(), &CreateMessageRequest{
		GroupID: 7,
		Content: "Not ready yet",
		UserID:  42,
		Draft:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.MessageStatusDraft, message.Status)
	assert.Empty(t, message.Snapshot, "drafts carry no snapshot")
	assert.Empty(t, publisher.published, "drafts enqueue no timers")

	_, err = repo.GetByID(context.Background(), message.ID)
	assert.NoError(t, err)
}

func TestCreateMessage_NoRecipients(t *testing.T) {
	svc, _, _ := newTestMessageService()

	// Deselect everyone who is a default recipient.
	_, err := svc.CreateMessage(context.Background(), &CreateMessageRequest{
		GroupID: 7,
		Content: "To nobody",
		UserID:  42,
		Include: map[int64]bool{1: false, 2: false, 3: false},
	})
	assert.ErrorIs(t, err, entity.ErrNoRecipients)
}

func TestCreateMessage_RecurrenceNeedsSchedule(t *testing.T) {
	svc, _, _ := newTestMessageService()

	_, err := svc.CreateMessage(context.Background(), &CreateMessageRequest{
		GroupID:        7,
		Content:        "Weekly update",
		UserID:         42,
		IsRecurring:    true,
		RecurringCount: 1,
		RecurringUnit:  "weeks",
	})

	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "recurringInterval", verr.Field)
}

func TestCreateMessage_IntervalOverCap(t *testing.T) {
	svc, _, _ := newTestMessageService()

	_, err := svc.CreateMessage(context.Background(), &CreateMessageRequest{
		GroupID:        7,
		Content:        "Too sparse",
		UserID:         42,
		IsScheduled:    true,
		ScheduledAt:    customTime(time.Now().Add(48 * time.Hour)),
		IsRecurring:    true,
		RecurringCount: 5,
		RecurringUnit:  "weeks",
	})

	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "recurringInterval", verr.Field)
}

func TestUpdateMessage_ReplacesTimers(t *testing.T) {
	svc, _, publisher := newTestMessageService()

	message, err := svc.CreateMessage(context.Background(), &CreateMessageRequest{
		GroupID:     7,
		Content:     "First version",
		UserID:      42,
		IsScheduled: true,
		ScheduledAt: customTime(time.Now().Add(48 * time.Hour)),
		IsReminders: true,
		Reminders:   []ReminderInput{{Count: 1, Unit: "days"}},
	})
	require.NoError(t, err)

	newAt := time.Now().Add(96 * time.Hour)
	updated, err := svc.UpdateMessage(context.Background(), message.ID, &UpdateMessageRequest{
		Content:     "Second version",
		UserID:      43,
		IsScheduled: true,
		ScheduledAt: customTime(newAt),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{message.ID}, publisher.cancelled)
	assert.False(t, updated.IsReminders, "old reminders are replaced wholesale")
	assert.Equal(t, int64(43), updated.LastUpdatedBy)

	sends := publisher.tasksOfKind(TaskKindSend)
	require.Len(t, sends, 2)
	assert.WithinDuration(t, newAt, sends[1].ExecuteAt, time.Second)
}

func TestUpdateMessage_DraftToScheduledSnapshots(t *testing.T) {
	svc, repo, publisher := newTestMessageService()

	draft, err := svc.CreateMessage(context.Background(), &CreateMessageRequest{
		GroupID: 7,
		Content: "Draft",
		UserID:  42,
		Draft:   true,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateMessage(context.Background(), draft.ID, &UpdateMessageRequest{
		Content: "Final",
		UserID:  42,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.MessageStatusScheduled, updated.Status)
	assert.Len(t, updated.Snapshot, 4)

	stored, err := repo.GetByID(context.Background(), draft.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Snapshot, 4, "snapshot must be persisted on finalize")
	assert.Len(t, publisher.tasksOfKind(TaskKindSend), 1)
}

func TestUpdateMessage_TerminalNotEditable(t *testing.T) {
	svc, repo, _ := newTestMessageService()

	message, err := svc.CreateMessage(context.Background(), &CreateMessageRequest{
		GroupID: 7,
		Content: "Already out",
		UserID:  42,
	})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, repo.TransitionStatus(context.Background(), message.ID,
		entity.MessageStatusScheduled, entity.MessageStatusSent, &now, 42))

	_, err = svc.UpdateMessage(context.Background(), message.ID, &UpdateMessageRequest{
		Content: "Too late",
		UserID:  42,
	})
	assert.ErrorIs(t, err, entity.ErrMessageNotEditable)
}

func TestDeleteMessage_CancelsTimers(t *testing.T) {
	svc, repo, publisher := newTestMessageService()

	message, err := svc.CreateMessage(context.Background(), &CreateMessageRequest{
		GroupID:     7,
		Content:     "Cancel me",
		UserID:      42,
		IsScheduled: true,
		ScheduledAt: customTime(time.Now().Add(24 * time.Hour)),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMessage(context.Background(), message.ID))

	assert.Equal(t, []string{message.ID}, publisher.cancelled)
	_, err = repo.GetByID(context.Background(), message.ID)
	assert.True(t, errors.Is(err, entity.ErrMessageNotFound))
}

func TestReminderOptions(t *testing.T) {
	svc, _, _ := newTestMessageService()

	options := svc.ReminderOptions(time.Now().Add(10 * 24 * time.Hour))

	byUnit := make(map[string]int, len(options))
	for _, opt := range options {
		byUnit[opt.Unit] = opt.Max
	}
	assert.Equal(t, 9, byUnit["days"])
	assert.Equal(t, 1, byUnit["weeks"])
	_, hasMonths := byUnit["months"]
	assert.False(t, hasMonths)
}
