package service

import (
	"context"
	"sync"
	"time"

	"groupsend/internal/channel"
	"groupsend/internal/entity"
	"groupsend/internal/notify"
)

// fakeMessageRepo is an in-memory MessageRepository with the same
// compare-and-set semantics as the postgres implementation.
type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*entity.Message
	attempts []entity.DeliveryAttempt

	nextReminderID int64

	createErr error
	updateErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*entity.Message)}
}

func (f *fakeMessageRepo) Create(_ context.Context, message *entity.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.assignReminderIDs(message)
	f.messages[message.ID] = cloneMessage(message)
	return nil
}

func (f *fakeMessageRepo) GetByID(_ context.Context, id string) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return nil, entity.ErrMessageNotFound
	}
	return cloneMessage(m), nil
}

func (f *fakeMessageRepo) Update(_ context.Context, message *entity.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	existing, ok := f.messages[message.ID]
	if !ok {
		return entity.ErrMessageNotFound
	}
	if existing.Status.IsTerminal() {
		return entity.ErrMessageNotEditable
	}
	f.assignReminderIDs(message)
	snapshot := existing.Snapshot
	f.messages[message.ID] = cloneMessage(message)
	f.messages[message.ID].Snapshot = snapshot
	return nil
}

func (f *fakeMessageRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[id]; !ok {
		return entity.ErrMessageNotFound
	}
	delete(f.messages, id)
	return nil
}

func (f *fakeMessageRepo) SaveSnapshot(_ context.Context, message *entity.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[message.ID]
	if !ok {
		return entity.ErrMessageNotFound
	}
	m.Snapshot = append([]entity.RecipientSnapshot(nil), message.Snapshot...)
	return nil
}

func (f *fakeMessageRepo) GetByGroupID(_ context.Context, groupID int64) ([]*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Message
	for _, m := range f.messages {
		if m.GroupID == groupID {
			out = append(out, cloneMessage(m))
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) GetByStatus(_ context.Context, status entity.MessageStatus) ([]*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Message
	for _, m := range f.messages {
		if m.Status == status {
			out = append(out, cloneMessage(m))
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) TransitionStatus(_ context.Context, id string, from, to entity.MessageStatus, sentAt *time.Time, sentBy int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok || m.Status != from {
		return entity.ErrConcurrentUpdate
	}
	m.Status = to
	m.SentAt = sentAt
	m.SentBy = sentBy
	return nil
}

func (f *fakeMessageRepo) MarkReminderFired(_ context.Context, reminderID int64, firedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		for i := range m.Reminders {
			if m.Reminders[i].ID != reminderID {
				continue
			}
			if m.Reminders[i].FiredAt != nil {
				return entity.ErrReminderFired
			}
			m.Reminders[i].FiredAt = &firedAt
			return nil
		}
	}
	return entity.ErrReminderNotFound
}

func (f *fakeMessageRepo) RecordDeliveryAttempts(_ context.Context, attempts []entity.DeliveryAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempts...)
	return nil
}

func (f *fakeMessageRepo) CreateOccurrence(ctx context.Context, message *entity.Message) error {
	return f.Create(ctx, message)
}

func (f *fakeMessageRepo) GetOverdueMessages(_ context.Context, before time.Time, limit int) ([]*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Message
	for _, m := range f.messages {
		if m.Status == entity.MessageStatusScheduled && m.ScheduledAt != nil && m.ScheduledAt.Before(before) {
			out = append(out, cloneMessage(m))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) assignReminderIDs(message *entity.Message) {
	for i := range message.Reminders {
		if message.Reminders[i].ID == 0 {
			f.nextReminderID++
			message.Reminders[i].ID = f.nextReminderID
		}
	}
}

func cloneMessage(m *entity.Message) *entity.Message {
	out := *m
	out.Reminders = append([]entity.Reminder(nil), m.Reminders...)
	out.Snapshot = append([]entity.RecipientSnapshot(nil), m.Snapshot...)
	if m.Recurring != nil {
		iv := *m.Recurring
		out.Recurring = &iv
	}
	return &out
}

type fakeMemberRepo struct {
	members   []*entity.GroupMember
	configs   []*entity.ChannelConfig
	groupName string
	configErr error
}

func (f *fakeMemberRepo) GetGroupMembers(_ context.Context, _ int64) ([]*entity.GroupMember, error) {
	return f.members, nil
}

func (f *fakeMemberRepo) GetMemberByID(_ context.Context, id int64) (*entity.GroupMember, error) {
	for _, m := range f.members {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, entity.ErrMemberNotFound
}

func (f *fakeMemberRepo) GetChannelConfigs(_ context.Context, _ int64) ([]*entity.ChannelConfig, error) {
	if f.configErr != nil {
		return nil, f.configErr
	}
	return f.configs, nil
}

func (f *fakeMemberRepo) GetGroupName(_ context.Context, _ int64) (string, error) {
	return f.groupName, nil
}

// fakePublisher records published timers and cancellations.
type fakePublisher struct {
	mu        sync.Mutex
	published []*Task
	cancelled []string
}

func (f *fakePublisher) Publish(_ context.Context, task *Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, task)
	return nil
}

func (f *fakePublisher) PublishBatch(_ context.Context, tasks []*Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, tasks...)
	return nil
}

func (f *fakePublisher) CancelMessage(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, messageID)
	return nil
}

func (f *fakePublisher) tasksOfKind(kind string) []*Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Task
	for _, t := range f.published {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.StatusEvent
}

func (f *fakeNotifier) PublishStatus(_ context.Context, _ int64, event notify.StatusEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeNotifier) Close() error { return nil }

// fakeSender delivers to one address field and can be told to fail for
// specific addresses.
type fakeSender struct {
	name    string
	address func(*entity.RecipientSnapshot) string

	mu      sync.Mutex
	sent    []string
	failFor map[string]bool
	sendErr error
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) AddressOf(r *entity.RecipientSnapshot) string {
	return f.address(r)
}

func (f *fakeSender) Send(_ context.Context, address string, _ channel.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.failFor[address] {
		return errFakeSend
	}
	f.sent = append(f.sent, address)
	return nil
}

var errFakeSend = &sendError{}

type sendError struct{}

func (*sendError) Error() string { return "gateway rejected message" }

func smsFake() *fakeSender {
	return &fakeSender{
		name:    channel.NameSMS,
		address: func(r *entity.RecipientSnapshot) string { return r.Phone },
	}
}

func emailFake() *fakeSender {
	return &fakeSender{
		name:    channel.NameEmail,
		address: func(r *entity.RecipientSnapshot) string { return r.Email },
	}
}
