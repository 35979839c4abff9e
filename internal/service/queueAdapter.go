package service

import (
	"context"
	"time"

	"groupsend/pkg/queue"
)

// QueueAdapter bridges the service-level task publisher onto the redis
// timer queue, and translates due tasks back into dispatcher calls.
type QueueAdapter struct {
	queue interface {
		Publish(ctx context.Context, task *queue.Task) error
		PublishBatch(ctx context.Context, tasks []*queue.Task) error
		CancelMessage(ctx context.Context, messageID string) (int, error)
	}
}

func NewQueueAdapter(q *queue.RedisQueue) *QueueAdapter {
	return &QueueAdapter{queue: q}
}

func (a *QueueAdapter) Publish(ctx context.Context, task *Task) error {
	return a.queue.Publish(ctx, toQueueTask(task))
}

func (a *QueueAdapter) PublishBatch(ctx context.Context, tasks []*Task) error {
	out := make([]*queue.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toQueueTask(t))
	}
	return a.queue.PublishBatch(ctx, out)
}

func (a *QueueAdapter) CancelMessage(ctx context.Context, messageID string) error {
	_, err := a.queue.CancelMessage(ctx, messageID)
	return err
}

func toQueueTask(t *Task) *queue.Task {
	out := &queue.Task{
		Kind:       queue.TaskKind(t.Kind),
		MessageID:  t.MessageID,
		ReminderID: t.ReminderID,
		ExecuteAt:  t.ExecuteAt,
		CreatedAt:  time.Now(),
	}
	if out.Kind == queue.TaskKindReminder {
		out.ID = queue.ReminderTaskID(t.MessageID, t.ReminderID)
	} else {
		out.ID = queue.SendTaskID(t.MessageID)
	}
	return out
}

// TaskHandler routes a due timer to the dispatcher. It is the handler
// passed to the queue's Subscribe loop.
func TaskHandler(dispatch DispatchService) func(*queue.Task) error {
	return func(task *queue.Task) error {
		ctx := context.Background()
		switch task.Kind {
		case queue.TaskKindReminder:
			return dispatch.DispatchReminder(ctx, task.MessageID, task.ReminderID)
		default:
			_, err := dispatch.Dispatch(ctx, task.MessageID)
			return err
		}
	}
}
