package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/events"
)

// Scheduler publishes notification tasks for emitted domain events. It
// implements events.DeliveryScheduler.
type Scheduler struct {
	Client   *asynq.Client
	MaxRetry int
	Timeout  time.Duration
	Log      *zerolog.Logger
}

// Schedule enqueues a task for topics that have a worker handler. Unknown
// topics are ignored. The task id is derived from the event id so an event is
// scheduled at most once.
func (s Scheduler) Schedule(ctx context.Context, ev events.Event) error {
	if s.Client == nil {
		return errors.New("queue: asynq client not configured")
	}
	kind, ok := taskKindFor(ev.Topic)
	if !ok {
		return nil
	}
	payload, err := json.Marshal(EventTask{
		EventID:     ev.ID,
		Topic:       ev.Topic,
		AggregateID: ev.AggregateID,
		Payload:     ev.Payload,
		OccurredAt:  ev.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("queue: encode task: %w", err)
	}
	maxRetry := s.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 6
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	task := asynq.NewTask(kind, payload)
	opts := []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(timeout),
		asynq.TaskID(fmt.Sprintf("event:%d", ev.ID)),
	}
	info, err := s.Client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		if TasksEnqueued != nil {
			TasksEnqueued.WithLabelValues(kind, "error").Inc()
		}
		return fmt.Errorf("queue: enqueue %s: %w", kind, err)
	}
	if TasksEnqueued != nil {
		TasksEnqueued.WithLabelValues(kind, "ok").Inc()
	}
	if s.Log != nil {
		s.Log.Debug().Str("task_id", info.ID).Str("kind", kind).Int64("event_id", ev.ID).Msg("task enqueued")
	}
	return nil
}

func taskKindFor(topic string) (string, bool) {
	switch topic {
	case events.TopicReceiptCreated:
		return TaskReceiptNotify, true
	case events.TopicProductLowStock:
		return TaskLowStockNotify, true
	default:
		return "", false
	}
}
