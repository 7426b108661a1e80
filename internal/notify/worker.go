package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-pos/internal/lock"
	"github.com/noah-isme/backend-pos/internal/queue"
)

// DeliveryWorker executes notification tasks with a per-event distributed
// lock so concurrent workers never deliver the same event twice.
type DeliveryWorker struct {
	Webhook *Webhook
	Locker  lock.Locker
	LockTTL time.Duration
}

// HandleEventTask is the asynq handler for receipt and low stock tasks.
func (w DeliveryWorker) HandleEventTask(ctx context.Context, task *asynq.Task) error {
	if w.Webhook == nil {
		return errors.New("notify: webhook not configured")
	}
	var ev queue.EventTask
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		// malformed payloads never succeed, drop instead of retrying
		return fmt.Errorf("notify: decode task: %v: %w", err, asynq.SkipRetry)
	}
	ttl := w.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	key := fmt.Sprintf("lock:notify:%d", ev.EventID)
	return w.Locker.WithLock(ctx, key, ttl, func(ctx context.Context) error {
		return w.Webhook.Deliver(ctx, ev)
	})
}

// Register attaches the worker's handlers to the mux.
func (w DeliveryWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.TaskReceiptNotify, w.HandleEventTask)
	mux.HandleFunc(queue.TaskLowStockNotify, w.HandleEventTask)
}
