package queue

import (
	"encoding/json"
	"time"
)

// Task kinds processed by the worker.
const (
	TaskReceiptNotify  = "receipt:notify"
	TaskLowStockNotify = "stock:low_notify"
)

// QueueDefault is the asynq queue all notification tasks land on.
const QueueDefault = "default"

// EventTask is the payload carried by notification tasks. It is a detached
// copy of the domain event so the worker never needs the events table.
type EventTask struct {
	EventID     int64           `json:"event_id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
}
