package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/events"
)

type stubStore struct {
	lastTopic     string
	lastAggregate string
	lastPayload   []byte
	nextID        int64
}

func (s *stubStore) InsertDomainEvent(_ context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	s.lastTopic = topic
	s.lastAggregate = aggregateID
	s.lastPayload = payload
	s.nextID++
	return events.Event{
		ID:          s.nextID,
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now(),
	}, nil
}

type captureScheduler struct {
	events []events.Event
	err    error
}

func (c *captureScheduler) Schedule(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{}
	notifier := &captureNotifier{}
	bus := events.Bus{
		Store:     store,
		Scheduler: scheduler,
		Notifiers: []events.Notifier{notifier},
	}

	payload := map[string]any{"receiptId": "r-123"}
	event, err := bus.Emit(context.Background(), events.TopicReceiptCreated, "r-123", payload)
	require.NoError(t, err)
	require.Equal(t, events.TopicReceiptCreated, store.lastTopic)
	require.Equal(t, "r-123", store.lastAggregate)
	require.JSONEq(t, `{"receiptId":"r-123"}`, string(store.lastPayload))
	require.Len(t, scheduler.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, scheduler.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "r-123", decoded["receiptId"])
}

func TestEmitRequiresTopicAndAggregate(t *testing.T) {
	bus := events.Bus{Store: &stubStore{}}

	_, err := bus.Emit(context.Background(), "  ", "r-1", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicReceiptCreated, "", nil)
	require.Error(t, err)
}

func TestEmitSchedulerFailureStillReturnsEvent(t *testing.T) {
	store := &stubStore{}
	scheduler := &captureScheduler{err: errors.New("queue down")}
	bus := events.Bus{Store: store, Scheduler: scheduler}

	event, err := bus.Emit(context.Background(), events.TopicProductLowStock, "8901234567890", nil)
	require.Error(t, err)
	require.NotZero(t, event.ID)
	require.JSONEq(t, `{}`, string(event.Payload))
}
