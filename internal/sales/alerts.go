package sales

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/events"
)

// Emitter is the slice of the event bus the alerter needs.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// BusAlerter publishes low stock alerts as domain events so the notification
// pipeline picks them up.
type BusAlerter struct {
	Events Emitter
	Log    *zerolog.Logger
}

func (a BusAlerter) LowStock(ctx context.Context, top TopSeller) {
	if a.Events == nil {
		return
	}
	if _, err := a.Events.Emit(ctx, events.TopicProductLowStock, top.Barcode, top); err != nil && a.Log != nil {
		a.Log.Warn().Err(err).Str("barcode", top.Barcode).Msg("low stock event emit failed")
	}
}
