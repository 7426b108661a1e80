package scan

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/catalog"
)

// Lookup resolves a decoded barcode to a catalog item. A miss surfaces
// catalog.ErrNotFound.
type Lookup interface {
	LookupByBarcode(ctx context.Context, barcode string) (catalog.Item, error)
}

// Sink receives resolved items, typically the session cart store.
type Sink interface {
	AddItem(item catalog.Item)
}

// Event is one observed scan outcome. Misses are still emitted so observers
// can count noise, but they never reach the sink.
type Event struct {
	Barcode string
	Matched bool
	Item    catalog.Item
}

// Resolver turns a stream of decoded barcode strings into cart additions. It
// isolates the nondeterministic scan source from the deterministic cart
// logic: a barcode with no catalog match is dropped silently and scanning
// continues.
type Resolver struct {
	Lookup     Lookup
	Sink       Sink
	Logger     *zerolog.Logger
	OnResolved func(matched bool)
}

// Session is one open scan stream. Closing it stops consumption without
// affecting cart state already applied. Sessions are cheap; reopening after a
// close restarts the stream.
type Session struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

const eventBuffer = 64

// Open starts draining src until the source closes, the context is
// cancelled, or Close is called.
func (r *Resolver) Open(ctx context.Context, src <-chan string) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		events: make(chan Event, eventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go r.run(ctx, src, s)
	return s
}

// Resolve handles a single decoded barcode synchronously: on a catalog hit
// the item is added to the sink. It reports whether the barcode matched.
func (r *Resolver) Resolve(ctx context.Context, barcode string) (catalog.Item, bool, error) {
	item, err := r.Lookup.LookupByBarcode(ctx, barcode)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) || errors.Is(err, catalog.ErrInvalidInput) {
			r.observe(false)
			return catalog.Item{}, false, nil
		}
		return catalog.Item{}, false, err
	}
	if r.Sink != nil {
		r.Sink.AddItem(item)
	}
	r.observe(true)
	return item, true, nil
}

func (r *Resolver) run(ctx context.Context, src <-chan string, s *Session) {
	defer close(s.done)
	defer close(s.events)
	for {
		select {
		case <-ctx.Done():
			return
		case barcode, ok := <-src:
			if !ok {
				return
			}
			item, matched, err := r.Resolve(ctx, barcode)
			if err != nil {
				// infrastructure failure on lookup: a mis-read is expected
				// noise, so log and keep the stream alive
				if r.Logger != nil {
					r.Logger.Warn().Err(err).Str("barcode", barcode).Msg("scan lookup failed")
				}
				continue
			}
			s.emit(Event{Barcode: barcode, Matched: matched, Item: item})
		}
	}
}

func (r *Resolver) observe(matched bool) {
	if r.OnResolved != nil {
		r.OnResolved(matched)
	}
}

// Events exposes the lazy stream of scan outcomes. The channel closes when
// the session ends.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Close stops consumption and releases the source. Safe to call more than once.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		// no observer draining; scanning must not block behind a full buffer
	}
}
