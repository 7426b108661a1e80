package session

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/checkout"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/scan"
)

const scanSourceBuffer = 256

// Session owns one cashier's working cart, its open scan stream, and the
// current checkout attempt. All mutations serialize on the session lock, so
// cart edits never interleave and a commit, once entered, always resolves
// before the next mutation is applied. Sessions share nothing with each other.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	store    *cart.Store
	attempt  *checkout.Attempt
	recovery *Recovery

	resolver *scan.Resolver
	scanSrc  chan string
	scanSess *scan.Session
	closed   bool
}

// lockedSink adapts the session to scan.Sink: scanned items go through the
// same lock as every other cart mutation.
type lockedSink struct {
	s *Session
}

func (ls lockedSink) AddItem(item catalog.Item) {
	ls.s.AddItem(context.Background(), item)
}

// AddItem merges a catalog item into the cart.
func (s *Session) AddItem(ctx context.Context, item catalog.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.AddItem(item)
	s.persist(ctx)
}

// AddItemWithQuantity merges qty units of an item into the cart. Read and
// write happen under one lock acquisition, so a concurrent scan add of the
// same barcode is never lost.
func (s *Session) AddItemWithQuantity(ctx context.Context, item catalog.Item, qty int) {
	if qty < 1 {
		qty = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := 0
	for _, l := range s.store.Snapshot() {
		if l.Barcode == item.Barcode {
			current = l.Qty
			break
		}
	}
	s.store.AddItem(item)
	if target := current + qty; target > current+1 {
		s.store.SetQuantity(item.Barcode, target)
	}
	s.persist(ctx)
}

// RemoveItem deletes a line; absent barcodes are a no-op.
func (s *Session) RemoveItem(ctx context.Context, barcode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.RemoveItem(barcode)
	s.persist(ctx)
}

// SetQuantity updates a line quantity; zero or less removes the line.
func (s *Session) SetQuantity(ctx context.Context, barcode string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetQuantity(barcode, qty)
	s.persist(ctx)
}

// Clear empties the cart on explicit user cancellation.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Clear()
	s.persist(ctx)
}

// Snapshot returns the ordered, detached cart lines.
func (s *Session) Snapshot() []cart.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// Total computes the current cart total in minor units.
func (s *Session) Total() pricing.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Total(cart.PricingLines(s.store.Snapshot()))
}

// BeginCheckout starts a fresh checkout attempt. A previous terminal attempt
// is replaced; an attempt still awaiting payment is reused.
func (s *Session) BeginCheckout(submitter checkout.Submitter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt != nil && s.attempt.State() == checkout.StateAwaitingPayment {
		return nil
	}
	attempt := checkout.NewAttempt(s.store, submitter)
	if err := attempt.Begin(); err != nil {
		return err
	}
	s.attempt = attempt
	return nil
}

// SubmitPayment drives the active attempt through its commit. The session
// lock is held for the duration, so cart mutations and scans queue behind the
// commit and can never touch the snapshot being persisted.
func (s *Session) SubmitPayment(ctx context.Context, in checkout.PaymentInput) (checkout.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt == nil {
		return checkout.Receipt{}, checkout.ErrInvalidTransition
	}
	receipt, err := s.attempt.Submit(ctx, in)
	if err != nil {
		return checkout.Receipt{}, err
	}
	s.persist(ctx)
	return receipt, nil
}

// CheckoutState reports the state of the current attempt, Idle when none.
func (s *Session) CheckoutState() checkout.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt == nil {
		return checkout.StateIdle
	}
	return s.attempt.State()
}

// PushScan feeds one decoded barcode into the open scan stream. It reports
// whether the scan was accepted; a saturated buffer drops the scan, matching
// the noise-tolerance policy for bursty sources.
func (s *Session) PushScan(barcode string) bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || s.scanSrc == nil {
		return false
	}
	select {
	case s.scanSrc <- barcode:
		return true
	default:
		return false
	}
}

// ResolveScan handles one decoded barcode synchronously. A catalog hit is
// added to the cart through the same sink as the streaming source; a miss is
// reported without touching the cart.
func (s *Session) ResolveScan(ctx context.Context, barcode string) (catalog.Item, bool, error) {
	if s.resolver == nil {
		return catalog.Item{}, false, nil
	}
	return s.resolver.Resolve(ctx, barcode)
}

// ScanEvents exposes the session's scan outcome stream.
func (s *Session) ScanEvents() <-chan scan.Event {
	if s.scanSess == nil {
		return nil
	}
	return s.scanSess.Events()
}

// Close stops scan consumption. Cart state already applied is untouched; an
// in-flight commit still resolves because it holds the session lock.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	if s.scanSess != nil {
		s.scanSess.Close()
	}
}

// persist saves a recovery snapshot; callers hold the session lock. Recovery
// is a convenience, never the source of truth, so failures are dropped.
func (s *Session) persist(ctx context.Context) {
	if s.recovery == nil {
		return
	}
	_ = s.recovery.Save(ctx, s.ID, s.store.Snapshot())
}
