package cart

import (
	"errors"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

// ErrInvalidQuantity is returned by input validation upstream of the store
// when a quantity is not a finite integer. The store itself only accepts
// validated integers.
var ErrInvalidQuantity = errors.New("cart: invalid quantity")

// Line is one catalog item's quantity within a cart, keyed by barcode. The
// unit price is snapshotted when the barcode is first added and does not
// follow later catalog price changes.
type Line struct {
	Barcode   string        `json:"barcode"`
	Name      string        `json:"name"`
	UnitPrice pricing.Money `json:"unitPrice"`
	Qty       int           `json:"qty"`
}

// Store holds the ordered working set of lines for one checkout session.
// Mutations are plain synchronous operations; callers serialize access (one
// session, one logical thread of control).
type Store struct {
	order []string
	lines map[string]*Line
}

// NewStore returns an empty cart store.
func NewStore() *Store {
	return &Store{lines: make(map[string]*Line)}
}

// AddItem merges the item into the cart: an existing line for the barcode is
// incremented by one, otherwise a new line with quantity 1 is appended. Stock
// is advisory only and never checked here.
func (s *Store) AddItem(item catalog.Item) {
	if line, ok := s.lines[item.Barcode]; ok {
		line.Qty++
		return
	}
	s.lines[item.Barcode] = &Line{
		Barcode:   item.Barcode,
		Name:      item.Name,
		UnitPrice: item.Price,
		Qty:       1,
	}
	s.order = append(s.order, item.Barcode)
}

// RemoveItem deletes the line for the barcode. Absent barcodes are a no-op.
func (s *Store) RemoveItem(barcode string) {
	if _, ok := s.lines[barcode]; !ok {
		return
	}
	delete(s.lines, barcode)
	for i, b := range s.order {
		if b == barcode {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// SetQuantity sets the line quantity. A quantity of zero or less removes the
// line; an absent barcode is a no-op (no line is ever created here).
func (s *Store) SetQuantity(barcode string, qty int) {
	line, ok := s.lines[barcode]
	if !ok {
		return
	}
	if qty <= 0 {
		s.RemoveItem(barcode)
		return
	}
	line.Qty = qty
}

// Clear empties the cart unconditionally. Called after a confirmed commit and
// on explicit cancellation.
func (s *Store) Clear() {
	s.order = s.order[:0]
	s.lines = make(map[string]*Line)
}

// Snapshot returns a read-only copy of the lines in insertion order. Later
// cart mutations do not affect a snapshot already taken.
func (s *Store) Snapshot() []Line {
	out := make([]Line, 0, len(s.order))
	for _, barcode := range s.order {
		out = append(out, *s.lines[barcode])
	}
	return out
}

// Len reports the number of distinct lines.
func (s *Store) Len() int {
	return len(s.lines)
}

// Restore replaces the cart contents from a recovery snapshot, preserving the
// given order and dropping lines with non-positive quantities.
func (s *Store) Restore(lines []Line) {
	s.Clear()
	for _, line := range lines {
		if line.Qty <= 0 || line.Barcode == "" {
			continue
		}
		if _, ok := s.lines[line.Barcode]; ok {
			continue
		}
		copied := line
		s.lines[line.Barcode] = &copied
		s.order = append(s.order, line.Barcode)
	}
}

// PricingLines converts a snapshot into pricing calculator input.
func PricingLines(lines []Line) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, pricing.Line{Qty: l.Qty, UnitPrice: l.UnitPrice})
	}
	return out
}
