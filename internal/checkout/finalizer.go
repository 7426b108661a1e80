package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

// ErrEmptyCart is returned when a checkout is initiated on a cart with no lines.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// ErrInvalidPayment is returned when the payment input fails validation.
var ErrInvalidPayment = errors.New("checkout: invalid payment input")

// ErrCommitFailed wraps a persistence collaborator failure. The cart is left
// untouched so the caller can retry with the same payment input.
var ErrCommitFailed = errors.New("checkout: commit failed")

// ErrInvalidTransition is returned when an operation is called in the wrong state.
var ErrInvalidTransition = errors.New("checkout: invalid state transition")

// Method enumerates accepted payment methods. Wire values are uppercase.
type Method string

const (
	MethodCash Method = "CASH"
	MethodCard Method = "CARD"
	MethodUPI  Method = "UPI"
)

// ParseMethod normalises a boundary payment method string.
func ParseMethod(value string) (Method, error) {
	switch Method(strings.ToUpper(strings.TrimSpace(value))) {
	case MethodCash:
		return MethodCash, nil
	case MethodCard:
		return MethodCard, nil
	case MethodUPI:
		return MethodUPI, nil
	default:
		return "", fmt.Errorf("unknown payment method %q: %w", value, ErrInvalidPayment)
	}
}

// StatusCompleted is the only payment status produced today: every submitted
// payment succeeds as long as the cart is non-empty. A DECLINED branch would
// require a real payment collaborator.
const StatusCompleted = "COMPLETED"

// PaymentInput is consumed once per submit. Customer details are mandatory
// for the persisted checkout flow and optional when Quick is set.
type PaymentInput struct {
	Method         Method
	AmountTendered pricing.Money
	CustomerName   string
	CustomerPhone  string
	Quick          bool
}

// ReceiptLine is one immutable line of a committed receipt. Subtotal is fixed
// at commit time and never recomputed.
type ReceiptLine struct {
	Barcode   string        `json:"-"`
	Name      string        `json:"name"`
	Quantity  int           `json:"quantity"`
	UnitPrice pricing.Money `json:"price"`
	Subtotal  pricing.Money `json:"subtotal"`
}

// Draft contains everything in a receipt except the identifier and timestamp,
// which the persistence collaborator assigns.
type Draft struct {
	Lines         []ReceiptLine
	TotalAmount   pricing.Money
	AmountPaid    pricing.Money
	ChangeDue     pricing.Money
	PaymentMethod Method
	PaymentStatus string
	CustomerName  string
	CustomerPhone string
}

// Receipt is the immutable record of a committed checkout.
type Receipt struct {
	ReceiptID string
	CreatedAt time.Time
	Draft
}

// Submitter persists a receipt draft exactly once per call. Implementations
// assign the receipt id and creation time.
type Submitter interface {
	SubmitReceipt(ctx context.Context, draft Draft) (Receipt, error)
}

// Cart is the slice of the cart store the finalizer needs.
type Cart interface {
	Snapshot() []cart.Line
	Len() int
	Clear()
}

// Attempt drives one checkout through Idle -> AwaitingPayment -> Committing
// and into a terminal Completed or Failed state. It never auto-retries: a
// failed commit leaves the cart intact and the caller starts a fresh attempt.
type Attempt struct {
	state     State
	cart      Cart
	submitter Submitter
}

// NewAttempt returns an attempt in the Idle state.
func NewAttempt(c Cart, submitter Submitter) *Attempt {
	return &Attempt{state: StateIdle, cart: c, submitter: submitter}
}

// State returns the current attempt state.
func (a *Attempt) State() State {
	return a.state
}

// Begin transitions Idle -> AwaitingPayment. An empty cart refuses the
// transition and the attempt stays Idle.
func (a *Attempt) Begin() error {
	if a.state != StateIdle {
		return fmt.Errorf("begin in state %s: %w", a.state, ErrInvalidTransition)
	}
	if a.cart == nil || a.cart.Len() == 0 {
		return ErrEmptyCart
	}
	a.state = StateAwaitingPayment
	return nil
}

// Submit validates the payment input, snapshots the cart atomically, builds
// the receipt draft, and delegates persistence exactly once. On success the
// cart is cleared and the receipt returned; on collaborator failure the cart
// is left untouched and the attempt ends in Failed.
func (a *Attempt) Submit(ctx context.Context, in PaymentInput) (Receipt, error) {
	if a.state != StateAwaitingPayment {
		return Receipt{}, fmt.Errorf("submit in state %s: %w", a.state, ErrInvalidTransition)
	}
	if err := validateInput(in); err != nil {
		return Receipt{}, err
	}
	a.state = StateCommitting

	// Snapshot gates the commit: mutations arriving after this point cannot
	// affect the in-flight receipt.
	snapshot := a.cart.Snapshot()
	draft := BuildDraft(snapshot, in)

	receipt, err := a.submitter.SubmitReceipt(ctx, draft)
	if err != nil {
		a.state = StateFailed
		return Receipt{}, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
	a.cart.Clear()
	a.state = StateCompleted
	return receipt, nil
}

// BuildDraft derives the canonical receipt draft from a cart snapshot. The
// total is always the sum of the draft's own line subtotals, never an
// externally supplied cart total.
func BuildDraft(snapshot []cart.Line, in PaymentInput) Draft {
	lines := make([]ReceiptLine, 0, len(snapshot))
	var total pricing.Money
	for _, l := range snapshot {
		subtotal := pricing.LineSubtotal(pricing.Line{Qty: l.Qty, UnitPrice: l.UnitPrice})
		lines = append(lines, ReceiptLine{
			Barcode:   l.Barcode,
			Name:      l.Name,
			Quantity:  l.Qty,
			UnitPrice: l.UnitPrice,
			Subtotal:  subtotal,
		})
		total += subtotal
	}
	name := strings.TrimSpace(in.CustomerName)
	if name == "" {
		name = "Customer"
	}
	return Draft{
		Lines:         lines,
		TotalAmount:   total,
		AmountPaid:    in.AmountTendered,
		ChangeDue:     pricing.ChangeDue(in.AmountTendered, total),
		PaymentMethod: in.Method,
		PaymentStatus: StatusCompleted,
		CustomerName:  name,
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
	}
}

func validateInput(in PaymentInput) error {
	if _, err := ParseMethod(string(in.Method)); err != nil {
		return err
	}
	if in.AmountTendered < 0 {
		return fmt.Errorf("amount tendered must be non-negative: %w", ErrInvalidPayment)
	}
	if !in.Quick {
		if strings.TrimSpace(in.CustomerName) == "" {
			return fmt.Errorf("customer name required: %w", ErrInvalidPayment)
		}
		if strings.TrimSpace(in.CustomerPhone) == "" {
			return fmt.Errorf("customer phone required: %w", ErrInvalidPayment)
		}
	}
	return nil
}
