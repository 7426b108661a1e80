package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/cart"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/checkout"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

var milk = catalog.Item{Barcode: "8901719123456", Name: "Milk", Price: 5000, Stock: 50}

type fakeSubmitter struct {
	calls    int
	failNext bool
	last     checkout.Draft
}

func (f *fakeSubmitter) SubmitReceipt(_ context.Context, draft checkout.Draft) (checkout.Receipt, error) {
	f.calls++
	f.last = draft
	if f.failNext {
		f.failNext = false
		return checkout.Receipt{}, errors.New("storage unavailable")
	}
	return checkout.Receipt{
		ReceiptID: "r-1",
		CreatedAt: time.Unix(1700000000, 0),
		Draft:     draft,
	}, nil
}

func cartWith(items ...catalog.Item) *cart.Store {
	s := cart.NewStore()
	for _, it := range items {
		s.AddItem(it)
	}
	return s
}

func payment() checkout.PaymentInput {
	return checkout.PaymentInput{
		Method:         checkout.MethodCash,
		AmountTendered: 10000,
		CustomerName:   "Asha",
		CustomerPhone:  "9876543210",
	}
}

func TestBeginRefusesEmptyCart(t *testing.T) {
	a := checkout.NewAttempt(cart.NewStore(), &fakeSubmitter{})
	require.ErrorIs(t, a.Begin(), checkout.ErrEmptyCart)
	require.Equal(t, checkout.StateIdle, a.State())
}

func TestHappyPathCommit(t *testing.T) {
	store := cartWith(milk, milk)
	sub := &fakeSubmitter{}
	a := checkout.NewAttempt(store, sub)

	require.NoError(t, a.Begin())
	require.Equal(t, checkout.StateAwaitingPayment, a.State())

	receipt, err := a.Submit(context.Background(), payment())
	require.NoError(t, err)
	require.Equal(t, checkout.StateCompleted, a.State())
	require.Equal(t, 1, sub.calls)

	require.Equal(t, pricing.Money(10000), receipt.TotalAmount)
	require.Equal(t, pricing.Money(0), receipt.ChangeDue)
	require.Equal(t, checkout.StatusCompleted, receipt.PaymentStatus)
	require.Len(t, receipt.Lines, 1)
	require.Equal(t, 2, receipt.Lines[0].Quantity)
	require.Equal(t, pricing.Money(10000), receipt.Lines[0].Subtotal)

	// commit clears the cart
	require.Zero(t, store.Len())
}

func TestTotalEqualsSumOfLineSubtotals(t *testing.T) {
	store := cartWith(milk,
		catalog.Item{Barcode: "b2", Name: "Salt", Price: 2500},
		catalog.Item{Barcode: "b2", Name: "Salt", Price: 2500},
		catalog.Item{Barcode: "b3", Name: "Atta", Price: 25000})
	sub := &fakeSubmitter{}
	a := checkout.NewAttempt(store, sub)
	require.NoError(t, a.Begin())

	in := payment()
	in.AmountTendered = 50000
	receipt, err := a.Submit(context.Background(), in)
	require.NoError(t, err)

	var sum pricing.Money
	for _, line := range receipt.Lines {
		sum += line.Subtotal
	}
	require.Equal(t, sum, receipt.TotalAmount)
	require.Equal(t, pricing.Money(50000-sum), receipt.ChangeDue)
}

func TestSnapshotGatesInFlightCommit(t *testing.T) {
	store := cartWith(milk)
	sub := &fakeSubmitter{}
	a := checkout.NewAttempt(store, sub)
	require.NoError(t, a.Begin())

	// A later mutation must not leak into the committed draft: the draft is
	// built from the snapshot, so build it like Submit does and mutate after.
	snapshot := store.Snapshot()
	store.AddItem(milk)
	draft := checkout.BuildDraft(snapshot, payment())
	require.Len(t, draft.Lines, 1)
	require.Equal(t, 1, draft.Lines[0].Quantity)
	require.Equal(t, pricing.Money(5000), draft.TotalAmount)
}

func TestCommitFailureKeepsCartAndAllowsRetry(t *testing.T) {
	store := cartWith(milk, milk)
	sub := &fakeSubmitter{failNext: true}

	first := checkout.NewAttempt(store, sub)
	require.NoError(t, first.Begin())
	_, err := first.Submit(context.Background(), payment())
	require.ErrorIs(t, err, checkout.ErrCommitFailed)
	require.Equal(t, checkout.StateFailed, first.State())
	require.Equal(t, 1, store.Len())

	// terminal attempt refuses further submits
	_, err = first.Submit(context.Background(), payment())
	require.ErrorIs(t, err, checkout.ErrInvalidTransition)

	// a fresh attempt with the same cart and payment input succeeds once
	second := checkout.NewAttempt(store, sub)
	require.NoError(t, second.Begin())
	receipt, err := second.Submit(context.Background(), payment())
	require.NoError(t, err)
	require.Equal(t, pricing.Money(10000), receipt.TotalAmount)
	require.Equal(t, 2, sub.calls)
	require.Zero(t, store.Len())
}

func TestUnderpaymentAcceptedWithZeroChange(t *testing.T) {
	store := cartWith(milk, milk)
	a := checkout.NewAttempt(store, &fakeSubmitter{})
	require.NoError(t, a.Begin())

	in := payment()
	in.AmountTendered = 4000
	receipt, err := a.Submit(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(0), receipt.ChangeDue)
	require.Equal(t, checkout.StatusCompleted, receipt.PaymentStatus)
}

func TestCustomerDetailsRequiredUnlessQuick(t *testing.T) {
	store := cartWith(milk)
	a := checkout.NewAttempt(store, &fakeSubmitter{})
	require.NoError(t, a.Begin())

	in := payment()
	in.CustomerName = ""
	_, err := a.Submit(context.Background(), in)
	require.ErrorIs(t, err, checkout.ErrInvalidPayment)
	// rejected input leaves the attempt awaiting payment
	require.Equal(t, checkout.StateAwaitingPayment, a.State())

	qin := checkout.PaymentInput{Method: checkout.MethodUPI, AmountTendered: 5000, Quick: true}
	receipt, err := a.Submit(context.Background(), qin)
	require.NoError(t, err)
	require.Equal(t, "Customer", receipt.CustomerName)
	require.Equal(t, "", receipt.CustomerPhone)
}

func TestParseMethod(t *testing.T) {
	for raw, want := range map[string]checkout.Method{
		"cash": checkout.MethodCash,
		"CARD": checkout.MethodCard,
		" upi": checkout.MethodUPI,
	} {
		got, err := checkout.ParseMethod(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got)
	}
	_, err := checkout.ParseMethod("cheque")
	require.ErrorIs(t, err, checkout.ErrInvalidPayment)
}
