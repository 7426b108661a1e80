package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

func TestTotalSumsLineSubtotals(t *testing.T) {
	lines := []pricing.Line{
		{Qty: 2, UnitPrice: 5000},
		{Qty: 1, UnitPrice: 2500},
		{Qty: 3, UnitPrice: 1000},
	}
	require.Equal(t, pricing.Money(15500), pricing.Total(lines))
	require.Equal(t, pricing.Money(10000), pricing.LineSubtotal(lines[0]))
}

func TestTotalIsOrderIndependent(t *testing.T) {
	a := []pricing.Line{{Qty: 2, UnitPrice: 5000}, {Qty: 1, UnitPrice: 2500}}
	b := []pricing.Line{{Qty: 1, UnitPrice: 2500}, {Qty: 2, UnitPrice: 5000}}
	require.Equal(t, pricing.Total(a), pricing.Total(b))
}

func TestTotalIsIdempotent(t *testing.T) {
	lines := []pricing.Line{{Qty: 7, UnitPrice: 999}}
	first := pricing.Total(lines)
	second := pricing.Total(lines)
	require.Equal(t, first, second)
}

func TestTotalSkipsNonPositiveQuantities(t *testing.T) {
	lines := []pricing.Line{{Qty: 0, UnitPrice: 5000}, {Qty: -2, UnitPrice: 5000}}
	require.Equal(t, pricing.Money(0), pricing.Total(lines))
}

func TestChangeDueNeverNegative(t *testing.T) {
	require.Equal(t, pricing.Money(0), pricing.ChangeDue(5000, 10000))
	require.Equal(t, pricing.Money(0), pricing.ChangeDue(10000, 10000))
	require.Equal(t, pricing.Money(2500), pricing.ChangeDue(12500, 10000))
}

func TestParseRupees(t *testing.T) {
	cases := map[string]pricing.Money{
		"28.00":  2800,
		"28":     2800,
		"0.05":   5,
		"250.50": 25050,
	}
	for input, want := range cases {
		got, err := pricing.ParseRupees(input)
		require.NoError(t, err, input)
		require.Equal(t, want, got, input)
	}
	for _, bad := range []string{"", "abc", "-1.00"} {
		_, err := pricing.ParseRupees(bad)
		require.ErrorIs(t, err, pricing.ErrInvalidAmount, bad)
	}
}

func TestFromFloatRoundsToPaise(t *testing.T) {
	got, err := pricing.FromFloat(28.00)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(2800), got)

	got, err = pricing.FromFloat(100)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(10000), got)

	_, err = pricing.FromFloat(-5)
	require.ErrorIs(t, err, pricing.ErrInvalidAmount)
}

func TestAmountsBeyondCeilingRejected(t *testing.T) {
	got, err := pricing.FromFloat(1e12)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(1e14), got)

	_, err = pricing.FromFloat(1e17)
	require.ErrorIs(t, err, pricing.ErrInvalidAmount)

	_, err = pricing.ParseRupees("99999999999999999999")
	require.ErrorIs(t, err, pricing.ErrInvalidAmount)
}

func TestRupees(t *testing.T) {
	require.InDelta(t, 100.0, pricing.Rupees(10000), 0.0001)
	require.InDelta(t, 0.05, pricing.Rupees(5), 0.0001)
}
