package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units (paise).
type Money = int64

// ErrInvalidAmount is returned when a boundary amount cannot be parsed into
// minor units without loss.
var ErrInvalidAmount = errors.New("pricing: invalid amount")

// Line describes a billable line used for total calculation.
type Line struct {
	Qty       int
	UnitPrice Money
}

// LineSubtotal computes qty x unit price for a single line. Non-positive
// quantities contribute nothing.
func LineSubtotal(l Line) Money {
	if l.Qty <= 0 {
		return 0
	}
	return Money(l.Qty) * l.UnitPrice
}

// Total sums line subtotals. Pure and idempotent: the same lines always
// produce the identical result, independent of line order.
func Total(lines []Line) Money {
	var total Money
	for _, l := range lines {
		total += LineSubtotal(l)
	}
	return total
}

// ChangeDue returns the excess of the tendered amount over the total, floored
// at zero. Underpayment never yields negative change.
func ChangeDue(tendered, total Money) Money {
	if tendered <= total {
		return 0
	}
	return tendered - total
}

// Rupees converts minor units to a rupee value for presentation boundaries.
// Internal arithmetic never goes through this conversion.
func Rupees(m Money) float64 {
	return float64(m) / 100
}

// ParseRupees parses a decimal rupee string ("28.00") into minor units
// exactly. Values with more than two fractional digits or negative values are
// rejected.
func ParseRupees(value string) (Money, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return fromDecimal(d)
}

// FromFloat converts a boundary float rupee amount into minor units, rounding
// to the nearest paisa. JSON numbers decode as float64; rounding keeps a
// value like 28.00 exact.
func FromFloat(value float64) (Money, error) {
	return fromDecimal(decimal.NewFromFloat(value))
}

// maxPaise caps boundary amounts at one trillion rupees; larger values are
// input errors, rejected before they can overflow int64.
var maxPaise = decimal.New(1, 14)

func fromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return 0, ErrInvalidAmount
	}
	paise := d.Mul(decimal.NewFromInt(100)).Round(0)
	if paise.Cmp(maxPaise) > 0 {
		return 0, ErrInvalidAmount
	}
	return paise.IntPart(), nil
}
