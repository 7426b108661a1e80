package receipt

import (
	"time"

	"github.com/noah-isme/backend-pos/internal/checkout"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

// LineView is the boundary shape of a receipt line. Amounts are rupees.
type LineView struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Subtotal float64 `json:"subtotal"`
}

// View is the boundary shape of a receipt. Internal paise amounts are
// converted to rupees here and nowhere earlier.
type View struct {
	ReceiptID     string     `json:"receipt_id"`
	Items         []LineView `json:"items"`
	TotalAmount   float64    `json:"total_amount"`
	PaymentMethod string     `json:"payment_method"`
	PaymentStatus string     `json:"payment_status"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone"`
	AmountPaid    float64    `json:"amount_paid"`
	ChangeAmount  float64    `json:"change_amount"`
	Timestamp     time.Time  `json:"timestamp"`
}

// ViewOf converts a committed receipt into its boundary representation.
func ViewOf(r checkout.Receipt) View {
	items := make([]LineView, 0, len(r.Lines))
	for _, l := range r.Lines {
		items = append(items, LineView{
			Name:     l.Name,
			Quantity: l.Quantity,
			Price:    pricing.Rupees(l.UnitPrice),
			Subtotal: pricing.Rupees(l.Subtotal),
		})
	}
	return View{
		ReceiptID:     r.ReceiptID,
		Items:         items,
		TotalAmount:   pricing.Rupees(r.TotalAmount),
		PaymentMethod: string(r.PaymentMethod),
		PaymentStatus: r.PaymentStatus,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		AmountPaid:    pricing.Rupees(r.AmountPaid),
		ChangeAmount:  pricing.Rupees(r.ChangeDue),
		Timestamp:     r.CreatedAt,
	}
}

// ViewsOf converts a slice of receipts preserving order.
func ViewsOf(receipts []checkout.Receipt) []View {
	views := make([]View, 0, len(receipts))
	for _, r := range receipts {
		views = append(views, ViewOf(r))
	}
	return views
}
