package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pos/internal/checkout"
)

// ErrNotFound indicates the requested receipt could not be located.
var ErrNotFound = errors.New("receipt: not found")

// Store persists committed receipts in Postgres. It is the submitReceipt
// collaborator: it assigns the receipt id and creation time, and a stored
// receipt is never mutated afterwards.
type Store struct {
	Pool *pgxpool.Pool
}

// SubmitReceipt inserts the draft exactly once and returns the immutable
// receipt with its assigned identifier and timestamp.
func (s *Store) SubmitReceipt(ctx context.Context, draft checkout.Draft) (checkout.Receipt, error) {
	items, err := json.Marshal(draft.Lines)
	if err != nil {
		return checkout.Receipt{}, err
	}
	id := uuid.NewString()
	var createdAt time.Time
	err = s.Pool.QueryRow(ctx,
		`INSERT INTO receipts
		   (receipt_id, items, total_amount, payment_method, payment_status,
		    customer_name, customer_phone, amount_paid, change_amount)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		id, items, draft.TotalAmount, string(draft.PaymentMethod), draft.PaymentStatus,
		draft.CustomerName, draft.CustomerPhone, draft.AmountPaid, draft.ChangeDue,
	).Scan(&createdAt)
	if err != nil {
		return checkout.Receipt{}, err
	}
	return checkout.Receipt{ReceiptID: id, CreatedAt: createdAt, Draft: draft}, nil
}

// List returns all receipts, newest first.
func (s *Store) List(ctx context.Context) ([]checkout.Receipt, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT receipt_id, items, total_amount, payment_method, payment_status,
		        customer_name, customer_phone, amount_paid, change_amount, created_at
		 FROM receipts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := make([]checkout.Receipt, 0)
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// Get fetches a single receipt by its public identifier.
func (s *Store) Get(ctx context.Context, receiptID string) (checkout.Receipt, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT receipt_id, items, total_amount, payment_method, payment_status,
		        customer_name, customer_phone, amount_paid, change_amount, created_at
		 FROM receipts WHERE receipt_id = $1`, receiptID)
	r, err := scanReceipt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return checkout.Receipt{}, ErrNotFound
		}
		return checkout.Receipt{}, err
	}
	return r, nil
}

// Delete removes a receipt. This is an administrative action outside the
// engine's own lifecycle.
func (s *Store) Delete(ctx context.Context, receiptID string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM receipts WHERE receipt_id = $1`, receiptID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (checkout.Receipt, error) {
	var (
		r      checkout.Receipt
		items  []byte
		method string
	)
	if err := row.Scan(&r.ReceiptID, &items, &r.TotalAmount, &method, &r.PaymentStatus,
		&r.CustomerName, &r.CustomerPhone, &r.AmountPaid, &r.ChangeDue, &r.CreatedAt); err != nil {
		return checkout.Receipt{}, err
	}
	r.PaymentMethod = checkout.Method(method)
	if err := json.Unmarshal(items, &r.Lines); err != nil {
		return checkout.Receipt{}, err
	}
	return r, nil
}
