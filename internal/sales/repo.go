package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

// Repo implements Querier on Postgres.
type Repo struct {
	Pool *pgxpool.Pool
}

func (r *Repo) InsertSale(ctx context.Context, barcode, name string, price pricing.Money) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO sales (barcode, name, price) VALUES ($1, $2, $3)`,
		barcode, name, price)
	return err
}

func (r *Repo) ListSales(ctx context.Context) ([]Sale, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT id, barcode, name, price, created_at FROM sales ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Sale, 0)
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.Barcode, &s.Name, &s.Price, &s.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) TopSeller(ctx context.Context) (string, string, int64, error) {
	var (
		barcode string
		name    string
		count   int64
	)
	err := r.Pool.QueryRow(ctx,
		`SELECT barcode, name, COUNT(*) AS sales_count
		 FROM sales GROUP BY barcode, name
		 ORDER BY sales_count DESC LIMIT 1`).Scan(&barcode, &name, &count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", 0, ErrNoSales
		}
		return "", "", 0, err
	}
	return barcode, name, count, nil
}

// ProductStock returns the remaining stock for a barcode, zero when the
// product no longer exists in the catalog.
func (r *Repo) ProductStock(ctx context.Context, barcode string) (int, error) {
	var stock int
	err := r.Pool.QueryRow(ctx, `SELECT stock FROM products WHERE barcode = $1`, barcode).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return stock, nil
}

// DecrementStock takes one unit off the shelf. The guard keeps stock from
// ever going negative.
func (r *Repo) DecrementStock(ctx context.Context, barcode string) error {
	_, err := r.Pool.Exec(ctx,
		`UPDATE products SET stock = stock - 1 WHERE barcode = $1 AND stock > 0`, barcode)
	return err
}
