package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

// Repo implements Querier against Postgres.
type Repo struct {
	Pool *pgxpool.Pool
}

// GetProductByBarcode fetches a single product.
func (r Repo) GetProductByBarcode(ctx context.Context, barcode string) (Item, error) {
	var item Item
	row := r.Pool.QueryRow(ctx,
		`SELECT barcode, name, price, stock FROM products WHERE barcode = $1`, barcode)
	if err := row.Scan(&item.Barcode, &item.Name, &item.Price, &item.Stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// ListProducts returns all products ordered by name.
func (r Repo) ListProducts(ctx context.Context) ([]Item, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT barcode, name, price, stock FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.Barcode, &item.Name, &item.Price, &item.Stock); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// InsertProduct creates a product, translating unique violations into
// ErrDuplicateBarcode.
func (r Repo) InsertProduct(ctx context.Context, item Item) error {
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO products (barcode, name, price, stock) VALUES ($1, $2, $3, $4)`,
		item.Barcode, item.Name, item.Price, item.Stock)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateBarcode
		}
		return err
	}
	return nil
}

// UpdateProduct applies the non-nil fields of upd and returns the new row.
func (r Repo) UpdateProduct(ctx context.Context, barcode string, upd Update) (Item, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if upd.Name != nil {
		args = append(args, *upd.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if upd.Price != nil {
		args = append(args, *upd.Price)
		sets = append(sets, fmt.Sprintf("price = $%d", len(args)))
	}
	if upd.Stock != nil {
		args = append(args, *upd.Stock)
		sets = append(sets, fmt.Sprintf("stock = $%d", len(args)))
	}
	if len(sets) == 0 {
		return r.GetProductByBarcode(ctx, barcode)
	}
	args = append(args, barcode)
	query := fmt.Sprintf(
		`UPDATE products SET %s WHERE barcode = $%d RETURNING barcode, name, price, stock`,
		strings.Join(sets, ", "), len(args))

	var item Item
	if err := r.Pool.QueryRow(ctx, query, args...).Scan(&item.Barcode, &item.Name, &item.Price, &item.Stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// DeleteProduct removes a product; absent rows surface ErrNotFound.
func (r Repo) DeleteProduct(ctx context.Context, barcode string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM products WHERE barcode = $1`, barcode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
