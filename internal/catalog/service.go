package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

// ErrNotFound indicates the requested product could not be located.
var ErrNotFound = errors.New("catalog: product not found")

// ErrDuplicateBarcode is returned when inserting a barcode that already exists.
var ErrDuplicateBarcode = errors.New("catalog: barcode already exists")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("catalog: invalid input")

// Item is a catalog product keyed by its immutable barcode. Price is stored
// in minor units; stock is advisory display data, never an enforced ceiling.
type Item struct {
	Barcode string        `json:"barcode"`
	Name    string        `json:"name"`
	Price   pricing.Money `json:"price"`
	Stock   int           `json:"stock"`
}

// Update carries a partial product update; nil fields are left untouched.
type Update struct {
	Name  *string
	Price *pricing.Money
	Stock *int
}

// Querier defines the persistence operations the catalog service relies on.
type Querier interface {
	GetProductByBarcode(ctx context.Context, barcode string) (Item, error)
	ListProducts(ctx context.Context) ([]Item, error)
	InsertProduct(ctx context.Context, item Item) error
	UpdateProduct(ctx context.Context, barcode string, upd Update) (Item, error)
	DeleteProduct(ctx context.Context, barcode string) error
}

// Service orchestrates catalog queries, validation, and caching.
type Service struct {
	queries Querier
	cache   *Cache
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries Querier
	Cache   *Cache
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	return &Service{queries: cfg.Queries, cache: cfg.Cache}, nil
}

// LookupByBarcode resolves a barcode to a catalog item through a read-through
// cache. A miss surfaces ErrNotFound.
func (s *Service) LookupByBarcode(ctx context.Context, barcode string) (Item, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return Item{}, fmt.Errorf("barcode required: %w", ErrInvalidInput)
	}
	key := cacheKey(barcode)
	var cached Item
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	item, err := s.queries.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return Item{}, err
	}
	_ = s.cache.SetJSON(ctx, key, item)
	return item, nil
}

// List returns all products ordered by name.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	return s.queries.ListProducts(ctx)
}

// Create inserts a new product. Duplicate barcodes surface ErrDuplicateBarcode.
func (s *Service) Create(ctx context.Context, item Item) error {
	item.Barcode = strings.TrimSpace(item.Barcode)
	item.Name = strings.TrimSpace(item.Name)
	if item.Barcode == "" || item.Name == "" {
		return fmt.Errorf("barcode and name required: %w", ErrInvalidInput)
	}
	if item.Price < 0 || item.Stock < 0 {
		return fmt.Errorf("price and stock must be non-negative: %w", ErrInvalidInput)
	}
	if err := s.queries.InsertProduct(ctx, item); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, cacheKey(item.Barcode))
	return nil
}

// Patch applies a partial update and returns the resulting product.
func (s *Service) Patch(ctx context.Context, barcode string, upd Update) (Item, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return Item{}, fmt.Errorf("barcode required: %w", ErrInvalidInput)
	}
	if upd.Price != nil && *upd.Price < 0 {
		return Item{}, fmt.Errorf("price must be non-negative: %w", ErrInvalidInput)
	}
	if upd.Stock != nil && *upd.Stock < 0 {
		return Item{}, fmt.Errorf("stock must be non-negative: %w", ErrInvalidInput)
	}
	item, err := s.queries.UpdateProduct(ctx, barcode, upd)
	if err != nil {
		return Item{}, err
	}
	_ = s.cache.Delete(ctx, cacheKey(barcode))
	return item, nil
}

// Delete removes a product by barcode.
func (s *Service) Delete(ctx context.Context, barcode string) error {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return fmt.Errorf("barcode required: %w", ErrInvalidInput)
	}
	if err := s.queries.DeleteProduct(ctx, barcode); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey(barcode))
}

func cacheKey(barcode string) string {
	return "catalog:product:" + barcode
}
