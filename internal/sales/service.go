package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/checkout"
	"github.com/noah-isme/backend-pos/internal/pricing"
)

// LowStockThreshold is the stock level below which the forecast raises an alert.
const LowStockThreshold = 15

const forecastCacheKey = "sales:forecast"

// ErrNoSales indicates the forecast has no sales data to analyse.
var ErrNoSales = errors.New("sales: no sales recorded")

// Sale is one recorded unit sale.
type Sale struct {
	ID        int64
	Barcode   string
	Name      string
	Price     pricing.Money
	Timestamp time.Time
}

// TopSeller describes the best selling product and its remaining stock.
type TopSeller struct {
	Barcode      string `json:"barcode"`
	Name         string `json:"name"`
	SalesCount   int64  `json:"sales_count"`
	CurrentStock int    `json:"current_stock"`
}

// Forecast is the stock analysis derived from recorded sales.
type Forecast struct {
	TopSeller      TopSeller `json:"top_seller"`
	Alert          bool      `json:"alert"`
	Message        string    `json:"message"`
	Recommendation string    `json:"recommendation"`
}

// Querier defines the database access required for sales operations.
type Querier interface {
	InsertSale(ctx context.Context, barcode, name string, price pricing.Money) error
	ListSales(ctx context.Context) ([]Sale, error)
	TopSeller(ctx context.Context) (barcode, name string, count int64, err error)
	ProductStock(ctx context.Context, barcode string) (int, error)
	DecrementStock(ctx context.Context, barcode string) error
}

// Alerter reacts to a low stock condition detected by the forecast.
type Alerter interface {
	LowStock(ctx context.Context, top TopSeller)
}

// Service records unit sales and serves the cached stock forecast.
type Service struct {
	Q      Querier
	R      *redis.Client
	TTL    time.Duration
	Alerts Alerter
	Log    *zerolog.Logger
}

// RecordReceipt expands a committed receipt into unit sale rows and
// decrements stock one unit at a time, never below zero.
func (s *Service) RecordReceipt(ctx context.Context, rec checkout.Receipt) error {
	if s == nil || s.Q == nil {
		return fmt.Errorf("sales service not configured")
	}
	var joined error
	for _, line := range rec.Lines {
		for i := 0; i < line.Quantity; i++ {
			if err := s.RecordOne(ctx, line.Barcode, line.Name, line.UnitPrice); err != nil {
				joined = errors.Join(joined, err)
			}
		}
	}
	return joined
}

// RecordOne records a single unit sale and decrements the product's stock.
// An unknown barcode still records the sale; the stock update is a no-op.
func (s *Service) RecordOne(ctx context.Context, barcode, name string, price pricing.Money) error {
	if s == nil || s.Q == nil {
		return fmt.Errorf("sales service not configured")
	}
	if err := s.Q.InsertSale(ctx, barcode, name, price); err != nil {
		return fmt.Errorf("record sale: %w", err)
	}
	if barcode != "" {
		if err := s.Q.DecrementStock(ctx, barcode); err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
	}
	s.invalidateForecast(ctx)
	return nil
}

// List returns all recorded sales, newest first.
func (s *Service) List(ctx context.Context) ([]Sale, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("sales service not configured")
	}
	return s.Q.ListSales(ctx)
}

// Forecast analyses recorded sales and reports the top seller together with
// a restock recommendation. Results are cached until the next recorded sale
// or the cache TTL, whichever comes first.
func (s *Service) Forecast(ctx context.Context) (Forecast, error) {
	if s == nil || s.Q == nil {
		return Forecast{}, fmt.Errorf("sales service not configured")
	}
	if cached, ok := s.forecastFromCache(ctx); ok {
		return cached, nil
	}
	barcode, name, count, err := s.Q.TopSeller(ctx)
	if err != nil {
		return Forecast{}, err
	}
	stock, err := s.Q.ProductStock(ctx, barcode)
	if err != nil {
		return Forecast{}, err
	}
	top := TopSeller{Barcode: barcode, Name: name, SalesCount: count, CurrentStock: stock}
	fc := Forecast{
		TopSeller: top,
		Alert:     stock < LowStockThreshold,
		Message: fmt.Sprintf("High demand detected for %q with %d units sold. Current stock: %d units.",
			name, count, stock),
	}
	if fc.Alert {
		fc.Recommendation = "Restock this item immediately"
		if s.Alerts != nil {
			s.Alerts.LowStock(ctx, top)
		}
	} else {
		fc.Recommendation = "Stock levels appear adequate"
	}
	s.storeForecast(ctx, fc)
	return fc, nil
}

func (s *Service) forecastFromCache(ctx context.Context) (Forecast, bool) {
	if s.R == nil || s.TTL <= 0 {
		return Forecast{}, false
	}
	data, err := s.R.Get(ctx, forecastCacheKey).Bytes()
	if err != nil {
		return Forecast{}, false
	}
	var fc Forecast
	if err := json.Unmarshal(data, &fc); err != nil {
		return Forecast{}, false
	}
	return fc, true
}

func (s *Service) storeForecast(ctx context.Context, fc Forecast) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(fc)
	if err != nil {
		return
	}
	if err := s.R.Set(ctx, forecastCacheKey, data, s.TTL).Err(); err != nil && s.Log != nil {
		s.Log.Warn().Err(err).Msg("forecast cache write failed")
	}
}

func (s *Service) invalidateForecast(ctx context.Context) {
	if s.R == nil {
		return
	}
	if err := s.R.Del(ctx, forecastCacheKey).Err(); err != nil && s.Log != nil {
		s.Log.Warn().Err(err).Msg("forecast cache invalidation failed")
	}
}
