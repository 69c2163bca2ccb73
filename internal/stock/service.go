package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/orders"
	"github.com/ariefcatur/go-storefront-checkout/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Reservation hold 15 menit; checkout session advisory 20 menit (TTL di redisx).
const ReservationTTL = 15 * time.Minute

type ProductStore interface {
	GetStocks(ctx context.Context, productIDs []string) ([]orders.ProductStock, error)
}

type ReservationStore interface {
	ActiveForProducts(ctx context.Context, productIDs []string) ([]orders.Reservation, error)
	Reserve(ctx context.Context, userID string, items []orders.ItemQty, ttl time.Duration) (bool, []string, error)
}

type Service struct {
	Products     ProductStore
	Reservations ReservationStore
	Redis        *redis.Client
	Log          *zap.Logger
}

// ActiveTotals: agregasi read-time total qty ter-reserve per produk.
// Row dengan expires_at <= now tidak dihitung walau sweeper belum lewat.
func ActiveTotals(resvs []orders.Reservation, now time.Time) map[string]int {
	totals := map[string]int{}
	for _, r := range resvs {
		if r.Active(now) {
			totals[r.ProductID] += r.Qty
		}
	}
	return totals
}

// Check: stok efektif = stock - reserved aktif, floor 0 untuk display.
func (s *Service) Check(ctx context.Context, productIDs []string) ([]orders.ProductStock, error) {
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("empty product list")
	}
	stocks, err := s.Products.GetStocks(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	resvs, err := s.Reservations.ActiveForProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	totals := ActiveTotals(resvs, time.Now().UTC())

	out := make([]orders.ProductStock, 0, len(stocks))
	for _, ps := range stocks {
		net := ps.Stock - totals[ps.ProductID]
		if net < 0 {
			net = 0
		}
		out = append(out, orders.ProductStock{ProductID: ps.ProductID, Stock: net})
	}
	return out, nil
}

// Reserve: validasi input lalu delegasi ke store (all-or-nothing di satu
// transaksi). Sukses -> refresh checkout session advisory di Redis.
func (s *Service) Reserve(ctx context.Context, userID string, items []orders.ItemQty) (bool, []string, error) {
	if len(items) == 0 {
		return false, nil, fmt.Errorf("empty items")
	}
	for _, it := range items {
		if it.ProductID == "" || it.Qty <= 0 {
			return false, nil, fmt.Errorf("invalid item %q qty=%d", it.ProductID, it.Qty)
		}
	}

	ok, unavailable, err := s.Reservations.Reserve(ctx, userID, items, ReservationTTL)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		s.Log.Info("reservation rejected",
			zap.String("user_id", userID), zap.Strings("unavailable", unavailable))
		return false, unavailable, nil
	}

	skey := fmt.Sprintf(redisx.KeyCheckoutSession, userID)
	_ = s.Redis.Set(ctx, skey, "1", redisx.TTLCheckoutSession).Err()
	return true, nil, nil
}
