package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// CreateOrder: order dibuat PENDING sebelum pembayaran.
// Harga diambil dari table products (hindari trust dari client); total
// dihitung server-side dari (price - discount) * qty.
func (r *Repo) CreateOrder(ctx context.Context, userID string, items []ItemInput, addr Address) (orderID string, total int, err error) {
	if userID == "" || len(items) == 0 {
		return "", 0, fmt.Errorf("missing user or items")
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	productIDs := make([]any, 0, len(items))
	params := ""
	for i, it := range items {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		productIDs = append(productIDs, it.ProductID)
	}
	rows, err := tx.Query(ctx, `SELECT id, price_cents FROM products WHERE id IN (`+params+`)`, productIDs...)
	if err != nil {
		return "", 0, err
	}
	prices := map[string]int{}
	for rows.Next() {
		var id string
		var price int
		if err := rows.Scan(&id, &price); err != nil {
			return "", 0, err
		}
		prices[id] = price
	}
	if err := rows.Err(); err != nil {
		return "", 0, err
	}

	for _, it := range items {
		price, ok := prices[it.ProductID]
		if !ok {
			return "", 0, fmt.Errorf("product %s: %w", it.ProductID, ErrNotFound)
		}
		if it.Qty <= 0 {
			return "", 0, fmt.Errorf("invalid qty for product %s", it.ProductID)
		}
		if it.DiscountCents < 0 || it.DiscountCents > price {
			return "", 0, fmt.Errorf("invalid discount for product %s", it.ProductID)
		}
		total += (price - it.DiscountCents) * it.Qty
	}

	addrJSON, err := json.Marshal(addr)
	if err != nil {
		return "", 0, err
	}

	orderID = uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, payment_status, total_cents, shipping_address)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, orderID, userID, StatusPending, PaymentUnpaid, total, addrJSON)
	if err != nil {
		return "", 0, err
	}

	for _, it := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, qty, price_cents, discount_cents)
			VALUES ($1, $2, $3, $4, $5)`,
			orderID, it.ProductID, it.Qty, prices[it.ProductID], it.DiscountCents,
		)
		if err != nil {
			return "", 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", 0, err
	}
	return orderID, total, nil
}

// Get: load order + items. Cek kepemilikan dilakukan caller (UserID ada di
// hasil); jalur internal (webhook) juga pakai ini.
func (r *Repo) Get(ctx context.Context, orderID string) (Order, error) {
	var o Order
	var addrJSON []byte
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, status, payment_status, total_cents, shipping_address, created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalCents, &addrJSON, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
		return Order{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, qty, price_cents, discount_cents
		FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Qty, &it.PriceCents, &it.DiscountCents); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// ListByUser: ringkasan order milik user, terbaru dulu, tanpa items.
func (r *Repo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, status, payment_status, total_cents, created_at, updated_at
		FROM orders WHERE user_id=$1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetStatus: baca ringan untuk endpoint status (tanpa items). user_id ikut
// supaya caller bisa cek kepemilikan dan mengisi cache.
func (r *Repo) GetStatus(ctx context.Context, orderID string) (Status, string, error) {
	var s, uid string
	err := r.DB.QueryRow(ctx, `SELECT status, user_id FROM orders WHERE id=$1`, orderID).Scan(&s, &uid)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	return Status(s), uid, nil
}

// GetStocks: stok mentah (belum dikurangi reservation); agregasi net ada di
// stock.Service.
func (r *Repo) GetStocks(ctx context.Context, productIDs []string) ([]ProductStock, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, stock FROM products WHERE id = ANY($1)`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductStock
	for rows.Next() {
		var ps ProductStock
		if err := rows.Scan(&ps.ProductID, &ps.Stock); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
