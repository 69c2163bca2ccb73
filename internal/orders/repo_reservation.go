package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationRepo struct{ DB *pgxpool.Pool }

// UnavailableItems: keputusan availability murni dari snapshot stok +
// reserved aktif. Dipisah supaya bisa dites tanpa DB.
func UnavailableItems(stock, reserved map[string]int, items []ItemQty) []string {
	var out []string
	for _, it := range items {
		s, ok := stock[it.ProductID]
		if !ok || s-reserved[it.ProductID] < it.Qty {
			out = append(out, it.ProductID)
		}
	}
	return out
}

// Reserve: all-or-nothing. Lock row product (FOR UPDATE) lalu cek
// available = stock - reserved aktif (reservation milik caller sendiri
// tidak dihitung, karena reserve ulang menimpa). Cek dan tulis ada di
// SATU transaksi supaya dua request konkuren tidak bisa over-reserve.
func (r *ReservationRepo) Reserve(ctx context.Context, userID string, items []ItemQty, ttl time.Duration) (ok bool, unavailable []string, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stock := make(map[string]int, len(items))
	reserved := make(map[string]int, len(items))
	for _, it := range items {
		var s int
		err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, it.ProductID).Scan(&s)
		if errors.Is(err, pgx.ErrNoRows) {
			continue // produk tak dikenal -> unavailable
		}
		if err != nil {
			return false, nil, err
		}
		stock[it.ProductID] = s

		var resv int
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(qty), 0) FROM reservations
			WHERE product_id=$1 AND status=$2 AND expires_at > now() AND user_id <> $3`,
			it.ProductID, ResvActive, userID).Scan(&resv)
		if err != nil {
			return false, nil, err
		}
		reserved[it.ProductID] = resv
	}

	if rejects := UnavailableItems(stock, reserved, items); len(rejects) > 0 {
		return false, rejects, nil // rollback via defer, tidak ada row tertulis
	}

	expiresAt := time.Now().UTC().Add(ttl)
	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO reservations(user_id, product_id, qty, status, reserved_at, expires_at)
			VALUES ($1, $2, $3, $4, now(), $5)
			ON CONFLICT (user_id, product_id) DO UPDATE
			SET qty=EXCLUDED.qty, status=EXCLUDED.status, reserved_at=now(), expires_at=EXCLUDED.expires_at
		`, userID, it.ProductID, it.Qty, ResvActive, expiresAt); err != nil {
			return false, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

// ActiveForProducts: semua row ACTIVE utk kumpulan produk. Filter expires_at
// dilakukan pembaca (read-time aggregation, lihat stock.ActiveTotals).
func (r *ReservationRepo) ActiveForProducts(ctx context.Context, productIDs []string) ([]Reservation, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT user_id, product_id, qty, status, reserved_at, expires_at
		FROM reservations WHERE product_id = ANY($1) AND status=$2`,
		productIDs, ResvActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var rv Reservation
		if err := rows.Scan(&rv.UserID, &rv.ProductID, &rv.Qty, &rv.Status, &rv.ReservedAt, &rv.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// ExpireStale: backstop sweeper. Pembaca sudah filter expires_at sendiri,
// jadi sweep telat tidak mempengaruhi kebenaran.
func (r *ReservationRepo) ExpireStale(ctx context.Context) (int64, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE reservations SET status=$1
		WHERE status=$2 AND expires_at <= now()`, ResvExpired, ResvActive)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
