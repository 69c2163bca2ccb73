package orders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConfirmRepo struct{ DB *pgxpool.Pool }

type ConfirmOrder struct {
	OrderID           string
	UserID            string
	PaymentID         string
	ProviderPaymentID string
	Items             []ItemQty
}

// ConfirmPaid: SATU transaksi atomik untuk commit order:
//   (a) decrement stok per item, guarded stock >= qty
//   (b) payment -> PAID + rzp_payment_id
//   (c) order -> CONFIRMED, guarded status masih PENDING
//   (d) reservation (user, product) -> CONSUMED
// Guard gagal -> rollback semuanya. Ini satu-satunya tempat stok berkurang.
func (r *ConfirmRepo) ConfirmPaid(ctx context.Context, in ConfirmOrder) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	productIDs := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		ct, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2`, it.ProductID, it.Qty)
		if err != nil {
			return err
		}
		if ct.RowsAffected() != 1 {
			return fmt.Errorf("product %s: %w", it.ProductID, ErrInsufficientStock)
		}
		productIDs = append(productIDs, it.ProductID)
	}

	ct, err := tx.Exec(ctx, `
		UPDATE payments SET status=$2, rzp_payment_id=$3, updated_at=now()
		WHERE id=$1`, in.PaymentID, PayPaid, in.ProviderPaymentID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("payment %s: %w", in.PaymentID, ErrNotFound)
	}

	// guard status=PENDING: kalau webhook lain sudah commit duluan,
	// transaksi ini batal total.
	ct, err = tx.Exec(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, updated_at=now()
		WHERE id=$1 AND status=$4`,
		in.OrderID, StatusConfirmed, PaymentPaid, StatusPending)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrAlreadyConfirmed
	}

	if _, err := tx.Exec(ctx, `
		UPDATE reservations SET status=$3
		WHERE user_id=$1 AND product_id = ANY($2) AND status=$4`,
		in.UserID, productIDs, ResvConsumed, ResvActive); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
