package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepo struct{ DB *pgxpool.Pool }

// Create: satu payment per order (unique order_id). Duplikat -> ErrAlreadyExists.
func (r *PaymentRepo) Create(ctx context.Context, p Payment) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO payments(id, order_id, user_id, rzp_order_id, status, amount_cents, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		p.ID, p.OrderID, p.UserID, p.RzpOrderID, p.Status, p.AmountCents,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

func (r *PaymentRepo) GetByOrderID(ctx context.Context, orderID string) (Payment, error) {
	return r.get(ctx, `WHERE order_id=$1`, orderID)
}

// GetByProviderOrderID: lookup via secondary index rzp_order_id (jalur webhook).
func (r *PaymentRepo) GetByProviderOrderID(ctx context.Context, rzpOrderID string) (Payment, error) {
	return r.get(ctx, `WHERE rzp_order_id=$1`, rzpOrderID)
}

func (r *PaymentRepo) get(ctx context.Context, where, arg string) (Payment, error) {
	var p Payment
	var rzpPaymentID *string
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, user_id, rzp_order_id, rzp_payment_id, status, amount_cents, updated_at
		FROM payments `+where, arg).
		Scan(&p.ID, &p.OrderID, &p.UserID, &p.RzpOrderID, &rzpPaymentID, &p.Status, &p.AmountCents, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	if rzpPaymentID != nil {
		p.RzpPaymentID = *rzpPaymentID
	}
	return p, nil
}

// MarkVerifying: dipanggil saat callback checkout mendarat (sebelum verify).
func (r *PaymentRepo) MarkVerifying(ctx context.Context, orderID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE payments SET status=$2, updated_at=now()
		WHERE order_id=$1 AND status IN ($3, $4)`,
		orderID, PayVerifying, PayInitiated, PayVerifying)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid: jalur verify client-side. Update payment + payment_status order,
// TIDAK menyentuh stok; pengurangan stok cuma lewat ConfirmRepo (webhook).
func (r *PaymentRepo) MarkPaid(ctx context.Context, orderID, rzpPaymentID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE payments SET status=$2, rzp_payment_id=$3, updated_at=now()
		WHERE order_id=$1`, orderID, PayPaid, rzpPaymentID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET payment_status=$2, updated_at=now() WHERE id=$1`,
		orderID, PaymentPaid); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MarkFailed: jalur event payment.failed. Payment yang sudah PAID tidak
// boleh diturunkan lagi (failed event telat dari provider).
func (r *PaymentRepo) MarkFailed(ctx context.Context, orderID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE payments SET status=$2, updated_at=now()
		WHERE order_id=$1 AND status <> $3`,
		orderID, PayFailed, PayPaid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
