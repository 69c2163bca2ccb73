package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxAddresses = 5

type AddressRepo struct{ DB *pgxpool.Pool }

func (r *AddressRepo) List(ctx context.Context, userID string) ([]Address, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, full_name, phone, house_number, street, landmark, area, city, state, pincode
		FROM user_addresses WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Address
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.FullName, &a.Phone, &a.HouseNumber, &a.Street,
			&a.Landmark, &a.Area, &a.City, &a.State, &a.Pincode); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Upsert: id kosong -> generate (alamat baru); cap 5 alamat per user.
func (r *AddressRepo) Upsert(ctx context.Context, userID string, a Address) (Address, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Address{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var n int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_addresses WHERE user_id=$1 AND id <> $2`,
		userID, a.ID).Scan(&n); err != nil {
		return Address{}, err
	}
	if n >= maxAddresses {
		return Address{}, ErrAddressLimit
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO user_addresses(user_id, id, full_name, phone, house_number, street, landmark, area, city, state, pincode)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (user_id, id) DO UPDATE SET
			full_name=EXCLUDED.full_name, phone=EXCLUDED.phone,
			house_number=EXCLUDED.house_number, street=EXCLUDED.street,
			landmark=EXCLUDED.landmark, area=EXCLUDED.area,
			city=EXCLUDED.city, state=EXCLUDED.state, pincode=EXCLUDED.pincode
	`, userID, a.ID, a.FullName, a.Phone, a.HouseNumber, a.Street,
		a.Landmark, a.Area, a.City, a.State, a.Pincode); err != nil {
		return Address{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Address{}, err
	}
	return a, nil
}

func (r *AddressRepo) Delete(ctx context.Context, userID, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM user_addresses WHERE user_id=$1 AND id=$2`, userID, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
