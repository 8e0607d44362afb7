package postgres

import (
	"context"
	"database/sql"
	"errors"

	"pet-registry/internal/domain/reservations"
)

type ReservationsRepo struct {
	db *sql.DB
}

func NewReservationsRepo(db *sql.DB) *ReservationsRepo {
	return &ReservationsRepo{db: db}
}

const reservationColumns = `
	id, pet_code, buyer_user_id, store_id,
	status, reservation_code, payment_ref,
	amount_cents, currency, notes,
	created_at, updated_at
`

func (r *ReservationsRepo) Create(ctx context.Context, res reservations.Reservation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		res.ID,
		res.PetCode,
		res.BuyerUserID,
		res.StoreID,
		string(res.Status),
		res.ReservationCode,
		res.PaymentRef,
		res.AmountCents,
		res.Currency,
		res.Notes,
		res.CreatedAt,
		res.UpdatedAt,
	)
	return err
}

func (r *ReservationsRepo) GetByID(ctx context.Context, id string) (reservations.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
	`, id)
	return scanReservation(row)
}

func (r *ReservationsRepo) ListByBuyer(ctx context.Context, buyerUserID string) ([]reservations.Reservation, error) {
	return r.list(ctx, `buyer_user_id`, buyerUserID)
}

func (r *ReservationsRepo) ListByStore(ctx context.Context, storeID string) ([]reservations.Reservation, error) {
	return r.list(ctx, `store_id`, storeID)
}

func (r *ReservationsRepo) list(ctx context.Context, column, value string) ([]reservations.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE `+column+` = $1
		ORDER BY created_at ASC
	`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]reservations.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// UpdateIf: el guard de transiciones es el WHERE status = $expected.
// Cero filas afectadas = otro actor llegó primero (StaleState).
func (r *ReservationsRepo) UpdateIf(ctx context.Context, res reservations.Reservation, expected reservations.Status) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE reservations
		SET
			status = $2,
			payment_ref = $3,
			notes = $4,
			updated_at = $5
		WHERE id = $1 AND status = $6
	`,
		res.ID,
		string(res.Status),
		res.PaymentRef,
		res.Notes,
		res.UpdatedAt,
		string(expected),
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		if _, err := r.GetByID(ctx, res.ID); err != nil {
			return err
		}
		return reservations.ErrStaleState
	}
	return nil
}

func scanReservation(row rowScanner) (reservations.Reservation, error) {
	var res reservations.Reservation
	var status string

	if err := row.Scan(
		&res.ID,
		&res.PetCode,
		&res.BuyerUserID,
		&res.StoreID,
		&status,
		&res.ReservationCode,
		&res.PaymentRef,
		&res.AmountCents,
		&res.Currency,
		&res.Notes,
		&res.CreatedAt,
		&res.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reservations.Reservation{}, reservations.ErrNotFound
		}
		return reservations.Reservation{}, err
	}

	res.Status = reservations.Status(status)
	return res, nil
}
