package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"pet-registry/internal/domain/adoptions"
)

type AdoptionsRepo struct {
	db *sql.DB
}

func NewAdoptionsRepo(db *sql.DB) *AdoptionsRepo {
	return &AdoptionsRepo{db: db}
}

const applicationColumns = `
	id, pet_code, applicant_user_id,
	status, payment_status,
	application_data, documents,
	fee_cents, currency, payment_ref,
	certificate_number, certificate_issued_at,
	handover_status, handover_scheduled_at,
	rejection_reason,
	created_at, updated_at
`

func (r *AdoptionsRepo) Create(ctx context.Context, a adoptions.Application) error {
	data, docs, err := marshalApplication(a)
	if err != nil {
		return err
	}

	certNumber, certIssuedAt := certificateFields(a)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO adoption_applications (`+applicationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		a.ID,
		a.PetCode,
		a.ApplicantUserID,
		string(a.Status),
		string(a.PaymentStatus),
		data,
		docs,
		a.FeeCents,
		a.Currency,
		a.PaymentRef,
		certNumber,
		certIssuedAt,
		string(a.Handover.Status),
		toNullTime(a.Handover.ScheduledAt),
		a.RejectionReason,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

func (r *AdoptionsRepo) GetByID(ctx context.Context, id string) (adoptions.Application, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+applicationColumns+`
		FROM adoption_applications
		WHERE id = $1
	`, id)
	return scanApplication(row)
}

func (r *AdoptionsRepo) ListByApplicant(ctx context.Context, applicantUserID string) ([]adoptions.Application, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM adoption_applications
		WHERE applicant_user_id = $1
		ORDER BY created_at ASC
	`, applicantUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApplications(rows)
}

func (r *AdoptionsRepo) ListPending(ctx context.Context) ([]adoptions.Application, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+applicationColumns+`
		FROM adoption_applications
		WHERE status = 'pending'
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApplications(rows)
}

func (r *AdoptionsRepo) UpdateIf(ctx context.Context, a adoptions.Application, expected adoptions.Status) error {
	data, docs, err := marshalApplication(a)
	if err != nil {
		return err
	}
	certNumber, certIssuedAt := certificateFields(a)

	result, err := r.db.ExecContext(ctx, `
		UPDATE adoption_applications
		SET
			status = $2,
			payment_status = $3,
			application_data = $4,
			documents = $5,
			fee_cents = $6,
			payment_ref = $7,
			certificate_number = $8,
			certificate_issued_at = $9,
			handover_status = $10,
			handover_scheduled_at = $11,
			rejection_reason = $12,
			updated_at = $13
		WHERE id = $1 AND status = $14
	`,
		a.ID,
		string(a.Status),
		string(a.PaymentStatus),
		data,
		docs,
		a.FeeCents,
		a.PaymentRef,
		certNumber,
		certIssuedAt,
		string(a.Handover.Status),
		toNullTime(a.Handover.ScheduledAt),
		a.RejectionReason,
		a.UpdatedAt,
		string(expected),
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		if _, err := r.GetByID(ctx, a.ID); err != nil {
			return err
		}
		return adoptions.ErrStaleState
	}
	return nil
}

func collectApplications(rows *sql.Rows) ([]adoptions.Application, error) {
	out := make([]adoptions.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanApplication(row rowScanner) (adoptions.Application, error) {
	var a adoptions.Application
	var status, payStatus, handStatus string
	var data, docs []byte
	var certNumber sql.NullString
	var certIssuedAt, handScheduledAt sql.NullTime

	if err := row.Scan(
		&a.ID,
		&a.PetCode,
		&a.ApplicantUserID,
		&status,
		&payStatus,
		&data,
		&docs,
		&a.FeeCents,
		&a.Currency,
		&a.PaymentRef,
		&certNumber,
		&certIssuedAt,
		&handStatus,
		&handScheduledAt,
		&a.RejectionReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return adoptions.Application{}, adoptions.ErrNotFound
		}
		return adoptions.Application{}, err
	}

	a.Status = adoptions.Status(status)
	a.PaymentStatus = adoptions.PaymentStatus(payStatus)
	a.Handover.Status = adoptions.HandoverStatus(handStatus)
	if handScheduledAt.Valid {
		t := handScheduledAt.Time
		a.Handover.ScheduledAt = &t
	}
	if certNumber.Valid && certNumber.String != "" {
		a.Certificate = &adoptions.Certificate{
			Number:   certNumber.String,
			IssuedAt: certIssuedAt.Time,
		}
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &a.Data); err != nil {
			return adoptions.Application{}, err
		}
	}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &a.Documents); err != nil {
			return adoptions.Application{}, err
		}
	}
	return a, nil
}

func marshalApplication(a adoptions.Application) (data, docs []byte, err error) {
	data, err = json.Marshal(a.Data)
	if err != nil {
		return nil, nil, err
	}
	docs, err = json.Marshal(a.Documents)
	if err != nil {
		return nil, nil, err
	}
	return data, docs, nil
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func certificateFields(a adoptions.Application) (sql.NullString, sql.NullTime) {
	if a.Certificate == nil {
		return sql.NullString{}, sql.NullTime{}
	}
	return sql.NullString{String: a.Certificate.Number, Valid: true},
		sql.NullTime{Time: a.Certificate.IssuedAt, Valid: true}
}
