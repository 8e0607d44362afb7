package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"pet-registry/internal/domain/registry"
	"pet-registry/internal/ports/sources"
)

type RegistryRepo struct {
	db *sql.DB
}

func NewRegistryRepo(db *sql.DB) *RegistryRepo {
	return &RegistryRepo{db: db}
}

func (r *RegistryRepo) Create(ctx context.Context, p registry.PetIdentity) error {
	attrs, err := json.Marshal(p.MergedAttributes)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pet_identities (
			pet_code, canonical_id,
			current_status, primary_source, merged_attributes,
			owner_user_id, active_workflow_id,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		p.PetCode,
		p.CanonicalID,
		string(p.CurrentStatus),
		string(p.PrimarySource),
		attrs,
		p.OwnerUserID,
		p.ActiveWorkflowID,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (r *RegistryRepo) Update(ctx context.Context, p registry.PetIdentity) error {
	attrs, err := json.Marshal(p.MergedAttributes)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE pet_identities
		SET
			current_status = $2,
			primary_source = $3,
			merged_attributes = $4,
			owner_user_id = $5,
			active_workflow_id = $6,
			updated_at = $7
		WHERE pet_code = $1
	`,
		p.PetCode,
		string(p.CurrentStatus),
		string(p.PrimarySource),
		attrs,
		p.OwnerUserID,
		p.ActiveWorkflowID,
		p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

const identityColumns = `
	pet_code, canonical_id,
	current_status, primary_source, merged_attributes,
	owner_user_id, active_workflow_id,
	created_at, updated_at
`

func (r *RegistryRepo) GetByPetCode(ctx context.Context, petCode string) (registry.PetIdentity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+identityColumns+`
		FROM pet_identities
		WHERE pet_code = $1
	`, petCode)
	return scanIdentity(row)
}

func (r *RegistryRepo) GetByCanonicalID(ctx context.Context, id string) (registry.PetIdentity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+identityColumns+`
		FROM pet_identities
		WHERE canonical_id = $1
	`, id)
	return scanIdentity(row)
}

func (r *RegistryRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]registry.PetIdentity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+identityColumns+`
		FROM pet_identities
		WHERE owner_user_id = $1
		ORDER BY created_at ASC
	`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]registry.PetIdentity, 0)
	for rows.Next() {
		p, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClaimWorkflow: compare-and-swap en un solo UPDATE condicional.
// Dos compradores a la vez => exactamente una fila afectada.
func (r *RegistryRepo) ClaimWorkflow(ctx context.Context, petCode, workflowID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pet_identities
		SET
			active_workflow_id = $2,
			current_status = CASE WHEN current_status = 'owned' THEN 'reserved' ELSE current_status END,
			updated_at = $3
		WHERE pet_code = $1
		  AND (active_workflow_id = '' OR active_workflow_id = $2)
	`, petCode, workflowID, time.Now())
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}

	// fila no afectada: o no existe, o el claim lo tiene otro workflow
	if _, err := r.GetByPetCode(ctx, petCode); err != nil {
		return err
	}
	return registry.ErrAlreadyReserved
}

func (r *RegistryRepo) ReleaseWorkflow(ctx context.Context, petCode, workflowID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pet_identities
		SET
			active_workflow_id = '',
			current_status = CASE WHEN current_status = 'reserved' THEN 'owned' ELSE current_status END,
			updated_at = $3
		WHERE pet_code = $1
		  AND active_workflow_id = $2
	`, petCode, workflowID, time.Now())
	return err
}

func (r *RegistryRepo) Quarantine(ctx context.Context, q registry.QuarantinedRecord) error {
	record, err := json.Marshal(q.Record)
	if err != nil {
		return err
	}
	// ON CONFLICT: el mismo registro sucio reaparece en cada resolve
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO quarantined_records (
			id, source_type, source_id, pet_code, record, reason, quarantined_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (source_type, source_id) DO NOTHING
	`,
		q.ID,
		string(q.Record.Source),
		q.Record.SourceID,
		q.Record.PetCode,
		record,
		q.Reason,
		q.QuarantinedAt,
	)
	return err
}

func (r *RegistryRepo) ListQuarantined(ctx context.Context) ([]registry.QuarantinedRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, record, reason, quarantined_at
		FROM quarantined_records
		ORDER BY quarantined_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]registry.QuarantinedRecord, 0)
	for rows.Next() {
		var q registry.QuarantinedRecord
		var record []byte
		if err := rows.Scan(&q.ID, &record, &q.Reason, &q.QuarantinedAt); err != nil {
			return nil, err
		}
		var rec sources.Record
		if err := json.Unmarshal(record, &rec); err != nil {
			return nil, err
		}
		q.Record = rec
		out = append(out, q)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (registry.PetIdentity, error) {
	var p registry.PetIdentity
	var status, source string
	var attrs []byte

	if err := row.Scan(
		&p.PetCode,
		&p.CanonicalID,
		&status,
		&source,
		&attrs,
		&p.OwnerUserID,
		&p.ActiveWorkflowID,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registry.PetIdentity{}, registry.ErrNotFound
		}
		return registry.PetIdentity{}, err
	}

	p.CurrentStatus = registry.Status(status)
	p.PrimarySource = sources.Type(source)
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.MergedAttributes); err != nil {
			return registry.PetIdentity{}, err
		}
	}
	return p, nil
}
