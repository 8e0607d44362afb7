package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"pet-registry/internal/domain/history"
	"pet-registry/internal/domain/registry"
	"pet-registry/internal/domain/transfer"
	"pet-registry/internal/ports/sources"
)

// TransferRepo ejecuta el traspaso en una sola transacción:
// SELECT ... FOR UPDATE sobre pet_identities, checks de conflicto,
// UPDATE + INSERT del evento + marca de idempotencia. Todo o nada.
type TransferRepo struct {
	db *sql.DB
}

func NewTransferRepo(db *sql.DB) *TransferRepo {
	return &TransferRepo{db: db}
}

func (r *TransferRepo) Apply(ctx context.Context, in transfer.Input, event history.Event) (applied bool, prior history.Event, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, history.Event{}, err
	}
	defer tx.Rollback()

	// retry con el mismo txID: devolver el evento original, sin escribir
	var priorEventID string
	err = tx.QueryRowContext(ctx, `
		SELECT event_id
		FROM ownership_transfers
		WHERE pet_code = $1 AND tx_id = $2
	`, in.PetCode, in.TxID).Scan(&priorEventID)
	switch {
	case err == nil:
		e, found, err := getEventByID(ctx, tx, priorEventID)
		if err != nil {
			return false, history.Event{}, err
		}
		if !found {
			e = event
		}
		return false, e, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, history.Event{}, err
	}

	var status, ownerUserID, activeWorkflowID string
	err = tx.QueryRowContext(ctx, `
		SELECT current_status, owner_user_id, active_workflow_id
		FROM pet_identities
		WHERE pet_code = $1
		FOR UPDATE
	`, in.PetCode).Scan(&status, &ownerUserID, &activeWorkflowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, history.Event{}, transfer.ErrNotFound
		}
		return false, history.Event{}, err
	}

	// última defensa contra la doble venta
	sold := status == string(registry.StatusSold) || status == string(registry.StatusAdopted)
	if ownerUserID != "" && ownerUserID != in.NewOwnerUserID && sold {
		return false, history.Event{}, transfer.ErrConflict
	}
	if activeWorkflowID != "" && activeWorkflowID != in.TxID {
		return false, history.Event{}, transfer.ErrConflict
	}

	newSource := sql.NullString{}
	if in.SourceWorkflow == transfer.WorkflowAdoption {
		newSource = sql.NullString{String: string(sources.TypeAdopted), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE pet_identities
		SET
			owner_user_id = $2,
			current_status = $3,
			primary_source = COALESCE($4, primary_source),
			active_workflow_id = '',
			updated_at = $5
		WHERE pet_code = $1
	`,
		in.PetCode,
		in.NewOwnerUserID,
		string(in.NewStatus()),
		newSource,
		in.OccurredAt,
	)
	if err != nil {
		return false, history.Event{}, err
	}

	if err := appendEvent(ctx, tx, event); err != nil {
		return false, history.Event{}, err
	}

	meta, err := json.Marshal(map[string]string{
		"source_workflow": string(in.SourceWorkflow),
	})
	if err != nil {
		return false, history.Event{}, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ownership_transfers (pet_code, tx_id, event_id, new_owner_user_id, metadata, applied_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		in.PetCode,
		in.TxID,
		event.ID,
		in.NewOwnerUserID,
		meta,
		in.OccurredAt,
	)
	if err != nil {
		return false, history.Event{}, err
	}

	if err := tx.Commit(); err != nil {
		return false, history.Event{}, err
	}
	return true, history.Event{}, nil
}
