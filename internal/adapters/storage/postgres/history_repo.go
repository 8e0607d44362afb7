package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"pet-registry/internal/domain/history"
)

type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

func (r *HistoryRepo) Append(ctx context.Context, e history.Event) error {
	return appendEvent(ctx, r.db, e)
}

func (r *HistoryRepo) ListByPet(ctx context.Context, petCode string, limit int) ([]history.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pet_code, event_type, occurred_at, performed_by, performed_by_role, metadata
		FROM history_events
		WHERE pet_code = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`, petCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]history.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// execer cubre *sql.DB y *sql.Tx; el repo de transferencias inserta
// eventos dentro de su propia transacción.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func appendEvent(ctx context.Context, ex execer, e history.Event) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO history_events (id, pet_code, event_type, occurred_at, performed_by, performed_by_role, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		e.ID,
		e.PetCode,
		string(e.Type),
		e.Timestamp,
		e.PerformedBy,
		e.PerformedByRole,
		meta,
	)
	return err
}

func getEventByID(ctx context.Context, ex execer, id string) (history.Event, bool, error) {
	row := ex.QueryRowContext(ctx, `
		SELECT id, pet_code, event_type, occurred_at, performed_by, performed_by_role, metadata
		FROM history_events
		WHERE id = $1
	`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return history.Event{}, false, nil
		}
		return history.Event{}, false, err
	}
	return e, true, nil
}

func scanEvent(row rowScanner) (history.Event, error) {
	var e history.Event
	var eventType string
	var meta []byte

	if err := row.Scan(
		&e.ID,
		&e.PetCode,
		&eventType,
		&e.Timestamp,
		&e.PerformedBy,
		&e.PerformedByRole,
		&meta,
	); err != nil {
		return history.Event{}, err
	}
	e.Type = history.EventType(eventType)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return history.Event{}, err
		}
	}
	return e, nil
}
