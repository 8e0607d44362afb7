package memory

import (
	"context"
	"sync"

	"pet-registry/internal/ports/sources"
)

// Reader es un origen en memoria, pensado para dev y tests: se siembra
// con registros y se comporta como un subsistema real de solo lectura.
type Reader struct {
	mu      sync.RWMutex
	records []sources.Record
}

func NewReader(seed ...sources.Record) *Reader {
	r := &Reader{}
	r.records = append(r.records, seed...)
	return r
}

// Put agrega o reemplaza un registro (misma Source+SourceID).
func (r *Reader) Put(rec sources.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.records {
		if existing.Source == rec.Source && existing.SourceID == rec.SourceID {
			r.records[i] = rec
			return
		}
	}
	r.records = append(r.records, rec)
}

func (r *Reader) ListByOwner(ctx context.Context, userID string) ([]sources.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]sources.Record, 0)
	for _, rec := range r.records {
		if rec.OwnerUserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *Reader) GetByPetCode(ctx context.Context, petCode string) (sources.Record, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.PetCode == petCode {
			return rec, true, nil
		}
	}
	return sources.Record{}, false, nil
}
