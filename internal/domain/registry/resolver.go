package registry

import (
	"context"
	"reflect"
	"strings"
	"time"

	"pet-registry/internal/domain/history"
	"pet-registry/internal/domain/petcode"
	"pet-registry/internal/ports/sources"

	"github.com/google/uuid"
)

// Resolver mezcla los SourceRecords de todos los orígenes en una única
// PetIdentity canónica. Reemplaza las cadenas de "probá esta API, si no
// la otra" del mundo anterior por una precedencia explícita:
//
//  1. dedupe por petCode; clave local solo si no hay código
//  2. primarySource = el origen no-manual más reciente (manual solo si
//     no hay otro)
//  3. atributos de display: los del primarySource, pisados por
//     name/images/description del registro manual si existe
//  4. registros con código malformado o en colisión → cuarentena,
//     jamás merge silencioso
type Resolver struct {
	readers []sources.Reader
	repo    Repository
	history *history.Service

	now func() time.Time

	// onQuarantine: hook opcional para métricas.
	onQuarantine func()
}

func NewResolver(readers []sources.Reader, repo Repository, hist *history.Service) *Resolver {
	return &Resolver{
		readers: readers,
		repo:    repo,
		history: hist,
		now:     time.Now,
	}
}

// SetQuarantineHook registra un callback por registro encuarentenado.
func (rs *Resolver) SetQuarantineHook(fn func()) {
	rs.onQuarantine = fn
}

// Resolve trae los records de todos los orígenes para un petCode y
// devuelve (creando o actualizando) la identidad canónica.
func (rs *Resolver) Resolve(ctx context.Context, code string) (PetIdentity, error) {
	code, err := petcode.Normalize(code)
	if err != nil {
		return PetIdentity{}, err
	}

	records := make([]sources.Record, 0, len(rs.readers))
	for _, rd := range rs.readers {
		rec, found, err := rd.GetByPetCode(ctx, code)
		if err != nil {
			// un origen caído no bloquea la lectura; seguimos con el resto
			continue
		}
		if found {
			records = append(records, rec)
		}
	}

	if len(records) == 0 {
		// sin records frescos, la identidad persistida sigue valiendo
		return rs.repo.GetByPetCode(ctx, code)
	}

	return rs.upsert(ctx, code, records)
}

// ResolveOwner arma las identidades de todas las mascotas de un usuario,
// escaneando los cuatro orígenes.
func (rs *Resolver) ResolveOwner(ctx context.Context, userID string) ([]PetIdentity, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrNotFound
	}

	byCode := map[string][]sources.Record{}
	codeless := make([]sources.Record, 0)

	for _, rd := range rs.readers {
		recs, err := rd.ListByOwner(ctx, userID)
		if err != nil {
			continue
		}
		for _, rec := range recs {
			c := strings.TrimSpace(rec.PetCode)
			if c == "" {
				codeless = append(codeless, rec)
				continue
			}
			byCode[c] = append(byCode[c], rec)
		}
	}

	out := make([]PetIdentity, 0, len(byCode)+len(codeless))

	for code, recs := range byCode {
		if !petcode.IsValid(code) {
			for _, rec := range recs {
				rs.quarantine(ctx, rec, "malformed pet code")
			}
			continue
		}
		p, err := rs.upsert(ctx, code, recs)
		if err != nil {
			continue
		}
		out = append(out, p)
	}

	// Los registros sin petCode no se persisten como canónicos: se
	// proyectan con un id determinístico por clave local. Cuando el
	// origen les asigne código, caen solos en el camino de arriba y se
	// mergean a la identidad existente (nunca duplican).
	seen := map[string]struct{}{}
	for _, rec := range codeless {
		if _, ok := seen[rec.LocalKey()]; ok {
			continue
		}
		seen[rec.LocalKey()] = struct{}{}
		out = append(out, projectLocal(rec))
	}

	return out, nil
}

// upsert aplica el merge y persiste. Mantiene el invariante de una sola
// PetIdentity por petCode: el canonicalId es determinístico por código,
// así re-resolver da siempre el mismo id.
func (rs *Resolver) upsert(ctx context.Context, code string, records []sources.Record) (PetIdentity, error) {
	clean, conflicting := splitConflicts(records)
	for _, rec := range conflicting {
		rs.quarantine(ctx, rec, "pet code collision: attributes disagree with primary record")
	}
	if len(clean) == 0 {
		return rs.repo.GetByPetCode(ctx, code)
	}

	primary := pickPrimary(clean)
	merged := mergeAttributes(primary, clean)
	now := rs.now()

	existing, err := rs.repo.GetByPetCode(ctx, code)
	if err == nil {
		changed := !reflect.DeepEqual(existing.MergedAttributes, merged) ||
			existing.PrimarySource != primary.Source
		if !changed {
			return existing, nil
		}
		existing.MergedAttributes = merged
		existing.PrimarySource = primary.Source
		existing.UpdatedAt = now
		if err := rs.repo.Update(ctx, existing); err != nil {
			return PetIdentity{}, err
		}
		_, _ = rs.history.Record(ctx, history.RecordInput{
			PetCode:         code,
			Type:            history.EventTypeRecordReconciled,
			PerformedBy:     "resolver",
			PerformedByRole: "system",
			Metadata:        map[string]string{"primary_source": string(primary.Source)},
		})
		return existing, nil
	}

	status, owner := initialState(primary)
	p := PetIdentity{
		PetCode:          code,
		CanonicalID:      CanonicalID(code),
		CurrentStatus:    status,
		PrimarySource:    primary.Source,
		MergedAttributes: merged,
		OwnerUserID:      owner,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := rs.repo.Create(ctx, p); err != nil {
		// carrera con otro resolve concurrente: el que perdió relee
		if existing, gerr := rs.repo.GetByPetCode(ctx, code); gerr == nil {
			return existing, nil
		}
		return PetIdentity{}, err
	}
	return p, nil
}

func (rs *Resolver) quarantine(ctx context.Context, rec sources.Record, reason string) {
	_ = rs.repo.Quarantine(ctx, QuarantinedRecord{
		ID:            uuid.NewString(),
		Record:        rec,
		Reason:        reason,
		QuarantinedAt: rs.now(),
	})
	if rs.onQuarantine != nil {
		rs.onQuarantine()
	}
}

// CanonicalID deriva el id canónico del petCode (UUIDv5). Determinístico:
// el mismo código produce siempre el mismo id, incluso tras rebuilds.
func CanonicalID(code string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("petcode:"+code)).String()
}

// splitConflicts separa los records consistentes de los que chocan en
// especie con el candidato primario: dos especies distintas bajo el
// mismo petCode son dos mascotas físicas distintas.
func splitConflicts(records []sources.Record) (clean, conflicting []sources.Record) {
	primary := pickPrimary(records)
	species := strings.ToLower(strings.TrimSpace(primary.Attributes.Species))

	for _, rec := range records {
		s := strings.ToLower(strings.TrimSpace(rec.Attributes.Species))
		if species != "" && s != "" && s != species {
			conflicting = append(conflicting, rec)
			continue
		}
		clean = append(clean, rec)
	}
	return clean, conflicting
}

// pickPrimary: no-manual más reciente; manual solo a falta de otro.
func pickPrimary(records []sources.Record) sources.Record {
	var primary sources.Record
	has := false
	for _, rec := range records {
		if rec.Source == sources.TypeManual {
			continue
		}
		if !has || rec.LastModifiedAt.After(primary.LastModifiedAt) {
			primary = rec
			has = true
		}
	}
	if has {
		return primary
	}
	// solo manuales
	for _, rec := range records {
		if !has || rec.LastModifiedAt.After(primary.LastModifiedAt) {
			primary = rec
			has = true
		}
	}
	return primary
}

func mergeAttributes(primary sources.Record, records []sources.Record) Attributes {
	a := primary.Attributes
	out := Attributes{
		Name:        a.Name,
		Species:     a.Species,
		Breed:       a.Breed,
		Gender:      a.Gender,
		AgeMonths:   a.AgeMonths,
		Color:       a.Color,
		Description: a.Description,
		Images:      a.Images,
	}

	// overlay manual: el dueño conoce mejor el nombre y las fotos de su
	// mascota que el inventario de la tienda
	for _, rec := range records {
		if rec.Source != sources.TypeManual {
			continue
		}
		m := rec.Attributes
		if strings.TrimSpace(m.Name) != "" {
			out.Name = m.Name
		}
		if len(m.Images) > 0 {
			out.Images = m.Images
		}
		if strings.TrimSpace(m.Description) != "" {
			out.Description = m.Description
		}
		break
	}
	return out
}

// initialState mapea el origen primario al estado canónico inicial.
// Match exhaustivo sobre el tagged type (ver sources.Type).
func initialState(primary sources.Record) (Status, string) {
	switch primary.Source {
	case sources.TypeRescued:
		return StatusInTemporaryCare, ""
	case sources.TypeAdopted:
		return StatusAdopted, primary.OwnerUserID
	case sources.TypePurchased, sources.TypeManual:
		return StatusOwned, primary.OwnerUserID
	default:
		return StatusOwned, primary.OwnerUserID
	}
}

func projectLocal(rec sources.Record) PetIdentity {
	status, owner := initialState(rec)
	a := rec.Attributes
	return PetIdentity{
		CanonicalID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte("local:"+rec.LocalKey())).String(),
		CurrentStatus: status,
		PrimarySource: rec.Source,
		MergedAttributes: Attributes{
			Name:        a.Name,
			Species:     a.Species,
			Breed:       a.Breed,
			Gender:      a.Gender,
			AgeMonths:   a.AgeMonths,
			Color:       a.Color,
			Description: a.Description,
			Images:      a.Images,
		},
		OwnerUserID: owner,
		CreatedAt:   rec.LastModifiedAt,
		UpdatedAt:   rec.LastModifiedAt,
	}
}
