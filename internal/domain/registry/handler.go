package registry

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"pet-registry/internal/domain/petcode"
	"pet-registry/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	// Perfil canónico por petCode (cualquier usuario autenticado).
	// Si el path no matchea el formato de petCode, probamos canonical id.
	r.Get("/pets/{petCode}", getPetHandler(svc))

	// Mis mascotas, mezcladas desde los cuatro orígenes.
	r.Get("/me/pets", listMyPetsHandler(svc))

	// Cuarentena: solo managers (reconciliación manual).
	r.Get("/registry/quarantine", listQuarantineHandler(svc))
}

type petResponse struct {
	PetCode       string             `json:"pet_code,omitempty"`
	CanonicalID   string             `json:"canonical_id"`
	CurrentStatus string             `json:"current_status"`
	PrimarySource string             `json:"primary_source"`
	Attributes    attributesResponse `json:"attributes"`
	OwnerUserID   string             `json:"owner_user_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type attributesResponse struct {
	Name        string   `json:"name"`
	Species     string   `json:"species"`
	Breed       string   `json:"breed,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	AgeMonths   int      `json:"age_months,omitempty"`
	Color       string   `json:"color,omitempty"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"`
}

type quarantineResponse struct {
	ID            string    `json:"id"`
	SourceType    string    `json:"source_type"`
	SourceID      string    `json:"source_id"`
	PetCode       string    `json:"pet_code,omitempty"`
	Reason        string    `json:"reason"`
	QuarantinedAt time.Time `json:"quarantined_at"`
}

func getPetHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		raw := chi.URLParam(r, "petCode")

		// Contrato público: si la cadena matchea el formato de petCode
		// se intenta contra el registry; si no, fallback a canonical id.
		if code, err := petcode.Normalize(raw); err == nil {
			p, err := svc.GetByPetCode(r.Context(), code)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					http.Error(w, "pet not found", http.StatusNotFound)
					return
				}
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, toPetResponse(p))
			return
		}

		p, err := svc.GetByCanonicalID(r.Context(), raw)
		if err != nil {
			http.Error(w, "pet not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toPetResponse(p))
	}
}

func listMyPetsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]petResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPetResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listQuarantineHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || !claims.IsManager() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		items, err := svc.ListQuarantined(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]quarantineResponse, 0, len(items))
		for _, q := range items {
			out = append(out, quarantineResponse{
				ID:            q.ID,
				SourceType:    string(q.Record.Source),
				SourceID:      q.Record.SourceID,
				PetCode:       q.Record.PetCode,
				Reason:        q.Reason,
				QuarantinedAt: q.QuarantinedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toPetResponse(p PetIdentity) petResponse {
	a := p.MergedAttributes
	return petResponse{
		PetCode:       p.PetCode,
		CanonicalID:   p.CanonicalID,
		CurrentStatus: string(p.CurrentStatus),
		PrimarySource: string(p.PrimarySource),
		Attributes: attributesResponse{
			Name:        a.Name,
			Species:     a.Species,
			Breed:       a.Breed,
			Gender:      a.Gender,
			AgeMonths:   a.AgeMonths,
			Color:       a.Color,
			Description: a.Description,
			Images:      a.Images,
		},
		OwnerUserID: p.OwnerUserID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos
// módulos (registry/reservations/adoptions/history) para no crear
// helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
