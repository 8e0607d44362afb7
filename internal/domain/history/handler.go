package history

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pet-registry/internal/domain/petcode"
	"pet-registry/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/pets/{petCode}/history", listHistoryHandler(svc))
}

type eventResponse struct {
	ID              string            `json:"id"`
	PetCode         string            `json:"pet_code"`
	Type            string            `json:"type"`
	Timestamp       time.Time         `json:"timestamp"`
	PerformedBy     string            `json:"performed_by"`
	PerformedByRole string            `json:"performed_by_role"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

func listHistoryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		code, err := petcode.Normalize(chi.URLParam(r, "petCode"))
		if err != nil {
			http.Error(w, "invalid pet code", http.StatusBadRequest)
			return
		}

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}

		items, err := svc.ListByPet(r.Context(), code, limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]eventResponse, 0, len(items))
		for _, e := range items {
			out = append(out, toEventResponse(e))
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func toEventResponse(e Event) eventResponse {
	return eventResponse{
		ID:              e.ID,
		PetCode:         e.PetCode,
		Type:            string(e.Type),
		Timestamp:       e.Timestamp,
		PerformedBy:     e.PerformedBy,
		PerformedByRole: e.PerformedByRole,
		Metadata:        e.Metadata,
	}
}

// writeJSON duplicado a propósito entre módulos (ver nota en registry/handler.go).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
