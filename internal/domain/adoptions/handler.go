package adoptions

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"pet-registry/internal/domain/registry"
	"pet-registry/internal/middleware"
	"pet-registry/internal/ports/payments"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/adoptions", func(ar chi.Router) {
		ar.Post("/", applyHandler(svc))
		ar.Get("/pending", listPendingHandler(svc))
		ar.Get("/{applicationID}", getApplicationHandler(svc))
		ar.Put("/{applicationID}/status", updateStatusHandler(svc))
		ar.Post("/{applicationID}/payment-order", paymentOrderHandler(svc))
		ar.Post("/{applicationID}/payment-verify", paymentVerifyHandler(svc))
		ar.Post("/{applicationID}/certificate", certificateHandler(svc))
		ar.Post("/{applicationID}/handover/schedule", scheduleHandoverHandler(svc))
		ar.Post("/{applicationID}/handover/confirm", confirmHandoverHandler(svc))
	})

	r.Get("/me/adoptions", listMyAdoptionsHandler(svc))
}

type applyRequest struct {
	PetCode    string   `json:"pet_code"`
	HomeType   string   `json:"home_type"`
	HasOther   bool     `json:"has_other_pets"`
	HoursAlone int      `json:"hours_alone"`
	Experience string   `json:"experience_notes"`
	Documents  []string `json:"documents"`
}

type decideRequest struct {
	Status   string `json:"status"` // approved | rejected
	FeeCents int64  `json:"fee_cents"`
	Reason   string `json:"reason"`
}

type paymentVerifyRequest struct {
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

type scheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

type confirmRequest struct {
	OTP string `json:"otp"`
}

type certificateResponse struct {
	Number   string    `json:"number"`
	IssuedAt time.Time `json:"issued_at"`
}

type handoverResponse struct {
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

type applicationResponse struct {
	ID              string               `json:"id"`
	PetCode         string               `json:"pet_code"`
	ApplicantUserID string               `json:"applicant_user_id"`
	Status          string               `json:"status"`
	PaymentStatus   string               `json:"payment_status"`
	FeeCents        int64                `json:"fee_cents,omitempty"`
	Currency        string               `json:"currency,omitempty"`
	PaymentRef      string               `json:"payment_ref,omitempty"`
	Documents       []string             `json:"documents,omitempty"`
	Certificate     *certificateResponse `json:"certificate,omitempty"`
	Handover        handoverResponse     `json:"handover"`
	RejectionReason string               `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

type paymentOrderResponse struct {
	Application applicationResponse `json:"application"`
	OrderID     string              `json:"order_id"`
	Key         string              `json:"key"`
	AmountCents int64               `json:"amount_cents"`
	Currency    string              `json:"currency"`
}

func applyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req applyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := svc.Apply(r.Context(), claims.UserID, ApplyInput{
			PetCode: req.PetCode,
			Data: ApplicationData{
				HomeType:        req.HomeType,
				HasOtherPets:    req.HasOther,
				HoursAlone:      req.HoursAlone,
				ExperienceNotes: req.Experience,
			},
			Documents: req.Documents,
		})
		if err != nil {
			writeErr(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toApplicationResponse(a))
	}
}

func getApplicationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		a, err := svc.GetByID(r.Context(), chi.URLParam(r, "applicationID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if a.ApplicantUserID != claims.UserID && !claims.IsManager() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		writeJSON(w, http.StatusOK, toApplicationResponse(a))
	}
}

// updateStatusHandler cubre solo la decisión pending → approved/rejected.
// Los pasos posteriores tienen endpoints propios (certificado, handover).
func updateStatusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || !claims.IsManager() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var req decideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		id := chi.URLParam(r, "applicationID")

		var (
			a   Application
			err error
		)
		switch Status(strings.TrimSpace(req.Status)) {
		case StatusApproved:
			a, err = svc.Approve(r.Context(), id, claims.UserID, req.FeeCents)
		case StatusRejected:
			a, err = svc.Reject(r.Context(), id, claims.UserID, req.Reason)
		default:
			http.Error(w, "unknown status", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeErr(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toApplicationResponse(a))
	}
}

func paymentOrderHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		a, order, err := svc.CreatePaymentOrder(r.Context(), chi.URLParam(r, "applicationID"), claims.UserID)
		if err != nil {
			writeErr(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, paymentOrderResponse{
			Application: toApplicationResponse(a),
			OrderID:     order.OrderID,
			Key:         order.Key,
			AmountCents: order.AmountCents,
			Currency:    order.Currency,
		})
	}
}

func paymentVerifyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req paymentVerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := svc.VerifyPayment(r.Context(), chi.URLParam(r, "applicationID"), claims.UserID, req.PaymentID, req.Signature)
		if err != nil {
			writeErr(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toApplicationResponse(a))
	}
}

func certificateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || !claims.IsManager() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		a, err := svc.GenerateCertificate(r.Context(), chi.URLParam(r, "applicationID"), claims.UserID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toApplicationResponse(a))
	}
}

func scheduleHandoverHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || !claims.IsManager() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var req scheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := svc.ScheduleHandover(r.Context(), chi.URLParam(r, "applicationID"), claims.UserID, req.ScheduledAt)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toApplicationResponse(a))
	}
}

func confirmHandoverHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || !claims.IsManager() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var req confirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		a, err := svc.ConfirmHandover(r.Context(), chi.URLParam(r, "applicationID"), claims.UserID, req.OTP)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toApplicationResponse(a))
	}
}

func listMyAdoptionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByApplicant(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]applicationResponse, 0, len(items))
		for _, a := range items {
			out = append(out, toApplicationResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listPendingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || !claims.IsManager() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		items, err := svc.ListPending(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]applicationResponse, 0, len(items))
		for _, a := range items {
			out = append(out, toApplicationResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toApplicationResponse(a Application) applicationResponse {
	resp := applicationResponse{
		ID:              a.ID,
		PetCode:         a.PetCode,
		ApplicantUserID: a.ApplicantUserID,
		Status:          string(a.Status),
		PaymentStatus:   string(a.PaymentStatus),
		FeeCents:        a.FeeCents,
		Currency:        a.Currency,
		PaymentRef:      a.PaymentRef,
		Documents:       a.Documents,
		Handover: handoverResponse{
			Status:      string(a.Handover.Status),
			ScheduledAt: a.Handover.ScheduledAt,
		},
		RejectionReason: a.RejectionReason,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.Certificate != nil {
		resp.Certificate = &certificateResponse{
			Number:   a.Certificate.Number,
			IssuedAt: a.Certificate.IssuedAt,
		}
	}
	return resp
}

func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "application not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrBadOTP):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, registry.ErrAlreadyReserved):
		http.Error(w, "pet already reserved", http.StatusConflict)
	case errors.Is(err, registry.ErrNotFound):
		http.Error(w, "pet not found", http.StatusNotFound)
	case errors.Is(err, ErrPetNotAvailable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStaleState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, payments.ErrVerificationFailed):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON duplicado a propósito entre módulos (ver nota en registry/handler.go).
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
