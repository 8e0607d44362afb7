package reservations

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
	r.Route("/reservations", func(rr chi.Router) {
		rr.Post("/", createReservationHandler(svc))
		rr.Get("/{reservationID}", getReservationHandler(svc))
		rr.Put("/{reservationID}/status", updateStatusHandler(svc))
		rr.Post("/{reservationID}/payment-order", paymentOrderHandler(svc))
		rr.Post("/{reservationID}/payment-verify", paymentVerifyHandler(svc))
	})

	r.Get("/me/reservations", listMyReservationsHandler(svc))
	r.Get("/stores/{storeID}/reservations", listStoreReservationsHandler(svc))
}

type createReservationRequest struct {
	PetCode     string `json:"pet_code"`
	StoreID     string `json:"store_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Notes       string `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type paymentVerifyRequest struct {
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

type reservationResponse struct {
	ID              string    `json:"id"`
	PetCode         string    `json:"pet_code"`
	BuyerUserID     string    `json:"buyer_user_id"`
	StoreID         string    `json:"store_id"`
	Status          string    `json:"status"`
	ReservationCode string    `json:"reservation_code"`
	PaymentRef      string    `json:"payment_ref,omitempty"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type paymentOrderResponse struct {
	Reservation reservationResponse `json:"reservation"`
	OrderID     string              `json:"order_id"`
	Key         string              `json:"key"`
	AmountCents int64               `json:"amount_cents"`
	Currency    string              `json:"currency"`
}

func createReservationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createReservationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		res, err := svc.Create(r.Context(), claims.UserID, CreateInput{
			PetCode:     req.PetCode,
			StoreID:     req.StoreID,
			AmountCents: req.AmountCents,
			Currency:    req.Currency,
			Notes:       req.Notes,
		})
		if err != nil {
			writeErr(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toReservationResponse(res))
	}
}

func getReservationHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		res, err := svc.GetByID(r.Context(), chi.URLParam(r, "reservationID"))
		if err != nil {
			writeErr(w, err)
			return
		}

		// Solo el comprador o la tienda ven el trámite.
		if res.BuyerUserID != claims.UserID && !claims.IsManager() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		writeJSON(w, http.StatusOK, toReservationResponse(res))
	}
}

// updateStatusHandler despacha el PUT de status al caso de uso que
// corresponde. Qué transición requiere qué rol vive en types.go; acá
// solo se rutea.
func updateStatusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req updateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		id := chi.URLParam(r, "reservationID")
		to := Status(strings.TrimSpace(req.Status))

		if RequiresManager(to) && !claims.IsManager() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var (
			res Reservation
			err error
		)
		switch to {
		case StatusApproved, StatusRejected:
			res, err = svc.Decide(r.Context(), id, claims.UserID, to == StatusApproved, req.Notes)
		case StatusGoingToBuy:
			res, err = svc.MarkGoingToBuy(r.Context(), id, claims.UserID)
		case StatusCancelled:
			res, err = svc.Cancel(r.Context(), id, claims.UserID, claims.IsManager())
		case StatusReadyPickup, StatusDelivered:
			res, err = svc.Advance(r.Context(), id, claims.UserID, to, req.Notes)
		case StatusAtOwner:
			res, err = svc.Complete(r.Context(), id, claims.UserID)
		default:
			http.Error(w, "unknown status", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeErr(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toReservationResponse(res))
	}
}

func paymentOrderHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		res, order, err := svc.CreatePaymentOrder(r.Context(), chi.URLParam(r, "reservationID"), claims.UserID)
		if err != nil {
			writeErr(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, paymentOrderResponse{
			Reservation: toReservationResponse(res),
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

		res, err := svc.VerifyPayment(r.Context(), chi.URLParam(r, "reservationID"), claims.UserID, req.PaymentID, req.Signature)
		if err != nil {
			writeErr(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toReservationResponse(res))
	}
}

func listMyReservationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByBuyer(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]reservationResponse, 0, len(items))
		for _, res := range items {
			out = append(out, toReservationResponse(res))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listStoreReservationsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || !claims.IsManager() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		items, err := svc.ListByStore(r.Context(), chi.URLParam(r, "storeID"))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]reservationResponse, 0, len(items))
		for _, res := range items {
			out = append(out, toReservationResponse(res))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toReservationResponse(r Reservation) reservationResponse {
	return reservationResponse{
		ID:              r.ID,
		PetCode:         r.PetCode,
		BuyerUserID:     r.BuyerUserID,
		StoreID:         r.StoreID,
		Status:          string(r.Status),
		ReservationCode: r.ReservationCode,
		PaymentRef:      r.PaymentRef,
		AmountCents:     r.AmountCents,
		Currency:        r.Currency,
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// writeErr mapea la taxonomía de errores del workflow a HTTP.
// Uniqueness y transiciones van sincrónicas al caller; el engine nunca
// reintenta solo.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "reservation not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
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
