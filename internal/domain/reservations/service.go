package reservations

import (
	"context"
	"errors"
	"strings"
	"time"

	"pet-registry/internal/domain/history"
	"pet-registry/internal/domain/petcode"
	"pet-registry/internal/domain/registry"
	"pet-registry/internal/domain/transfer"
	"pet-registry/internal/platform/metrics"
	"pet-registry/internal/ports/notify"
	"pet-registry/internal/ports/payments"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")

	// ErrInvalidTransition: el destino pedido no es alcanzable desde el
	// estado actual según la tabla de types.go.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPetNotAvailable: la mascota no está en estado reservable
	// (no es de tienda, ya fue vendida, etc).
	ErrPetNotAvailable = errors.New("pet not available for reservation")
)

const defaultCurrency = "INR"

type Deps struct {
	Repo     Repository
	Registry registry.Repository
	Transfer *transfer.Service
	History  *history.Service
	Gateway  payments.Gateway
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
}

type Service struct {
	repo     Repository
	registry registry.Repository
	transfer *transfer.Service
	history  *history.Service
	gateway  payments.Gateway
	notifier notify.Notifier
	metrics  *metrics.Metrics

	now func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		repo:     d.Repo,
		registry: d.Registry,
		transfer: d.Transfer,
		history:  d.History,
		gateway:  d.Gateway,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		now:      time.Now,
	}
}

type CreateInput struct {
	PetCode     string
	StoreID     string
	AmountCents int64
	Currency    string
	Notes       string
}

// Create registra la intención de compra. El "no hay otro workflow
// activo" NO es un check-then-write: es el claim atómico del registry
// (compare-and-swap sobre ActiveWorkflowID). De dos compradores
// simultáneos gana exactamente uno; el otro recibe ErrAlreadyReserved.
func (s *Service) Create(ctx context.Context, buyerUserID string, in CreateInput) (Reservation, error) {
	buyerUserID = strings.TrimSpace(buyerUserID)
	if buyerUserID == "" || strings.TrimSpace(in.StoreID) == "" {
		return Reservation{}, ErrInvalidInput
	}
	code, err := petcode.Normalize(in.PetCode)
	if err != nil {
		return Reservation{}, ErrInvalidInput
	}
	if in.AmountCents <= 0 {
		return Reservation{}, ErrInvalidInput
	}

	p, err := s.registry.GetByPetCode(ctx, code)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return Reservation{}, ErrNotFound
		}
		return Reservation{}, err
	}
	switch {
	case p.OwnerUserID == buyerUserID:
		return Reservation{}, ErrPetNotAvailable
	case p.CurrentStatus == registry.StatusReserved || p.ActiveWorkflowID != "":
		// otro workflow ya la tiene: mismo error que pierde el CAS
		s.metrics.IncReservationConflicts()
		return Reservation{}, registry.ErrAlreadyReserved
	case p.CurrentStatus != registry.StatusOwned:
		return Reservation{}, ErrPetNotAvailable
	}

	id := uuid.NewString()
	if err := s.registry.ClaimWorkflow(ctx, code, id); err != nil {
		if errors.Is(err, registry.ErrAlreadyReserved) {
			s.metrics.IncReservationConflicts()
		}
		return Reservation{}, err
	}

	now := s.now()
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	r := Reservation{
		ID:              id,
		PetCode:         code,
		BuyerUserID:     buyerUserID,
		StoreID:         strings.TrimSpace(in.StoreID),
		Status:          StatusPending,
		ReservationCode: newReservationCode(),
		AmountCents:     in.AmountCents,
		Currency:        currency,
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, r); err != nil {
		// soltamos el claim para no dejar la mascota bloqueada
		_ = s.registry.ReleaseWorkflow(ctx, code, id)
		return Reservation{}, err
	}

	s.metrics.IncReservationsCreated()
	s.record(ctx, r, history.EventTypeReservationCreated, buyerUserID, "user", map[string]string{
		"reservation_code": r.ReservationCode,
	})
	s.notify(ctx, r.BuyerUserID, "reservation_created", r)

	return r, nil
}

// Decide aprueba o rechaza una reserva pendiente (acción de tienda).
func (s *Service) Decide(ctx context.Context, id, managerUserID string, approve bool, notes string) (Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Reservation{}, err
	}

	to := StatusApproved
	if !approve {
		to = StatusRejected
	}
	if !CanTransition(r.Status, to) {
		return Reservation{}, ErrInvalidTransition
	}

	from := r.Status
	r.Status = to
	if strings.TrimSpace(notes) != "" {
		r.Notes = strings.TrimSpace(notes)
	}
	r.UpdatedAt = s.now()

	if err := s.repo.UpdateIf(ctx, r, from); err != nil {
		return Reservation{}, err
	}

	if to == StatusRejected {
		_ = s.registry.ReleaseWorkflow(ctx, r.PetCode, r.ID)
	}

	s.metrics.IncTransition("reservation", string(to))
	s.record(ctx, r, history.EventTypeReservationDecided, managerUserID, "manager", map[string]string{
		"status": string(to),
	})
	s.notify(ctx, r.BuyerUserID, "reservation_"+string(to), r)

	return r, nil
}

// MarkGoingToBuy: decisión explícita del comprador de seguir adelante.
// El engine jamás se auto-transiciona por timers.
func (s *Service) MarkGoingToBuy(ctx context.Context, id, buyerUserID string) (Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if r.BuyerUserID != buyerUserID {
		return Reservation{}, ErrForbidden
	}
	if !CanTransition(r.Status, StatusGoingToBuy) {
		return Reservation{}, ErrInvalidTransition
	}

	from := r.Status
	r.Status = StatusGoingToBuy
	r.UpdatedAt = s.now()
	if err := s.repo.UpdateIf(ctx, r, from); err != nil {
		return Reservation{}, err
	}

	s.metrics.IncTransition("reservation", string(StatusGoingToBuy))
	s.record(ctx, r, history.EventTypeStatusAdvanced, buyerUserID, "user", map[string]string{
		"status": string(StatusGoingToBuy),
	})
	return r, nil
}

// Cancel: iniciada por el usuario (o la tienda), nunca por timeout.
// Desde paid en adelante no se puede: eso es un flujo de reversa aparte.
func (s *Service) Cancel(ctx context.Context, id, actorUserID string, isManager bool) (Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if !isManager && r.BuyerUserID != actorUserID {
		return Reservation{}, ErrForbidden
	}
	if !IsCancellable(r.Status) {
		return Reservation{}, ErrInvalidTransition
	}

	from := r.Status
	r.Status = StatusCancelled
	r.UpdatedAt = s.now()
	if err := s.repo.UpdateIf(ctx, r, from); err != nil {
		return Reservation{}, err
	}

	_ = s.registry.ReleaseWorkflow(ctx, r.PetCode, r.ID)

	s.metrics.IncTransition("reservation", string(StatusCancelled))
	s.record(ctx, r, history.EventTypeReservationCancelled, actorUserID, roleOf(isManager), nil)
	s.notify(ctx, r.BuyerUserID, "reservation_cancelled", r)

	return r, nil
}

// CreatePaymentOrder abre la orden en la pasarela y mueve la reserva a
// payment_pending. Reintentable: en payment_pending vuelve a emitir
// orden sin cambiar de estado.
func (s *Service) CreatePaymentOrder(ctx context.Context, id, buyerUserID string) (Reservation, payments.Order, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Reservation{}, payments.Order{}, err
	}
	if r.BuyerUserID != buyerUserID {
		return Reservation{}, payments.Order{}, ErrForbidden
	}
	if r.Status != StatusGoingToBuy && r.Status != StatusPaymentPending {
		return Reservation{}, payments.Order{}, ErrInvalidTransition
	}

	order, err := s.gateway.CreateOrder(ctx, r.AmountCents, r.Currency, r.ID)
	if err != nil {
		return Reservation{}, payments.Order{}, err
	}

	from := r.Status
	r.Status = StatusPaymentPending
	r.PaymentRef = order.OrderID
	r.UpdatedAt = s.now()
	if err := s.repo.UpdateIf(ctx, r, from); err != nil {
		return Reservation{}, payments.Order{}, err
	}

	if from != StatusPaymentPending {
		s.metrics.IncTransition("reservation", string(StatusPaymentPending))
	}
	return r, order, nil
}

// VerifyPayment: la verificación de la pasarela es la ÚNICA señal de
// éxito. Mientras esperamos la red no se sostiene ningún lock: la
// intención quedó reservada por el status payment_pending y recién el
// update condicional aplica paid.
func (s *Service) VerifyPayment(ctx context.Context, id, buyerUserID, paymentID, signature string) (Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if r.BuyerUserID != buyerUserID {
		return Reservation{}, ErrForbidden
	}
	if r.Status != StatusPaymentPending {
		return Reservation{}, ErrInvalidTransition
	}

	if err := s.gateway.Verify(ctx, r.PaymentRef, paymentID, signature); err != nil {
		// la reserva queda en payment_pending; el usuario puede reintentar
		s.metrics.IncPaymentVerification(false)
		return Reservation{}, err
	}
	s.metrics.IncPaymentVerification(true)

	from := r.Status
	r.Status = StatusPaid
	r.UpdatedAt = s.now()
	if err := s.repo.UpdateIf(ctx, r, from); err != nil {
		return Reservation{}, err
	}

	s.metrics.IncTransition("reservation", string(StatusPaid))
	s.record(ctx, r, history.EventTypePaymentConfirmed, buyerUserID, "user", map[string]string{
		"payment_id": paymentID,
		"order_id":   r.PaymentRef,
	})
	s.notify(ctx, r.BuyerUserID, "reservation_paid", r)

	return r, nil
}

// Advance mueve la cadena manager-driven paid → ready_pickup → delivered.
// Secuencial y sin saltos: cada paso exige el anterior.
func (s *Service) Advance(ctx context.Context, id, managerUserID string, to Status, notes string) (Reservation, error) {
	if to != StatusReadyPickup && to != StatusDelivered {
		return Reservation{}, ErrInvalidTransition
	}

	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if !CanTransition(r.Status, to) {
		return Reservation{}, ErrInvalidTransition
	}

	from := r.Status
	r.Status = to
	if strings.TrimSpace(notes) != "" {
		r.Notes = strings.TrimSpace(notes)
	}
	r.UpdatedAt = s.now()
	if err := s.repo.UpdateIf(ctx, r, from); err != nil {
		return Reservation{}, err
	}

	s.metrics.IncTransition("reservation", string(to))
	s.record(ctx, r, history.EventTypeStatusAdvanced, managerUserID, "manager", map[string]string{
		"status": string(to),
	})
	s.notify(ctx, r.BuyerUserID, "reservation_"+string(to), r)

	return r, nil
}

// Complete cierra la reserva: delivered → at_owner con el traspaso de
// propiedad en el mismo paso lógico. Si el transfer falla, la reserva
// se queda en delivered y el paso es reintentable (el transfer es
// idempotente por (petCode, reservationID)).
func (s *Service) Complete(ctx context.Context, id, managerUserID string) (Reservation, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if !CanTransition(r.Status, StatusAtOwner) {
		return Reservation{}, ErrInvalidTransition
	}

	_, err = s.transfer.Transfer(ctx, transfer.Input{
		PetCode:         r.PetCode,
		NewOwnerUserID:  r.BuyerUserID,
		SourceWorkflow:  transfer.WorkflowPurchase,
		TxID:            r.ID,
		PerformedBy:     managerUserID,
		PerformedByRole: "manager",
	})
	if err != nil {
		return Reservation{}, err
	}

	from := r.Status
	r.Status = StatusAtOwner
	r.UpdatedAt = s.now()
	if err := s.repo.UpdateIf(ctx, r, from); err != nil {
		return Reservation{}, err
	}

	s.metrics.IncTransition("reservation", string(StatusAtOwner))
	s.metrics.IncOwnershipTransfers()
	s.notify(ctx, r.BuyerUserID, "reservation_completed", r)

	return r, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Reservation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Reservation{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByBuyer(ctx context.Context, buyerUserID string) ([]Reservation, error) {
	return s.repo.ListByBuyer(ctx, buyerUserID)
}

func (s *Service) ListByStore(ctx context.Context, storeID string) ([]Reservation, error) {
	return s.repo.ListByStore(ctx, storeID)
}

func (s *Service) record(ctx context.Context, r Reservation, t history.EventType, by, role string, meta map[string]string) {
	if meta == nil {
		meta = map[string]string{}
	}
	meta["reservation_id"] = r.ID
	_, _ = s.history.Record(ctx, history.RecordInput{
		PetCode:         r.PetCode,
		Type:            t,
		PerformedBy:     by,
		PerformedByRole: role,
		Metadata:        meta,
	})
}

func (s *Service) notify(ctx context.Context, userID, event string, r Reservation) {
	if s.notifier == nil {
		return
	}
	// fire-and-forget: una notificación caída no frena el workflow
	_ = s.notifier.Notify(ctx, userID, event, map[string]string{
		"reservation_id": r.ID,
		"pet_code":       r.PetCode,
	})
}

func roleOf(isManager bool) string {
	if isManager {
		return "manager"
	}
	return "user"
}

func newReservationCode() string {
	return "RSV-" + strings.ToUpper(uuid.NewString()[:8])
}
