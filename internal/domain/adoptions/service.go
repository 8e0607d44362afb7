package adoptions

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"pet-registry/internal/domain/history"
	"pet-registry/internal/domain/petcode"
	"pet-registry/internal/domain/registry"
	"pet-registry/internal/domain/transfer"
	"pet-registry/internal/platform/metrics"
	"pet-registry/internal/ports/notify"
	"pet-registry/internal/ports/otp"
	"pet-registry/internal/ports/payments"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPetNotAvailable: la mascota no está en adopción (solo las que
	// están en cuidado temporal se pueden solicitar).
	ErrPetNotAvailable = errors.New("pet not available for adoption")

	// ErrBadOTP: el código de handover no coincide o expiró.
	// Sin OTP válido no se entrega ninguna mascota.
	ErrBadOTP = errors.New("invalid handover code")
)

const (
	defaultCurrency = "INR"

	// otpTTL: ventana para presentarse al retiro con el código.
	otpTTL = 72 * time.Hour
)

type Deps struct {
	Repo     Repository
	Registry registry.Repository
	Transfer *transfer.Service
	History  *history.Service
	Gateway  payments.Gateway
	OTP      otp.Store
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
}

type Service struct {
	repo     Repository
	registry registry.Repository
	transfer *transfer.Service
	history  *history.Service
	gateway  payments.Gateway
	otp      otp.Store
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
		otp:      d.OTP,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		now:      time.Now,
	}
}

type ApplyInput struct {
	PetCode   string
	Data      ApplicationData
	Documents []string
}

// Apply presenta la solicitud. Igual que en reservas, la exclusión
// mutua con cualquier otro workflow activo es el claim atómico del
// registry, no un check-then-write.
func (s *Service) Apply(ctx context.Context, applicantUserID string, in ApplyInput) (Application, error) {
	applicantUserID = strings.TrimSpace(applicantUserID)
	if applicantUserID == "" {
		return Application{}, ErrInvalidInput
	}
	code, err := petcode.Normalize(in.PetCode)
	if err != nil {
		return Application{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Data.HomeType) == "" {
		return Application{}, ErrInvalidInput
	}

	p, err := s.registry.GetByPetCode(ctx, code)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return Application{}, ErrNotFound
		}
		return Application{}, err
	}
	if p.CurrentStatus != registry.StatusInTemporaryCare {
		return Application{}, ErrPetNotAvailable
	}

	id := uuid.NewString()
	if err := s.registry.ClaimWorkflow(ctx, code, id); err != nil {
		return Application{}, err
	}

	now := s.now()
	a := Application{
		ID:              id,
		PetCode:         code,
		ApplicantUserID: applicantUserID,
		Status:          StatusPending,
		PaymentStatus:   PaymentStatusNone,
		Data:            in.Data,
		Documents:       in.Documents,
		Currency:        defaultCurrency,
		Handover:        Handover{Status: HandoverStatusNone},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		_ = s.registry.ReleaseWorkflow(ctx, code, id)
		return Application{}, err
	}

	s.metrics.IncAdoptionsCreated()
	s.record(ctx, a, history.EventTypeAdoptionApplied, applicantUserID, "user", nil)
	s.notify(ctx, a.ApplicantUserID, "adoption_applied", a, nil)

	return a, nil
}

// Approve fija la tasa y aprueba. Con la tasa ya conocida la solicitud
// queda directo en payment_pending: no hay "approved sin tasa".
func (s *Service) Approve(ctx context.Context, id, managerUserID string, feeCents int64) (Application, error) {
	if feeCents <= 0 {
		return Application{}, ErrInvalidInput
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if !CanTransition(a.Status, StatusApproved) {
		return Application{}, ErrInvalidTransition
	}

	from := a.Status
	a.Status = StatusPaymentPending
	a.FeeCents = feeCents
	a.UpdatedAt = s.now()
	if err := s.repo.UpdateIf(ctx, a, from); err != nil {
		return Application{}, err
	}

	s.metrics.IncTransition("adoption", string(StatusApproved))
	s.metrics.IncTransition("adoption", string(StatusPaymentPending))
	s.record(ctx, a, history.EventTypeAdoptionDecided, managerUserID, "manager", map[string]string{
		"status": string(StatusApproved),
	})
	s.notify(ctx, a.ApplicantUserID, "adoption_approved", a, nil)

	return a, nil
}

// Reject es terminal y exige motivo. La solicitud rechazada no admite
// más transiciones: para reintentar se presenta una solicitud nueva.
func (s *Service) Reject(ctx context.Context, id, managerUserID, reason string) (Application, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Application{}, ErrInvalidInput
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if !CanTransition(a.Status, StatusRejected) {
		return Application{}, ErrInvalidTransition
	}

	from := a.Status
	a.Status = StatusRejected
	a.RejectionReason = reason
	a.UpdatedAt = s.now()
	if err := s.repo.UpdateIf(ctx, a, from); err != nil {
		return Application{}, err
	}

	_ = s.registry.ReleaseWorkflow(ctx, a.PetCode, a.ID)

	s.metrics.IncTransition("adoption", string(StatusRejected))
	s.record(ctx, a, history.EventTypeAdoptionDecided, managerUserID, "manager", map[string]string{
		"status": string(StatusRejected),
		"reason": reason,
	})
	s.notify(ctx, a.ApplicantUserID, "adoption_rejected", a, map[string]string{"reason": reason})

	return a, nil
}

// CreatePaymentOrder: mismo contrato de pasarela que reservas.
// Reintentable desde payment_pending sin cambiar de estado.
func (s *Service) CreatePaymentOrder(ctx context.Context, id, applicantUserID string) (Application, payments.Order, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Application{}, payments.Order{}, err
	}
	if a.ApplicantUserID != applicantUserID {
		return Application{}, payments.Order{}, ErrForbidden
	}
	if a.Status != StatusApproved && a.Status != StatusPaymentPending {
		return Application{}, payments.Order{}, ErrInvalidTransition
	}

	order, err := s.gateway.CreateOrder(ctx, a.FeeCents, a.Currency, a.ID)
	if err != nil {
		return Application{}, payments.Order{}, err
	}

	from := a.Status
	a.Status = StatusPaymentPending
	a.PaymentStatus = PaymentStatusPending
	a.PaymentRef = order.OrderID
	a.UpdatedAt = s.now()
	if err := s.repo.UpdateIf(ctx, a, from); err != nil {
		return Application{}, payments.Order{}, err
	}

	if from != StatusPaymentPending {
		s.metrics.IncTransition("adoption", string(StatusPaymentPending))
	}
	return a, order, nil
}

// VerifyPayment: verify de la pasarela como única señal confiable.
// Falla => la solicitud queda en payment_pending, reintentable.
func (s *Service) VerifyPayment(ctx context.Context, id, applicantUserID, paymentID, signature string) (Application, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if a.ApplicantUserID != applicantUserID {
		return Application{}, ErrForbidden
	}
	if a.Status != StatusPaymentPending {
		return Application{}, ErrInvalidTransition
	}

	if err := s.gateway.Verify(ctx, a.PaymentRef, paymentID, signature); err != nil {
		s.metrics.IncPaymentVerification(false)
		return Application{}, err
	}
	s.metrics.IncPaymentVerification(true)

	from := a.Status
	a.Status = StatusPaid
	a.PaymentStatus = PaymentStatusPaid
	a.UpdatedAt = s.now()
	if err := s.repo.UpdateIf(ctx, a, from); err != nil {
		return Application{}, err
	}

	s.metrics.IncTransition("adoption", string(StatusPaid))
	s.record(ctx, a, history.EventTypePaymentConfirmed, applicantUserID, "user", map[string]string{
		"payment_id": paymentID,
		"order_id":   a.PaymentRef,
	})
	return a, nil
}

// GenerateCertificate emite el certificado de adopción (paso manager).
func (s *Service) GenerateCertificate(ctx context.Context, id, managerUserID string) (Application, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if !CanTransition(a.Status, StatusCertificateGenerated) {
		return Application{}, ErrInvalidTransition
	}

	now := s.now()
	from := a.Status
	a.Status = StatusCertificateGenerated
	a.Certificate = &Certificate{
		Number:   "ADC-" + strings.ToUpper(uuid.NewString()[:8]),
		IssuedAt: now,
	}
	a.UpdatedAt = now
	if err := s.repo.UpdateIf(ctx, a, from); err != nil {
		return Application{}, err
	}

	s.metrics.IncTransition("adoption", string(StatusCertificateGenerated))
	s.record(ctx, a, history.EventTypeCertificateIssued, managerUserID, "manager", map[string]string{
		"certificate": a.Certificate.Number,
	})
	return a, nil
}

// ScheduleHandover agenda el retiro y emite el OTP out-of-band al
// solicitante. El código nunca viaja en la respuesta HTTP.
func (s *Service) ScheduleHandover(ctx context.Context, id, managerUserID string, at time.Time) (Application, error) {
	if at.IsZero() {
		return Application{}, ErrInvalidInput
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if !CanTransition(a.Status, StatusHandoverScheduled) {
		return Application{}, ErrInvalidTransition
	}

	code, err := newOTP()
	if err != nil {
		return Application{}, err
	}
	if err := s.otp.Issue(ctx, a.ID, code, otpTTL); err != nil {
		return Application{}, err
	}

	from := a.Status
	a.Status = StatusHandoverScheduled
	a.Handover = Handover{Status: HandoverStatusScheduled, ScheduledAt: &at}
	a.UpdatedAt = s.now()
	if err := s.repo.UpdateIf(ctx, a, from); err != nil {
		return Application{}, err
	}

	s.metrics.IncTransition("adoption", string(StatusHandoverScheduled))
	s.record(ctx, a, history.EventTypeHandoverScheduled, managerUserID, "manager", map[string]string{
		"scheduled_at": at.UTC().Format(time.RFC3339),
	})
	// el OTP viaja solo por el canal de notificación del solicitante
	s.notify(ctx, a.ApplicantUserID, "adoption_handover_otp", a, map[string]string{"otp": code})

	return a, nil
}

// ConfirmHandover valida el OTP en el retiro físico y ejecuta el
// traspaso. Sin código válido no se entrega la mascota. El transfer es
// idempotente por (petCode, applicationID): si algo falla después, el
// reintento no duplica nada. Si falla el traspaso mismo, el OTP ya se
// consumió: se re-agenda el handover y sale un código nuevo.
func (s *Service) ConfirmHandover(ctx context.Context, id, managerUserID, code string) (Application, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if a.Status != StatusHandoverScheduled {
		return Application{}, ErrInvalidTransition
	}

	if err := s.otp.Verify(ctx, a.ID, strings.TrimSpace(code)); err != nil {
		return Application{}, ErrBadOTP
	}

	_, err = s.transfer.Transfer(ctx, transfer.Input{
		PetCode:         a.PetCode,
		NewOwnerUserID:  a.ApplicantUserID,
		SourceWorkflow:  transfer.WorkflowAdoption,
		TxID:            a.ID,
		PerformedBy:     managerUserID,
		PerformedByRole: "manager",
	})
	if err != nil {
		return Application{}, err
	}

	now := s.now()
	from := a.Status
	a.Status = StatusHandedOver
	a.Handover.Status = HandoverStatusDone
	a.UpdatedAt = now
	if err := s.repo.UpdateIf(ctx, a, from); err != nil {
		return Application{}, err
	}
	s.metrics.IncTransition("adoption", string(StatusHandedOver))
	s.metrics.IncOwnershipTransfers()

	// handed_over no se deja colgado: cerramos la solicitud acá mismo
	a.Status = StatusCompleted
	a.UpdatedAt = now
	if err := s.repo.UpdateIf(ctx, a, StatusHandedOver); err != nil {
		return Application{}, err
	}

	s.metrics.IncTransition("adoption", string(StatusCompleted))
	s.notify(ctx, a.ApplicantUserID, "adoption_completed", a, nil)

	return a, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Application, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Application{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByApplicant(ctx context.Context, applicantUserID string) ([]Application, error) {
	return s.repo.ListByApplicant(ctx, applicantUserID)
}

func (s *Service) ListPending(ctx context.Context) ([]Application, error) {
	return s.repo.ListPending(ctx)
}

func (s *Service) record(ctx context.Context, a Application, t history.EventType, by, role string, meta map[string]string) {
	if meta == nil {
		meta = map[string]string{}
	}
	meta["application_id"] = a.ID
	_, _ = s.history.Record(ctx, history.RecordInput{
		PetCode:         a.PetCode,
		Type:            t,
		PerformedBy:     by,
		PerformedByRole: role,
		Metadata:        meta,
	})
}

func (s *Service) notify(ctx context.Context, userID, event string, a Application, extra map[string]string) {
	if s.notifier == nil {
		return
	}
	meta := map[string]string{
		"application_id": a.ID,
		"pet_code":       a.PetCode,
	}
	for k, v := range extra {
		meta[k] = v
	}
	// fire-and-forget: una notificación caída no frena el workflow
	_ = s.notifier.Notify(ctx, userID, event, meta)
}

// newOTP genera 6 dígitos con crypto/rand.
func newOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
