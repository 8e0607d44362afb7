package adoptions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pet-registry/internal/domain/history"
	"pet-registry/internal/domain/registry"
	"pet-registry/internal/domain/transfer"
	"pet-registry/internal/ports/otp"
	"pet-registry/internal/ports/payments"
)

// -------------------------
// Fakes (in-memory)
// -------------------------

type testRepo struct {
	mu   sync.Mutex
	byID map[string]Application
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Application{}}
}

func (r *testRepo) Create(ctx context.Context, a Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[a.ID] = a
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return Application{}, ErrNotFound
	}
	return a, nil
}

func (r *testRepo) ListByApplicant(ctx context.Context, applicantUserID string) ([]Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Application, 0)
	for _, a := range r.byID {
		if a.ApplicantUserID == applicantUserID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *testRepo) ListPending(ctx context.Context) ([]Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Application, 0)
	for _, a := range r.byID {
		if a.Status == StatusPending {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *testRepo) UpdateIf(ctx context.Context, a Application, expected Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[a.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Status != expected {
		return ErrStaleState
	}
	r.byID[a.ID] = a
	return nil
}

type testRegistry struct {
	mu     sync.Mutex
	byCode map[string]registry.PetIdentity
}

func newTestRegistry(pets ...registry.PetIdentity) *testRegistry {
	r := &testRegistry{byCode: map[string]registry.PetIdentity{}}
	for _, p := range pets {
		r.byCode[p.PetCode] = p
	}
	return r
}

func (r *testRegistry) Create(ctx context.Context, p registry.PetIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCode[p.PetCode] = p
	return nil
}

func (r *testRegistry) Update(ctx context.Context, p registry.PetIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCode[p.PetCode] = p
	return nil
}

func (r *testRegistry) GetByPetCode(ctx context.Context, petCode string) (registry.PetIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byCode[petCode]
	if !ok {
		return registry.PetIdentity{}, registry.ErrNotFound
	}
	return p, nil
}

func (r *testRegistry) GetByCanonicalID(ctx context.Context, id string) (registry.PetIdentity, error) {
	return registry.PetIdentity{}, registry.ErrNotFound
}

func (r *testRegistry) ListByOwner(ctx context.Context, ownerUserID string) ([]registry.PetIdentity, error) {
	return nil, nil
}

func (r *testRegistry) ClaimWorkflow(ctx context.Context, petCode, workflowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byCode[petCode]
	if !ok {
		return registry.ErrNotFound
	}
	if p.ActiveWorkflowID != "" && p.ActiveWorkflowID != workflowID {
		return registry.ErrAlreadyReserved
	}
	p.ActiveWorkflowID = workflowID
	r.byCode[petCode] = p
	return nil
}

func (r *testRegistry) ReleaseWorkflow(ctx context.Context, petCode, workflowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byCode[petCode]
	if !ok {
		return registry.ErrNotFound
	}
	if p.ActiveWorkflowID == workflowID {
		p.ActiveWorkflowID = ""
		r.byCode[petCode] = p
	}
	return nil
}

func (r *testRegistry) Quarantine(ctx context.Context, q registry.QuarantinedRecord) error {
	return nil
}

func (r *testRegistry) ListQuarantined(ctx context.Context) ([]registry.QuarantinedRecord, error) {
	return nil, nil
}

type testHistoryRepo struct {
	mu     sync.Mutex
	events []history.Event
}

func (h *testHistoryRepo) Append(ctx context.Context, e history.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return nil
}

func (h *testHistoryRepo) ListByPet(ctx context.Context, petCode string, limit int) ([]history.Event, error) {
	return nil, nil
}

type testTransferRepo struct {
	mu      sync.Mutex
	applied []transfer.Input
	byTx    map[string]history.Event

	// failWith fuerza el fallo del próximo Apply
	failWith error

	registry *testRegistry
}

func newTestTransferRepo(reg *testRegistry) *testTransferRepo {
	return &testTransferRepo{byTx: map[string]history.Event{}, registry: reg}
}

func (t *testTransferRepo) Apply(ctx context.Context, in transfer.Input, event history.Event) (bool, history.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failWith != nil {
		return false, history.Event{}, t.failWith
	}
	if prior, ok := t.byTx[in.TxID]; ok {
		return false, prior, nil
	}
	t.applied = append(t.applied, in)
	t.byTx[in.TxID] = event

	if t.registry != nil {
		p, _ := t.registry.GetByPetCode(ctx, in.PetCode)
		p.OwnerUserID = in.NewOwnerUserID
		p.CurrentStatus = in.NewStatus()
		p.ActiveWorkflowID = ""
		_ = t.registry.Update(ctx, p)
	}
	return true, history.Event{}, nil
}

type testGateway struct{}

func (testGateway) CreateOrder(ctx context.Context, amountCents int64, currency, reference string) (payments.Order, error) {
	return payments.Order{OrderID: "order-test", AmountCents: amountCents, Currency: currency}, nil
}

func (testGateway) Verify(ctx context.Context, orderID, paymentID, signature string) error {
	if signature != "sig-ok" {
		return payments.ErrVerificationFailed
	}
	return nil
}

type testOTPStore struct {
	mu    sync.Mutex
	codes map[string]string
}

func newTestOTPStore() *testOTPStore {
	return &testOTPStore{codes: map[string]string{}}
}

func (s *testOTPStore) Issue(ctx context.Context, key, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[key] = code
	return nil
}

func (s *testOTPStore) Verify(ctx context.Context, key, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.codes[key]
	if !ok {
		return otp.ErrExpired
	}
	if stored != code {
		return otp.ErrMismatch
	}
	delete(s.codes, key)
	return nil
}

// testNotifier captura el último OTP enviado out-of-band.
type testNotifier struct {
	mu      sync.Mutex
	lastOTP string
	events  []string
}

func (n *testNotifier) Notify(ctx context.Context, userID, event string, meta map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	if code, ok := meta["otp"]; ok {
		n.lastOTP = code
	}
	return nil
}

// -------------------------
// Helpers
// -------------------------

func adoptablePet(code string) registry.PetIdentity {
	return registry.PetIdentity{
		PetCode:       code,
		CanonicalID:   "cid-" + code,
		CurrentStatus: registry.StatusInTemporaryCare,
	}
}

func newTestService(reg *testRegistry) (*Service, *testRepo, *testTransferRepo, *testNotifier) {
	repo := newTestRepo()
	trRepo := newTestTransferRepo(reg)
	notifier := &testNotifier{}
	svc := NewService(Deps{
		Repo:     repo,
		Registry: reg,
		Transfer: transfer.NewService(trRepo),
		History:  history.NewService(&testHistoryRepo{}),
		Gateway:  testGateway{},
		OTP:      newTestOTPStore(),
		Notifier: notifier,
	})
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc, repo, trRepo, notifier
}

func mustApply(t *testing.T, svc *Service, applicant, code string) Application {
	t.Helper()
	a, err := svc.Apply(context.Background(), applicant, ApplyInput{
		PetCode: code,
		Data:    ApplicationData{HomeType: "house", HoursAlone: 4},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	return a
}

func advanceToHandover(t *testing.T, svc *Service, a Application) {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.Approve(ctx, a.ID, "mgr-1", 25000); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, _, err := svc.CreatePaymentOrder(ctx, a.ID, a.ApplicantUserID); err != nil {
		t.Fatalf("payment order: %v", err)
	}
	if _, err := svc.VerifyPayment(ctx, a.ID, a.ApplicantUserID, "pay-1", "sig-ok"); err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if _, err := svc.GenerateCertificate(ctx, a.ID, "mgr-1"); err != nil {
		t.Fatalf("certificate: %v", err)
	}
	if _, err := svc.ScheduleHandover(ctx, a.ID, "mgr-1", time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("schedule handover: %v", err)
	}
}

// -------------------------
// Tests
// -------------------------

func TestService_Apply_OnlyTemporaryCarePets(t *testing.T) {
	reg := newTestRegistry(
		adoptablePet("RES12345"),
		registry.PetIdentity{PetCode: "OWN12345", CurrentStatus: registry.StatusOwned, OwnerUserID: "u-1"},
	)
	svc, _, _, _ := newTestService(reg)

	if _, err := svc.Apply(context.Background(), "adopter-1", ApplyInput{PetCode: "OWN12345", Data: ApplicationData{HomeType: "flat"}}); !errors.Is(err, ErrPetNotAvailable) {
		t.Fatalf("expected ErrPetNotAvailable, got %v", err)
	}

	a := mustApply(t, svc, "adopter-1", "RES12345")
	if a.Status != StatusPending {
		t.Fatalf("expected pending, got %s", a.Status)
	}

	// la solicitud activa bloquea cualquier otro workflow sobre la mascota
	if _, err := svc.Apply(context.Background(), "adopter-2", ApplyInput{PetCode: "RES12345", Data: ApplicationData{HomeType: "flat"}}); !errors.Is(err, registry.ErrAlreadyReserved) {
		t.Fatalf("expected ErrAlreadyReserved, got %v", err)
	}
}

func TestService_Reject_RequiresReasonAndIsTerminal(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(adoptablePet("RES12345"))
	svc, _, _, _ := newTestService(reg)

	a := mustApply(t, svc, "adopter-1", "RES12345")

	if _, err := svc.Reject(ctx, a.ID, "mgr-1", "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without reason, got %v", err)
	}

	got, err := svc.Reject(ctx, a.ID, "mgr-1", "hogar no apto")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != StatusRejected || got.RejectionReason != "hogar no apto" {
		t.Fatalf("unexpected rejected application: %+v", got)
	}

	// terminal: ninguna transición posterior
	if _, err := svc.Approve(ctx, a.ID, "mgr-1", 100); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition after reject, got %v", err)
	}
	if _, _, err := svc.CreatePaymentOrder(ctx, a.ID, "adopter-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for payment after reject, got %v", err)
	}

	// la mascota queda libre para una solicitud nueva de otro adoptante
	if _, err := svc.Apply(ctx, "adopter-2", ApplyInput{PetCode: "RES12345", Data: ApplicationData{HomeType: "house"}}); err != nil {
		t.Fatalf("new application after reject: %v", err)
	}
}

func TestService_Approve_LandsInPaymentPending(t *testing.T) {
	reg := newTestRegistry(adoptablePet("RES12345"))
	svc, _, _, _ := newTestService(reg)
	a := mustApply(t, svc, "adopter-1", "RES12345")

	// con la tasa fijada no hay parada intermedia en approved
	got, err := svc.Approve(context.Background(), a.ID, "mgr-1", 25000)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != StatusPaymentPending || got.FeeCents != 25000 {
		t.Fatalf("expected payment_pending with fee, got %s / %d", got.Status, got.FeeCents)
	}
}

func TestService_Approve_RequiresFee(t *testing.T) {
	reg := newTestRegistry(adoptablePet("RES12345"))
	svc, _, _, _ := newTestService(reg)
	a := mustApply(t, svc, "adopter-1", "RES12345")

	if _, err := svc.Approve(context.Background(), a.ID, "mgr-1", 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero fee, got %v", err)
	}
}

func TestService_ConfirmHandover_OTPGatesTransfer(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(adoptablePet("RES12345"))
	svc, repo, trRepo, notifier := newTestService(reg)

	a := mustApply(t, svc, "adopter-1", "RES12345")
	advanceToHandover(t, svc, a)

	if notifier.lastOTP == "" {
		t.Fatal("expected OTP delivered via notifier")
	}

	// código equivocado: nada se entrega, nada se transfiere
	if _, err := svc.ConfirmHandover(ctx, a.ID, "mgr-1", "000000x"); !errors.Is(err, ErrBadOTP) {
		t.Fatalf("expected ErrBadOTP, got %v", err)
	}
	if len(trRepo.applied) != 0 {
		t.Fatalf("bad OTP must not transfer, got %d transfers", len(trRepo.applied))
	}

	got, err := svc.ConfirmHandover(ctx, a.ID, "mgr-1", notifier.lastOTP)
	if err != nil {
		t.Fatalf("confirm handover: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Handover.Status != HandoverStatusDone {
		t.Fatalf("expected handover done, got %s", got.Handover.Status)
	}

	if len(trRepo.applied) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(trRepo.applied))
	}
	in := trRepo.applied[0]
	if in.SourceWorkflow != transfer.WorkflowAdoption || in.NewOwnerUserID != "adopter-1" || in.TxID != a.ID {
		t.Fatalf("unexpected transfer input: %+v", in)
	}

	p, _ := reg.GetByPetCode(ctx, "RES12345")
	if p.OwnerUserID != "adopter-1" || p.CurrentStatus != registry.StatusAdopted {
		t.Fatalf("expected adopted pet, got owner=%s status=%s", p.OwnerUserID, p.CurrentStatus)
	}

	// el OTP correcto solo sirve una vez
	stored, _ := repo.GetByID(ctx, a.ID)
	if stored.Status != StatusCompleted {
		t.Fatalf("expected stored completed, got %s", stored.Status)
	}
	if _, err := svc.ConfirmHandover(ctx, a.ID, "mgr-1", notifier.lastOTP); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on completed, got %v", err)
	}
}

func TestService_ConfirmHandover_TransferFailureAllowsReschedule(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(adoptablePet("RES12345"))
	svc, repo, trRepo, notifier := newTestService(reg)

	a := mustApply(t, svc, "adopter-1", "RES12345")
	advanceToHandover(t, svc, a)
	first := notifier.lastOTP

	// el traspaso falla con el OTP ya consumido por Verify
	trRepo.failWith = errors.New("storage down")
	if _, err := svc.ConfirmHandover(ctx, a.ID, "mgr-1", first); err == nil {
		t.Fatal("expected transfer failure")
	}
	stored, _ := repo.GetByID(ctx, a.ID)
	if stored.Status != StatusHandoverScheduled {
		t.Fatalf("failed transfer must leave handover_scheduled, got %s", stored.Status)
	}

	// el mismo código ya no sirve aunque el traspaso vuelva a andar
	trRepo.failWith = nil
	if _, err := svc.ConfirmHandover(ctx, a.ID, "mgr-1", first); !errors.Is(err, ErrBadOTP) {
		t.Fatalf("expected ErrBadOTP with consumed code, got %v", err)
	}

	// re-agendar emite un código fresco y destraba la solicitud
	if _, err := svc.ScheduleHandover(ctx, a.ID, "mgr-1", time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("re-schedule: %v", err)
	}
	if notifier.lastOTP == "" || notifier.lastOTP == first {
		t.Fatalf("expected fresh OTP, got %q", notifier.lastOTP)
	}

	got, err := svc.ConfirmHandover(ctx, a.ID, "mgr-1", notifier.lastOTP)
	if err != nil {
		t.Fatalf("confirm after re-schedule: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if len(trRepo.applied) != 1 {
		t.Fatalf("expected exactly 1 transfer, got %d", len(trRepo.applied))
	}
}

func TestService_NoSkippingStates(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(adoptablePet("RES12345"))
	svc, _, _, _ := newTestService(reg)
	a := mustApply(t, svc, "adopter-1", "RES12345")

	// pending no salta a certificado ni a handover
	if _, err := svc.GenerateCertificate(ctx, a.ID, "mgr-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for certificate, got %v", err)
	}
	if _, err := svc.ScheduleHandover(ctx, a.ID, "mgr-1", time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for handover, got %v", err)
	}
	if _, err := svc.ConfirmHandover(ctx, a.ID, "mgr-1", "123456"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for confirm, got %v", err)
	}
	// el pago exige aprobación previa
	if _, _, err := svc.CreatePaymentOrder(ctx, a.ID, "adopter-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for payment, got %v", err)
	}
}

func TestService_VerifyPayment_FailureLeavesPending(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(adoptablePet("RES12345"))
	svc, repo, _, _ := newTestService(reg)

	a := mustApply(t, svc, "adopter-1", "RES12345")
	if _, err := svc.Approve(ctx, a.ID, "mgr-1", 25000); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, _, err := svc.CreatePaymentOrder(ctx, a.ID, "adopter-1"); err != nil {
		t.Fatalf("payment order: %v", err)
	}

	if _, err := svc.VerifyPayment(ctx, a.ID, "adopter-1", "pay-1", "bad"); !errors.Is(err, payments.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
	got, _ := repo.GetByID(ctx, a.ID)
	if got.Status != StatusPaymentPending || got.PaymentStatus != PaymentStatusPending {
		t.Fatalf("failed verify must leave payment_pending, got %s/%s", got.Status, got.PaymentStatus)
	}
}
