package reservations

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pet-registry/internal/domain/history"
	"pet-registry/internal/domain/registry"
	"pet-registry/internal/domain/transfer"
	"pet-registry/internal/ports/payments"
)

// -------------------------
// Fakes (in-memory)
// -------------------------

type testRepo struct {
	mu   sync.Mutex
	byID map[string]Reservation
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Reservation{}}
}

func (r *testRepo) Create(ctx context.Context, res Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[res.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[res.ID] = res
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.byID[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return res, nil
}

func (r *testRepo) ListByBuyer(ctx context.Context, buyerUserID string) ([]Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reservation, 0)
	for _, res := range r.byID {
		if res.BuyerUserID == buyerUserID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *testRepo) ListByStore(ctx context.Context, storeID string) ([]Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reservation, 0)
	for _, res := range r.byID {
		if res.StoreID == storeID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *testRepo) UpdateIf(ctx context.Context, res Reservation, expected Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[res.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Status != expected {
		return ErrStaleState
	}
	r.byID[res.ID] = res
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
	if p.CurrentStatus == registry.StatusOwned {
		p.CurrentStatus = registry.StatusReserved
	}
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
	if p.ActiveWorkflowID != workflowID {
		return nil
	}
	p.ActiveWorkflowID = ""
	if p.CurrentStatus == registry.StatusReserved {
		p.CurrentStatus = registry.StatusOwned
	}
	r.byCode[petCode] = p
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
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]history.Event, 0)
	for _, e := range h.events {
		if e.PetCode == petCode {
			out = append(out, e)
		}
	}
	return out, nil
}

// testTransferRepo registra los traspasos aplicados; failWith permite
// simular una caída del transfer para probar el reintento.
type testTransferRepo struct {
	mu       sync.Mutex
	applied  []transfer.Input
	byTx     map[string]history.Event
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

// testGateway acepta cualquier orden y valida firma == "sig-ok".
type testGateway struct {
	orders  int
	failAll bool
}

func (g *testGateway) CreateOrder(ctx context.Context, amountCents int64, currency, reference string) (payments.Order, error) {
	g.orders++
	return payments.Order{OrderID: "order-test", Key: "k", AmountCents: amountCents, Currency: currency}, nil
}

func (g *testGateway) Verify(ctx context.Context, orderID, paymentID, signature string) error {
	if g.failAll || signature != "sig-ok" {
		return payments.ErrVerificationFailed
	}
	return nil
}

// -------------------------
// Helpers
// -------------------------

func ownedPet(code, owner string) registry.PetIdentity {
	return registry.PetIdentity{
		PetCode:       code,
		CanonicalID:   "cid-" + code,
		CurrentStatus: registry.StatusOwned,
		OwnerUserID:   owner,
	}
}

func newTestService(reg *testRegistry) (*Service, *testRepo, *testTransferRepo, *testGateway) {
	repo := newTestRepo()
	gw := &testGateway{}
	trRepo := newTestTransferRepo(reg)
	svc := NewService(Deps{
		Repo:     repo,
		Registry: reg,
		Transfer: transfer.NewService(trRepo),
		History:  history.NewService(&testHistoryRepo{}),
		Gateway:  gw,
	})
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc, repo, trRepo, gw
}

func mustCreate(t *testing.T, svc *Service, buyer, code string) Reservation {
	t.Helper()
	r, err := svc.Create(context.Background(), buyer, CreateInput{
		PetCode:     code,
		StoreID:     "store-1",
		AmountCents: 500000,
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	return r
}

// -------------------------
// Tests
// -------------------------

func TestService_Create_ConcurrentBuyers_ExactlyOneWins(t *testing.T) {
	reg := newTestRegistry(ownedPet("ABC12345", "store-owner"))
	svc, _, _, _ := newTestService(reg)

	const buyers = 8
	var wg sync.WaitGroup
	errs := make([]error, buyers)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), "buyer-"+string(rune('a'+i)), CreateInput{
				PetCode:     "ABC12345",
				StoreID:     "store-1",
				AmountCents: 100,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, registry.ErrAlreadyReserved):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", wins)
	}

	p, _ := reg.GetByPetCode(context.Background(), "ABC12345")
	if p.CurrentStatus != registry.StatusReserved {
		t.Fatalf("expected pet reserved after claim, got %s", p.CurrentStatus)
	}
}

func TestService_Create_Rejections(t *testing.T) {
	reg := newTestRegistry(
		ownedPet("ABC12345", "buyer-1"),
		registry.PetIdentity{PetCode: "DEF12345", CurrentStatus: registry.StatusSold, OwnerUserID: "someone"},
	)
	svc, _, _, _ := newTestService(reg)

	// comprar tu propia mascota no tiene sentido
	if _, err := svc.Create(context.Background(), "buyer-1", CreateInput{PetCode: "ABC12345", StoreID: "s", AmountCents: 1}); !errors.Is(err, ErrPetNotAvailable) {
		t.Fatalf("expected ErrPetNotAvailable for own pet, got %v", err)
	}
	// mascota ya vendida
	if _, err := svc.Create(context.Background(), "buyer-2", CreateInput{PetCode: "DEF12345", StoreID: "s", AmountCents: 1}); !errors.Is(err, ErrPetNotAvailable) {
		t.Fatalf("expected ErrPetNotAvailable for sold pet, got %v", err)
	}
	// petCode inválido
	if _, err := svc.Create(context.Background(), "buyer-2", CreateInput{PetCode: "nope", StoreID: "s", AmountCents: 1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	// monto inválido
	if _, err := svc.Create(context.Background(), "buyer-2", CreateInput{PetCode: "ABC12345", StoreID: "s", AmountCents: 0}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for amount, got %v", err)
	}
}

func TestService_Create_SecondBuyerSeesAlreadyReserved(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(ownedPet("ABC12345", "store-owner"))
	svc, _, _, _ := newTestService(reg)

	mustCreate(t, svc, "buyer-1", "ABC12345")

	// el que llega tarde ve el mismo error que el que pierde la carrera
	_, err := svc.Create(ctx, "buyer-2", CreateInput{PetCode: "ABC12345", StoreID: "s", AmountCents: 1})
	if !errors.Is(err, registry.ErrAlreadyReserved) {
		t.Fatalf("expected ErrAlreadyReserved, got %v", err)
	}
}

func TestService_FullFlow_EndsWithTransfer(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(ownedPet("ABC12345", "store-owner"))
	svc, _, trRepo, _ := newTestService(reg)

	r := mustCreate(t, svc, "buyer-1", "ABC12345")

	if _, err := svc.Decide(ctx, r.ID, "mgr-1", true, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.MarkGoingToBuy(ctx, r.ID, "buyer-1"); err != nil {
		t.Fatalf("going_to_buy: %v", err)
	}
	if _, _, err := svc.CreatePaymentOrder(ctx, r.ID, "buyer-1"); err != nil {
		t.Fatalf("payment order: %v", err)
	}
	if _, err := svc.VerifyPayment(ctx, r.ID, "buyer-1", "pay-1", "sig-ok"); err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if _, err := svc.Advance(ctx, r.ID, "mgr-1", StatusReadyPickup, ""); err != nil {
		t.Fatalf("ready_pickup: %v", err)
	}
	if _, err := svc.Advance(ctx, r.ID, "mgr-1", StatusDelivered, ""); err != nil {
		t.Fatalf("delivered: %v", err)
	}
	got, err := svc.Complete(ctx, r.ID, "mgr-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != StatusAtOwner {
		t.Fatalf("expected at_owner, got %s", got.Status)
	}

	if len(trRepo.applied) != 1 {
		t.Fatalf("expected 1 transfer applied, got %d", len(trRepo.applied))
	}
	in := trRepo.applied[0]
	if in.NewOwnerUserID != "buyer-1" || in.TxID != r.ID || in.SourceWorkflow != transfer.WorkflowPurchase {
		t.Fatalf("unexpected transfer input: %+v", in)
	}

	p, _ := reg.GetByPetCode(ctx, "ABC12345")
	if p.OwnerUserID != "buyer-1" || p.CurrentStatus != registry.StatusSold {
		t.Fatalf("expected pet sold to buyer-1, got owner=%s status=%s", p.OwnerUserID, p.CurrentStatus)
	}
}

func TestService_VerifyPayment_FailureLeavesPendingAndRetries(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(ownedPet("ABC12345", "store-owner"))
	svc, repo, _, _ := newTestService(reg)

	r := mustCreate(t, svc, "buyer-1", "ABC12345")
	_, _ = svc.Decide(ctx, r.ID, "mgr-1", true, "")
	_, _ = svc.MarkGoingToBuy(ctx, r.ID, "buyer-1")
	if _, _, err := svc.CreatePaymentOrder(ctx, r.ID, "buyer-1"); err != nil {
		t.Fatalf("payment order: %v", err)
	}

	if _, err := svc.VerifyPayment(ctx, r.ID, "buyer-1", "pay-1", "bad-sig"); !errors.Is(err, payments.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}

	got, _ := repo.GetByID(ctx, r.ID)
	if got.Status != StatusPaymentPending {
		t.Fatalf("failed verify must leave payment_pending, got %s", got.Status)
	}

	// mismo endpoint, firma buena: ahora sí paid
	if _, err := svc.VerifyPayment(ctx, r.ID, "buyer-1", "pay-1", "sig-ok"); err != nil {
		t.Fatalf("retry verify: %v", err)
	}
	got, _ = repo.GetByID(ctx, r.ID)
	if got.Status != StatusPaid {
		t.Fatalf("expected paid after retry, got %s", got.Status)
	}
}

func TestService_NoSkippingStates(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(ownedPet("ABC12345", "store-owner"))
	svc, _, _, _ := newTestService(reg)

	r := mustCreate(t, svc, "buyer-1", "ABC12345")

	// pending no puede saltar a delivered
	if _, err := svc.Advance(ctx, r.ID, "mgr-1", StatusDelivered, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	// ni directamente a at_owner
	if _, err := svc.Complete(ctx, r.ID, "mgr-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for complete, got %v", err)
	}
	// going_to_buy requiere approved primero
	if _, err := svc.MarkGoingToBuy(ctx, r.ID, "buyer-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for going_to_buy from pending, got %v", err)
	}
}

func TestService_Cancel_ReleasesClaim(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(ownedPet("ABC12345", "store-owner"))
	svc, _, _, _ := newTestService(reg)

	r := mustCreate(t, svc, "buyer-1", "ABC12345")

	// otro usuario no puede cancelar
	if _, err := svc.Cancel(ctx, r.ID, "intruso", false); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	got, err := svc.Cancel(ctx, r.ID, "buyer-1", false)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	// la mascota vuelve a estar disponible
	p, _ := reg.GetByPetCode(ctx, "ABC12345")
	if p.ActiveWorkflowID != "" || p.CurrentStatus != registry.StatusOwned {
		t.Fatalf("expected released pet, got claim=%q status=%s", p.ActiveWorkflowID, p.CurrentStatus)
	}
	if _, err := svc.Create(ctx, "buyer-2", CreateInput{PetCode: "ABC12345", StoreID: "s", AmountCents: 1}); err != nil {
		t.Fatalf("new reservation after cancel: %v", err)
	}

	// terminal: cancelada no se vuelve a cancelar
	if _, err := svc.Cancel(ctx, r.ID, "buyer-1", false); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on cancelled, got %v", err)
	}
}

func TestService_Cancel_NotAllowedAfterPaid(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(ownedPet("ABC12345", "store-owner"))
	svc, _, _, _ := newTestService(reg)

	r := mustCreate(t, svc, "buyer-1", "ABC12345")
	_, _ = svc.Decide(ctx, r.ID, "mgr-1", true, "")
	_, _ = svc.MarkGoingToBuy(ctx, r.ID, "buyer-1")
	_, _, _ = svc.CreatePaymentOrder(ctx, r.ID, "buyer-1")
	if _, err := svc.VerifyPayment(ctx, r.ID, "buyer-1", "pay-1", "sig-ok"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if _, err := svc.Cancel(ctx, r.ID, "buyer-1", false); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition cancelling paid, got %v", err)
	}
}

func TestService_Complete_TransferFailureLeavesDelivered(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(ownedPet("ABC12345", "store-owner"))
	svc, repo, trRepo, _ := newTestService(reg)

	r := mustCreate(t, svc, "buyer-1", "ABC12345")
	_, _ = svc.Decide(ctx, r.ID, "mgr-1", true, "")
	_, _ = svc.MarkGoingToBuy(ctx, r.ID, "buyer-1")
	_, _, _ = svc.CreatePaymentOrder(ctx, r.ID, "buyer-1")
	_, _ = svc.VerifyPayment(ctx, r.ID, "buyer-1", "pay-1", "sig-ok")
	_, _ = svc.Advance(ctx, r.ID, "mgr-1", StatusReadyPickup, "")
	_, _ = svc.Advance(ctx, r.ID, "mgr-1", StatusDelivered, "")

	trRepo.failWith = errors.New("db down")
	if _, err := svc.Complete(ctx, r.ID, "mgr-1"); err == nil {
		t.Fatal("expected transfer failure to surface")
	}

	got, _ := repo.GetByID(ctx, r.ID)
	if got.Status != StatusDelivered {
		t.Fatalf("failed transfer must leave delivered, got %s", got.Status)
	}

	// reintento: el transfer es idempotente por txID, cerrar funciona
	trRepo.failWith = nil
	got, err := svc.Complete(ctx, r.ID, "mgr-1")
	if err != nil {
		t.Fatalf("retry complete: %v", err)
	}
	if got.Status != StatusAtOwner {
		t.Fatalf("expected at_owner after retry, got %s", got.Status)
	}
}

func TestService_Decide_Reject_ReleasesPet(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(ownedPet("ABC12345", "store-owner"))
	svc, _, _, _ := newTestService(reg)

	r := mustCreate(t, svc, "buyer-1", "ABC12345")
	got, err := svc.Decide(ctx, r.ID, "mgr-1", false, "no cumple requisitos")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", got.Status)
	}

	p, _ := reg.GetByPetCode(ctx, "ABC12345")
	if p.ActiveWorkflowID != "" || p.CurrentStatus != registry.StatusOwned {
		t.Fatalf("expected pet released after reject, got claim=%q status=%s", p.ActiveWorkflowID, p.CurrentStatus)
	}
}
