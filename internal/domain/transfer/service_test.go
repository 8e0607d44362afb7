package transfer_test

import (
	"context"
	"errors"
	"testing"

	"pet-registry/internal/adapters/storage/memory"
	"pet-registry/internal/domain/history"
	"pet-registry/internal/domain/registry"
	"pet-registry/internal/domain/transfer"
)

func setup(t *testing.T, pets ...registry.PetIdentity) (*transfer.Service, registry.Repository, history.Repository) {
	t.Helper()
	reg := memory.NewRegistryRepo()
	hist := memory.NewHistoryRepo()
	for _, p := range pets {
		if err := reg.Create(context.Background(), p); err != nil {
			t.Fatalf("seed pet: %v", err)
		}
	}
	repo, err := memory.NewTransferRepo(reg, hist)
	if err != nil {
		t.Fatalf("transfer repo: %v", err)
	}
	return transfer.NewService(repo), reg, hist
}

func claimedPet(code, owner, workflowID string) registry.PetIdentity {
	return registry.PetIdentity{
		PetCode:          code,
		CanonicalID:      "cid-" + code,
		CurrentStatus:    registry.StatusReserved,
		OwnerUserID:      owner,
		ActiveWorkflowID: workflowID,
	}
}

func TestTransfer_SameTxID_ProducesOneEvent(t *testing.T) {
	ctx := context.Background()
	svc, reg, hist := setup(t, claimedPet("ABC12345", "store-owner", "res-1"))

	in := transfer.Input{
		PetCode:         "ABC12345",
		NewOwnerUserID:  "buyer-1",
		SourceWorkflow:  transfer.WorkflowPurchase,
		TxID:            "res-1",
		PerformedBy:     "mgr-1",
		PerformedByRole: "manager",
	}

	first, err := svc.Transfer(ctx, in)
	if err != nil {
		t.Fatalf("first transfer: %v", err)
	}

	// reintento con el mismo txID: mismo evento, sin escritura nueva
	second, err := svc.Transfer(ctx, in)
	if err != nil {
		t.Fatalf("retry transfer: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("retry must return the original event, got %s vs %s", second.ID, first.ID)
	}

	events, _ := hist.ListByPet(ctx, "ABC12345", 10)
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 ownership event, got %d", len(events))
	}
	if events[0].Type != history.EventTypeOwnershipTransferred {
		t.Fatalf("unexpected event type %s", events[0].Type)
	}

	p, err := reg.GetByPetCode(ctx, "ABC12345")
	if err != nil {
		t.Fatalf("get pet: %v", err)
	}
	if p.OwnerUserID != "buyer-1" || p.CurrentStatus != registry.StatusSold || p.ActiveWorkflowID != "" {
		t.Fatalf("unexpected identity after transfer: %+v", p)
	}
}

func TestTransfer_AdoptionSetsAdoptedStatus(t *testing.T) {
	ctx := context.Background()
	svc, reg, _ := setup(t, claimedPet("RES12345", "", "app-1"))

	_, err := svc.Transfer(ctx, transfer.Input{
		PetCode:         "RES12345",
		NewOwnerUserID:  "adopter-1",
		SourceWorkflow:  transfer.WorkflowAdoption,
		TxID:            "app-1",
		PerformedBy:     "mgr-1",
		PerformedByRole: "manager",
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	p, _ := reg.GetByPetCode(ctx, "RES12345")
	if p.CurrentStatus != registry.StatusAdopted || p.OwnerUserID != "adopter-1" {
		t.Fatalf("expected adopted by adopter-1, got %+v", p)
	}
}

func TestTransfer_ConflictWhenAlreadySoldToAnother(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, registry.PetIdentity{
		PetCode:       "ABC12345",
		CurrentStatus: registry.StatusSold,
		OwnerUserID:   "buyer-1",
	})

	_, err := svc.Transfer(ctx, transfer.Input{
		PetCode:        "ABC12345",
		NewOwnerUserID: "buyer-2",
		SourceWorkflow: transfer.WorkflowPurchase,
		TxID:           "res-2",
	})
	if !errors.Is(err, transfer.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestTransfer_ConflictWhenClaimedByOtherWorkflow(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, claimedPet("ABC12345", "store-owner", "res-other"))

	_, err := svc.Transfer(ctx, transfer.Input{
		PetCode:        "ABC12345",
		NewOwnerUserID: "buyer-1",
		SourceWorkflow: transfer.WorkflowPurchase,
		TxID:           "res-1",
	})
	if !errors.Is(err, transfer.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestTransfer_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)

	cases := []transfer.Input{
		{PetCode: "bad-code", NewOwnerUserID: "u", SourceWorkflow: transfer.WorkflowPurchase, TxID: "tx"},
		{PetCode: "ABC12345", NewOwnerUserID: "", SourceWorkflow: transfer.WorkflowPurchase, TxID: "tx"},
		{PetCode: "ABC12345", NewOwnerUserID: "u", SourceWorkflow: "teleport", TxID: "tx"},
		{PetCode: "ABC12345", NewOwnerUserID: "u", SourceWorkflow: transfer.WorkflowPurchase, TxID: ""},
	}
	for i, in := range cases {
		if _, err := svc.Transfer(ctx, in); !errors.Is(err, transfer.ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}

	// mascota inexistente
	_, err := svc.Transfer(ctx, transfer.Input{
		PetCode:        "ZZZ99999",
		NewOwnerUserID: "u",
		SourceWorkflow: transfer.WorkflowPurchase,
		TxID:           "tx",
	})
	if !errors.Is(err, transfer.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
