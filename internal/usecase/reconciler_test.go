package usecase

import (
	"context"
	"testing"
	"time"

	"PetPlanBilling/internal/domain"
)

var passNow = time.Date(2026, time.August, 31, 4, 0, 0, 0, time.UTC)

func contract(id int64, number string, status domain.ContractStatus) domain.Contract {
	return domain.Contract{ID: id, Number: number, Status: status}
}

func unpaid(contractID int64, dueDaysAgo int) domain.Installment {
	return domain.Installment{
		ID:         contractID*100 + int64(dueDaysAgo),
		ContractID: contractID,
		DueDate:    passNow.AddDate(0, 0, -dueDaysAgo),
		Status:     domain.InstallmentPending,
	}
}

func TestReconcileTwentyDaysOverdueSuspends(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository(contract(1, "C1", domain.StatusActive))
	repo.installments[1] = []domain.Installment{unpaid(1, 20)}

	report, err := NewReconciler(repo, nil).Run(context.Background(), passNow)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if report.Updated != 1 {
		t.Fatalf("expected 1 update, got %d", report.Updated)
	}
	if got := repo.statusOf(1); got != domain.StatusSuspended {
		t.Fatalf("expected suspended, got %s", got)
	}
}

func TestReconcileSeventyDaysOverdueCancelsForGood(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository(contract(2, "C2", domain.StatusSuspended))
	repo.installments[2] = []domain.Installment{unpaid(2, 70)}

	reconciler := NewReconciler(repo, nil)
	ctx := context.Background()

	if _, err := reconciler.Run(ctx, passNow); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got := repo.statusOf(2); got != domain.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}

	// A fresh unpaid installment due today must not resurrect the
	// contract: cancelled is terminal.
	repo.installments[2] = append(repo.installments[2], domain.Installment{
		ID: 999, ContractID: 2, DueDate: passNow, Status: domain.InstallmentPending,
	})
	writesBefore := repo.updateCount()

	report, err := reconciler.Run(ctx, passNow)
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if repo.updateCount() != writesBefore {
		t.Fatalf("cancelled contract was written again")
	}
	if report.Evaluated != 0 {
		t.Fatalf("cancelled contract should be skipped, evaluated %d", report.Evaluated)
	}
	if got := repo.statusOf(2); got != domain.StatusCancelled {
		t.Fatalf("expected cancelled to stick, got %s", got)
	}
}

func TestReconcileNoOverdueActivates(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository(
		contract(1, "C1", domain.StatusSuspended),
		contract(2, "C2", domain.StatusPending),
		contract(3, "C3", domain.StatusActive),
	)
	repo.installments[1] = []domain.Installment{
		{ID: 10, ContractID: 1, DueDate: passNow.AddDate(0, 0, -30), Status: domain.InstallmentPaid},
	}
	// contract 2 has zero installments, contract 3 only future ones.
	repo.installments[3] = []domain.Installment{
		{ID: 30, ContractID: 3, DueDate: passNow.AddDate(0, 0, 30), Status: domain.InstallmentPending},
	}

	report, err := NewReconciler(repo, nil).Run(context.Background(), passNow)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if report.Updated != 2 {
		t.Fatalf("expected 2 updates (suspended and pending to active), got %d", report.Updated)
	}
	for id := int64(1); id <= 3; id++ {
		if got := repo.statusOf(id); got != domain.StatusActive {
			t.Fatalf("contract %d: expected active, got %s", id, got)
		}
	}
}

func TestReconcileSecondPassWritesNothing(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository(
		contract(1, "C1", domain.StatusActive),
		contract(2, "C2", domain.StatusActive),
	)
	repo.installments[1] = []domain.Installment{unpaid(1, 20)}
	repo.installments[2] = []domain.Installment{unpaid(2, 70)}

	reconciler := NewReconciler(repo, nil)
	ctx := context.Background()

	first, err := reconciler.Run(ctx, passNow)
	if err != nil {
		t.Fatalf("first Run error: %v", err)
	}
	if first.Updated != 2 {
		t.Fatalf("expected 2 updates on first pass, got %d", first.Updated)
	}

	second, err := reconciler.Run(ctx, passNow)
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	if second.Updated != 0 {
		t.Fatalf("expected no updates on second pass, got %d", second.Updated)
	}
	if repo.updateCount() != 2 {
		t.Fatalf("expected 2 writes total, got %d", repo.updateCount())
	}
}

func TestReconcileIsolatesPerContractFailures(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository(
		contract(1, "C1", domain.StatusActive),
		contract(2, "C2", domain.StatusActive),
		contract(3, "C3", domain.StatusActive),
	)
	repo.installments[1] = []domain.Installment{unpaid(1, 20)}
	repo.failFor[2] = errBoom
	repo.installments[3] = []domain.Installment{unpaid(3, 70)}

	report, err := NewReconciler(repo, nil).Run(context.Background(), passNow)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if report.Failed != 1 {
		t.Fatalf("expected 1 failed contract, got %d", report.Failed)
	}
	if report.Updated != 2 {
		t.Fatalf("neighbours of the failing contract must still update, got %d", report.Updated)
	}
	if got := repo.statusOf(1); got != domain.StatusSuspended {
		t.Fatalf("contract 1: expected suspended, got %s", got)
	}
	if got := repo.statusOf(3); got != domain.StatusCancelled {
		t.Fatalf("contract 3: expected cancelled, got %s", got)
	}
}

func TestReconcileListFailurePropagates(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	repo.listErr = errBoom

	if _, err := NewReconciler(repo, nil).Run(context.Background(), passNow); err == nil {
		t.Fatal("expected error when listing contracts fails")
	}
}
