package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"PetPlanBilling/internal/domain"
	"PetPlanBilling/internal/metrics"
	"PetPlanBilling/internal/ports"
)

// Reconciler recomputes every contract's status from its installment
// history. Transitions are derived, not event-driven: each pass is a
// full recomputation, which makes re-running it harmless.
type Reconciler struct {
	repository ports.ContractRepository
	logger     *slog.Logger
}

// NewReconciler wires the storage dependency.
func NewReconciler(repository ports.ContractRepository, logger *slog.Logger) *Reconciler {
	return &Reconciler{repository: repository, logger: logger}
}

// Run evaluates all contracts at the given instant. Per-contract
// failures are logged and counted but never abort the pass; only a
// failure to list the contracts themselves surfaces as an error.
func (r *Reconciler) Run(ctx context.Context, now time.Time) (domain.ReconcileReport, error) {
	var report domain.ReconcileReport

	contracts, err := r.repository.ListContracts(ctx)
	if err != nil {
		return report, fmt.Errorf("list contracts: %w", err)
	}

	for _, contract := range contracts {
		if contract.Status == domain.StatusCancelled {
			continue
		}
		report.Evaluated++

		updated, err := r.reconcileOne(ctx, contract, now)
		if err != nil {
			report.Failed++
			metrics.EntityFailures.WithLabelValues("status-reconciliation").Inc()
			if r.logger != nil {
				entityErr := &EntityError{ContractNumber: contract.Number, Err: err}
				r.logger.Error("reconcile contract failed", "error", entityErr)
			}
			continue
		}
		if updated {
			report.Updated++
			metrics.ContractsUpdated.Inc()
		}
	}

	if r.logger != nil {
		r.logger.Info("reconciliation pass finished",
			"evaluated", report.Evaluated,
			"updated", report.Updated,
			"failed", report.Failed)
	}
	return report, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, contract domain.Contract, now time.Time) (bool, error) {
	installments, err := r.repository.ListInstallments(ctx, contract.ID)
	if err != nil {
		return false, fmt.Errorf("list installments: %w", err)
	}

	target := domain.EvaluateStatus(now, installments)
	if target == contract.Status {
		return false, nil
	}

	if err := r.repository.UpdateContractStatus(ctx, contract.ID, target); err != nil {
		return false, fmt.Errorf("update status to %s: %w", target, err)
	}

	if r.logger != nil {
		r.logger.Info("contract status transitioned",
			"contract", contract.Number,
			"from", contract.Status,
			"to", target)
	}
	return true, nil
}
