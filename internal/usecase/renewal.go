package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"PetPlanBilling/internal/domain"
	"PetPlanBilling/internal/metrics"
	"PetPlanBilling/internal/ports"
)

const defaultRenewalWindowDays = 3

// Renewal holds the stateless billing decisions: who gets an
// upcoming-due notice, who gets an automatic charge attempt, who gets
// an overdue notice.
type Renewal struct {
	repository ports.ContractRepository
	gateway    ports.PaymentGateway
	notifier   ports.Notifier
	windowDays int
	logger     *slog.Logger
}

// RenewalDeps wires the collaborators of the renewal service.
type RenewalDeps struct {
	Repository ports.ContractRepository
	Gateway    ports.PaymentGateway
	Notifier   ports.Notifier
	WindowDays int
	Logger     *slog.Logger
}

// NewRenewal constructs the service.
func NewRenewal(deps RenewalDeps) *Renewal {
	windowDays := deps.WindowDays
	if windowDays <= 0 {
		windowDays = defaultRenewalWindowDays
	}
	return &Renewal{
		repository: deps.Repository,
		gateway:    deps.Gateway,
		notifier:   deps.Notifier,
		windowDays: windowDays,
		logger:     deps.Logger,
	}
}

// SendUpcomingDueNotifications notifies every contract holding an
// unpaid installment due in exactly daysAhead calendar days. The
// idempotency key contract+installment+due-date lets the notification
// service drop repeats for the same window.
func (r *Renewal) SendUpcomingDueNotifications(ctx context.Context, now time.Time, daysAhead int) (domain.NotificationReport, error) {
	var report domain.NotificationReport

	contracts, err := r.repository.ListContracts(ctx)
	if err != nil {
		return report, fmt.Errorf("list contracts: %w", err)
	}

	for _, contract := range contracts {
		if contract.Status == domain.StatusCancelled {
			continue
		}

		if err := r.notifyUpcomingForContract(ctx, contract, now, daysAhead, &report); err != nil {
			report.Failed++
			metrics.EntityFailures.WithLabelValues("upcoming-due").Inc()
			if r.logger != nil {
				r.logger.Error("upcoming-due notification failed",
					"error", &EntityError{ContractNumber: contract.Number, Err: err})
			}
		}
	}

	if r.logger != nil {
		r.logger.Info("upcoming-due pass finished",
			"days_ahead", daysAhead, "sent", report.Sent, "failed", report.Failed)
	}
	return report, nil
}

func (r *Renewal) notifyUpcomingForContract(ctx context.Context, contract domain.Contract, now time.Time, daysAhead int, report *domain.NotificationReport) error {
	installments, err := r.repository.ListInstallments(ctx, contract.ID)
	if err != nil {
		return fmt.Errorf("list installments: %w", err)
	}

	for _, inst := range installments {
		if inst.Status == domain.InstallmentPaid {
			continue
		}
		if calendarDaysBetween(now, inst.DueDate) != daysAhead {
			continue
		}

		key := fmt.Sprintf("upcoming:%s:%d:%s",
			contract.Number, inst.ID, inst.DueDate.Format("2006-01-02"))
		if err := r.notifier.NotifyUpcomingDue(ctx, contract, inst, key); err != nil {
			return fmt.Errorf("notify installment %d: %w", inst.ID, err)
		}
		report.Sent++
		metrics.NotificationsSent.WithLabelValues("upcoming_due").Inc()
	}
	return nil
}

// ProcessAutomaticRenewals attempts a gateway charge for every
// non-cancelled contract with an unpaid installment due inside the
// processing window (today through windowDays ahead). One gateway
// failure never stops the remaining contracts.
func (r *Renewal) ProcessAutomaticRenewals(ctx context.Context, now time.Time) (domain.RenewalReport, error) {
	var report domain.RenewalReport

	contracts, err := r.repository.ListContracts(ctx)
	if err != nil {
		return report, fmt.Errorf("list contracts: %w", err)
	}

	for _, contract := range contracts {
		if contract.Status == domain.StatusCancelled {
			continue
		}

		installment, ok, err := r.dueForRenewal(ctx, contract, now)
		if err != nil {
			report.Processed++
			report.Failed++
			metrics.EntityFailures.WithLabelValues("renewal").Inc()
			if r.logger != nil {
				r.logger.Error("renewal candidate lookup failed",
					"error", &EntityError{ContractNumber: contract.Number, Err: err})
			}
			continue
		}
		if !ok {
			continue
		}

		report.Processed++
		result, err := r.gateway.AttemptCharge(ctx, contract, installment)
		if err != nil {
			report.Failed++
			metrics.ChargeAttempts.WithLabelValues("error").Inc()
			if r.logger != nil {
				r.logger.Error("charge attempt failed",
					"error", &EntityError{ContractNumber: contract.Number, Err: err})
			}
			continue
		}

		if result.Success {
			report.Successful++
			metrics.ChargeAttempts.WithLabelValues("success").Inc()
			if r.logger != nil {
				r.logger.Info("renewal charged",
					"contract", contract.Number, "reference", result.Reference)
			}
		} else {
			report.Failed++
			metrics.ChargeAttempts.WithLabelValues("declined").Inc()
			if r.logger != nil {
				r.logger.Warn("renewal declined",
					"contract", contract.Number, "reason", result.ErrorReason)
			}
		}
	}

	if r.logger != nil {
		r.logger.Info("renewal pass finished",
			"processed", report.Processed,
			"successful", report.Successful,
			"failed", report.Failed)
	}
	return report, nil
}

func (r *Renewal) dueForRenewal(ctx context.Context, contract domain.Contract, now time.Time) (domain.Installment, bool, error) {
	installments, err := r.repository.ListInstallments(ctx, contract.ID)
	if err != nil {
		return domain.Installment{}, false, fmt.Errorf("list installments: %w", err)
	}

	for _, inst := range installments {
		if inst.Status == domain.InstallmentPaid {
			continue
		}
		days := calendarDaysBetween(now, inst.DueDate)
		if days >= 0 && days <= r.windowDays {
			return inst, true, nil
		}
	}
	return domain.Installment{}, false, nil
}

// SendOverdueNotifications notifies every contract holding at least one
// overdue installment, once per contract per calendar day (the key
// encodes the day).
func (r *Renewal) SendOverdueNotifications(ctx context.Context, now time.Time) (domain.NotificationReport, error) {
	var report domain.NotificationReport

	contracts, err := r.repository.ListContracts(ctx)
	if err != nil {
		return report, fmt.Errorf("list contracts: %w", err)
	}

	for _, contract := range contracts {
		if contract.Status == domain.StatusCancelled {
			continue
		}

		overdue, err := r.hasOverdue(ctx, contract, now)
		if err != nil {
			report.Failed++
			metrics.EntityFailures.WithLabelValues("overdue-notifications").Inc()
			if r.logger != nil {
				r.logger.Error("overdue lookup failed",
					"error", &EntityError{ContractNumber: contract.Number, Err: err})
			}
			continue
		}
		if !overdue {
			continue
		}

		key := fmt.Sprintf("overdue:%s:%s", contract.Number, now.Format("2006-01-02"))
		if err := r.notifier.NotifyOverdue(ctx, contract, key); err != nil {
			report.Failed++
			metrics.EntityFailures.WithLabelValues("overdue-notifications").Inc()
			if r.logger != nil {
				r.logger.Error("overdue notification failed",
					"error", &EntityError{ContractNumber: contract.Number, Err: err})
			}
			continue
		}
		report.Sent++
		metrics.NotificationsSent.WithLabelValues("overdue").Inc()
	}

	if r.logger != nil {
		r.logger.Info("overdue pass finished",
			"sent", report.Sent, "failed", report.Failed)
	}
	return report, nil
}

func (r *Renewal) hasOverdue(ctx context.Context, contract domain.Contract, now time.Time) (bool, error) {
	installments, err := r.repository.ListInstallments(ctx, contract.ID)
	if err != nil {
		return false, fmt.Errorf("list installments: %w", err)
	}
	for _, inst := range installments {
		if inst.Overdue(now) {
			return true, nil
		}
	}
	return false, nil
}

// calendarDaysBetween counts whole calendar days from now's date to
// due's date, negative when due is in the past. Rounding absorbs DST
// shifted days.
func calendarDaysBetween(now, due time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, now.Location())
	return int(math.Round(dueDay.Sub(today).Hours() / 24))
}
