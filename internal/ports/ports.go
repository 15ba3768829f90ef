package ports

import (
	"context"
	"time"

	"PetPlanBilling/internal/domain"
)

// ContractRepository exposes the storage surface the lifecycle engine
// reads and mutates. Selection logic (due windows, overdue sets) lives
// in the use cases, not in queries.
type ContractRepository interface {
	ListContracts(ctx context.Context) ([]domain.Contract, error)
	ListInstallments(ctx context.Context, contractID int64) ([]domain.Installment, error)
	UpdateContractStatus(ctx context.Context, contractID int64, status domain.ContractStatus) error
}

// PaymentGateway attempts a renewal charge for one installment.
type PaymentGateway interface {
	AttemptCharge(ctx context.Context, contract domain.Contract, installment domain.Installment) (domain.ChargeResult, error)
}

// Notifier delivers billing notices. Both calls must be idempotent per
// the supplied key: re-sending with the same key is a no-op downstream.
type Notifier interface {
	NotifyUpcomingDue(ctx context.Context, contract domain.Contract, installment domain.Installment, key string) error
	NotifyOverdue(ctx context.Context, contract domain.Contract, key string) error
}

// TriggerDriver registers named time-of-day jobs and controls their
// lifecycle. Jobs receive the trigger time of the firing.
type TriggerDriver interface {
	Register(name string, hour, minute int, job func(time.Time)) error
	Start()
	Stop(ctx context.Context) error
	Count() int
}
