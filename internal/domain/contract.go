package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContractStatus enumerates the lifecycle states of a billing contract.
type ContractStatus string

const (
	StatusPending   ContractStatus = "pending"
	StatusActive    ContractStatus = "active"
	StatusSuspended ContractStatus = "suspended"
	StatusCancelled ContractStatus = "cancelled"
	StatusInactive  ContractStatus = "inactive"
)

// Overdue thresholds in days. Up to the grace limit a contract stays
// active; past the cancel limit it is cancelled for good.
const (
	GraceDays  = 15
	CancelDays = 60
)

// Contract is a billing agreement tied to a client/pet plan.
type Contract struct {
	ID            int64
	Number        string
	Status        ContractStatus
	BillingPeriod string
	Amount        decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InstallmentStatus marks whether a scheduled payment was settled.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "pending"
	InstallmentPaid    InstallmentStatus = "paid"
)

// Installment is one scheduled payment obligation within a contract.
type Installment struct {
	ID         int64
	ContractID int64
	DueDate    time.Time
	Status     InstallmentStatus
	Amount     decimal.Decimal
}

// Overdue reports whether the installment is unpaid and past due at now.
func (i Installment) Overdue(now time.Time) bool {
	return i.Status != InstallmentPaid && i.DueDate.Before(now)
}

// DaysOverdue returns how many whole days the installment is past due,
// zero if it is not overdue at all.
func (i Installment) DaysOverdue(now time.Time) int {
	if !i.Overdue(now) {
		return 0
	}
	return int(now.Sub(i.DueDate).Hours() / 24)
}

// EvaluateStatus recomputes the status a contract should hold given its
// full installment set. The rules follow the dunning ladder: no overdue
// installments means active, then grace, suspension and cancellation as
// the oldest unpaid installment ages.
func EvaluateStatus(now time.Time, installments []Installment) ContractStatus {
	var oldest *Installment
	for idx := range installments {
		inst := &installments[idx]
		if !inst.Overdue(now) {
			continue
		}
		if oldest == nil || inst.DueDate.Before(oldest.DueDate) {
			oldest = inst
		}
	}

	if oldest == nil {
		return StatusActive
	}

	switch days := oldest.DaysOverdue(now); {
	case days > CancelDays:
		return StatusCancelled
	case days > GraceDays:
		return StatusSuspended
	default:
		return StatusActive
	}
}

// ChargeResult is the outcome of one payment-gateway attempt.
type ChargeResult struct {
	Success     bool
	Reference   string
	ErrorReason string
}

// RenewalReport aggregates one automatic-renewal pass.
type RenewalReport struct {
	Processed  int
	Successful int
	Failed     int
}

// ReconcileReport aggregates one status-reconciliation pass.
type ReconcileReport struct {
	Evaluated int
	Updated   int
	Failed    int
}

// NotificationReport aggregates one notification pass.
type NotificationReport struct {
	Sent   int
	Failed int
}
