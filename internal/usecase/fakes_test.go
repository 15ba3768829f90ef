package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"PetPlanBilling/internal/domain"
)

type statusUpdate struct {
	contractID int64
	status     domain.ContractStatus
}

// fakeRepository is an in-memory ContractRepository with per-contract
// failure injection.
type fakeRepository struct {
	mu           sync.Mutex
	contracts    []domain.Contract
	installments map[int64][]domain.Installment
	failFor      map[int64]error
	listErr      error
	updates      []statusUpdate
}

func newFakeRepository(contracts ...domain.Contract) *fakeRepository {
	return &fakeRepository{
		contracts:    contracts,
		installments: map[int64][]domain.Installment{},
		failFor:      map[int64]error{},
	}
}

func (f *fakeRepository) ListContracts(ctx context.Context) ([]domain.Contract, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Contract, len(f.contracts))
	copy(out, f.contracts)
	return out, nil
}

func (f *fakeRepository) ListInstallments(ctx context.Context, contractID int64) ([]domain.Installment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[contractID]; err != nil {
		return nil, err
	}
	return f.installments[contractID], nil
}

func (f *fakeRepository) UpdateContractStatus(ctx context.Context, contractID int64, status domain.ContractStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusUpdate{contractID: contractID, status: status})
	for i := range f.contracts {
		if f.contracts[i].ID == contractID {
			f.contracts[i].Status = status
		}
	}
	return nil
}

func (f *fakeRepository) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeRepository) statusOf(contractID int64) domain.ContractStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.contracts {
		if c.ID == contractID {
			return c.Status
		}
	}
	return ""
}

// fakeGateway scripts charge outcomes per contract number.
type fakeGateway struct {
	mu       sync.Mutex
	declines map[string]string
	errFor   map[string]error
	attempts []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{declines: map[string]string{}, errFor: map[string]error{}}
}

func (f *fakeGateway) AttemptCharge(ctx context.Context, contract domain.Contract, installment domain.Installment) (domain.ChargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, contract.Number)
	if err := f.errFor[contract.Number]; err != nil {
		return domain.ChargeResult{}, err
	}
	if reason, declined := f.declines[contract.Number]; declined {
		return domain.ChargeResult{Success: false, ErrorReason: reason}, nil
	}
	return domain.ChargeResult{Success: true, Reference: "ref-" + contract.Number}, nil
}

type sentNotice struct {
	kind     string
	contract string
	key      string
}

// fakeNotifier records notices and can fail per contract number.
type fakeNotifier struct {
	mu     sync.Mutex
	errFor map[string]error
	sent   []sentNotice
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{errFor: map[string]error{}}
}

func (f *fakeNotifier) NotifyUpcomingDue(ctx context.Context, contract domain.Contract, installment domain.Installment, key string) error {
	return f.record("upcoming_due", contract.Number, key)
}

func (f *fakeNotifier) NotifyOverdue(ctx context.Context, contract domain.Contract, key string) error {
	return f.record("overdue", contract.Number, key)
}

func (f *fakeNotifier) record(kind, number, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor[number]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentNotice{kind: kind, contract: number, key: key})
	return nil
}

type registeredTrigger struct {
	name   string
	hour   int
	minute int
	job    func(time.Time)
}

// fakeDriver records trigger registrations and lifecycle calls.
type fakeDriver struct {
	triggers    []registeredTrigger
	started     bool
	stopped     bool
	registerErr error
}

func (f *fakeDriver) Register(name string, hour, minute int, job func(time.Time)) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.triggers = append(f.triggers, registeredTrigger{name: name, hour: hour, minute: minute, job: job})
	return nil
}

func (f *fakeDriver) Start() { f.started = true }

func (f *fakeDriver) Stop(ctx context.Context) error {
	f.stopped = true
	return nil
}

func (f *fakeDriver) Count() int { return len(f.triggers) }

var errBoom = errors.New("boom")
