package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"PetPlanBilling/internal/domain"
	"PetPlanBilling/internal/infrastructure/db"
	"PetPlanBilling/internal/ports"
)

// PostgresRepository reads contracts and installments and persists
// status transitions, all through the resilient pool.
type PostgresRepository struct {
	pool    *db.Pool
	retries db.RetryOptions
	logger  *slog.Logger
	builder sq.StatementBuilderType
}

var _ ports.ContractRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires the pool and retry policy.
func NewPostgresRepository(pool *db.Pool, retries db.RetryOptions, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		pool:    pool,
		retries: retries,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// ListContracts returns every contract known to the billing subsystem.
func (r *PostgresRepository) ListContracts(ctx context.Context) ([]domain.Contract, error) {
	query, args, err := r.builder.
		Select("id", "contract_number", "status", "billing_period", "amount", "created_at", "updated_at").
		From("contracts").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build contracts query: %w", err)
	}

	return db.RunQueryWithRetry(ctx, r.pool, r.retries, func(ctx context.Context, conn *sql.Conn) ([]domain.Contract, error) {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query contracts: %w", err)
		}
		defer rows.Close()

		var contracts []domain.Contract
		for rows.Next() {
			var c domain.Contract
			if err := rows.Scan(&c.ID, &c.Number, &c.Status, &c.BillingPeriod, &c.Amount, &c.CreatedAt, &c.UpdatedAt); err != nil {
				return nil, fmt.Errorf("scan contract: %w", err)
			}
			contracts = append(contracts, c)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate contracts: %w", err)
		}
		return contracts, nil
	})
}

// ListInstallments returns the full installment set of one contract.
func (r *PostgresRepository) ListInstallments(ctx context.Context, contractID int64) ([]domain.Installment, error) {
	query, args, err := r.builder.
		Select("id", "contract_id", "due_date", "status", "amount").
		From("installments").
		Where(sq.Eq{"contract_id": contractID}).
		OrderBy("due_date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build installments query: %w", err)
	}

	return db.RunQueryWithRetry(ctx, r.pool, r.retries, func(ctx context.Context, conn *sql.Conn) ([]domain.Installment, error) {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query installments: %w", err)
		}
		defer rows.Close()

		var installments []domain.Installment
		for rows.Next() {
			var inst domain.Installment
			if err := rows.Scan(&inst.ID, &inst.ContractID, &inst.DueDate, &inst.Status, &inst.Amount); err != nil {
				return nil, fmt.Errorf("scan installment: %w", err)
			}
			installments = append(installments, inst)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate installments: %w", err)
		}
		return installments, nil
	})
}

// UpdateContractStatus persists one status transition inside a retried
// transaction. The write is idempotent, so re-running a failed attempt
// is safe.
func (r *PostgresRepository) UpdateContractStatus(ctx context.Context, contractID int64, status domain.ContractStatus) error {
	query, args, err := r.builder.
		Update("contracts").
		Set("status", string(status)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": contractID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build status update: %w", err)
	}

	return db.RunTransactionWithRetry(ctx, r.pool, r.retries, func(ctx context.Context, tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update contract %d: %w", contractID, err)
		}
		affected, err := result.RowsAffected()
		if err == nil && affected == 0 && r.logger != nil {
			r.logger.Warn("status update matched no contract", "contract_id", contractID)
		}
		return nil
	})
}
