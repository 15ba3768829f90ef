package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"

	"PetPlanBilling/internal/metrics"
)

const (
	defaultMaxConns       = 20
	defaultMinConns       = 5
	defaultAcquireTimeout = 10 * time.Second
	defaultProbeInterval  = 30 * time.Second
)

// PoolConfig sizes the connection pool and its timers. Driver defaults
// to postgres; tests may substitute another registered driver.
type PoolConfig struct {
	Driver         string
	DSN            string
	MaxConns       int
	MinConns       int
	AcquireTimeout time.Duration
	ProbeInterval  time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Driver == "" {
		c.Driver = "postgres"
	}
	if c.MaxConns <= 0 {
		c.MaxConns = defaultMaxConns
	}
	if c.MinConns <= 0 {
		c.MinConns = defaultMinConns
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = defaultAcquireTimeout
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = defaultProbeInterval
	}
	return c
}

// Pool owns the process-wide bounded connection pool and its health
// state. The healthy flag is advisory: Acquire always attempts the
// borrow regardless of the last probe outcome.
type Pool struct {
	db      *sql.DB
	cfg     PoolConfig
	logger  *slog.Logger
	healthy atomic.Bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewPool opens the database handle with bounded sizing. The pool
// starts out marked healthy; the first probe corrects that if needed.
func NewPool(cfg PoolConfig, logger *slog.Logger) (*Pool, error) {
	cfg = cfg.withDefaults()

	handle, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	handle.SetMaxOpenConns(cfg.MaxConns)
	handle.SetMaxIdleConns(cfg.MinConns)

	p := &Pool{
		db:     handle,
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.setHealthy(true)
	return p, nil
}

// Acquire borrows a connection, failing with *ConnectionError if none
// becomes available within the configured acquire timeout.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	conn, err := p.db.Conn(acquireCtx)
	if err != nil {
		p.setHealthy(false)
		return nil, &ConnectionError{Err: err}
	}
	p.setHealthy(true)
	return conn, nil
}

// Healthy reports the advisory flag set by probes and observed errors.
func (p *Pool) Healthy() bool {
	return p.healthy.Load()
}

// StartHealthMonitor launches the background liveness probe. Calling
// Close stops it.
func (p *Pool) StartHealthMonitor() {
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.cfg.ProbeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.probe()
			case <-p.stop:
				return
			}
		}
	}()
}

func (p *Pool) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
	defer cancel()

	if err := p.db.PingContext(ctx); err != nil {
		p.setHealthy(false)
		if p.logger != nil {
			p.logger.Warn("liveness probe failed", "error", err)
		}
		return
	}
	p.setHealthy(true)
}

func (p *Pool) setHealthy(healthy bool) {
	previous := p.healthy.Swap(healthy)
	if healthy {
		metrics.PoolHealthy.Set(1)
	} else {
		metrics.PoolHealthy.Set(0)
	}
	if previous != healthy && p.logger != nil {
		if healthy {
			p.logger.Info("database pool recovered")
		} else {
			p.logger.Warn("database pool unhealthy")
		}
	}
}

// Close stops the health monitor and closes the underlying handle.
func (p *Pool) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	return p.db.Close()
}

// RunQueryWithRetry borrows a connection and runs op against it,
// retrying the whole borrow+query unit per opts. The connection is
// released after every attempt.
func RunQueryWithRetry[T any](ctx context.Context, p *Pool, opts RetryOptions, op func(context.Context, *sql.Conn) (T, error)) (T, error) {
	return WithRetry(ctx, opts, p.logger, func(ctx context.Context) (T, error) {
		var zero T
		conn, err := p.Acquire(ctx)
		if err != nil {
			return zero, err
		}
		defer conn.Close()

		result, err := op(ctx, conn)
		if err != nil {
			p.setHealthy(false)
			return zero, err
		}
		return result, nil
	})
}

// RunTransactionWithRetry retries acquire+BEGIN+op+COMMIT as a unit.
// On any failure the open transaction is rolled back and the next
// attempt starts from scratch; op must therefore be safe to re-run.
// External side effects do not belong inside op.
func RunTransactionWithRetry(ctx context.Context, p *Pool, opts RetryOptions, op func(context.Context, *sql.Tx) error) error {
	_, err := WithRetry(ctx, opts, p.logger, func(ctx context.Context) (struct{}, error) {
		var zero struct{}
		conn, err := p.Acquire(ctx)
		if err != nil {
			return zero, err
		}
		defer conn.Close()

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			p.setHealthy(false)
			return zero, fmt.Errorf("begin: %w", err)
		}

		if err := op(ctx, tx); err != nil {
			_ = tx.Rollback()
			return zero, err
		}

		if err := tx.Commit(); err != nil {
			p.setHealthy(false)
			return zero, fmt.Errorf("commit: %w", err)
		}
		return zero, nil
	})
	return err
}
