package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/footy/internal/metrics"
	"github.com/nikolayk812/footy/internal/port"
	"github.com/sirupsen/logrus"
)

const DefaultTxTimeout = 10 * time.Second

type Transactor struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

var _ port.Transactor = (*Transactor)(nil)

// NewTransactor applies timeout to contexts that carry no deadline of their own.
func NewTransactor(pool *pgxpool.Pool, timeout time.Duration, log logrus.FieldLogger, m *metrics.Metrics) *Transactor {
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}

	return &Transactor{
		pool:    pool,
		timeout: timeout,
		log:     log,
		metrics: m,
	}
}

// InSerializableTx reruns fn from scratch on 40001/40P01/55P03 until the context deadline.
// A waiter on a row lock gets 40001 once the holder commits, the rerun sees the committed rows.
// fn must not have side effects outside the transaction.
func (t *Transactor) InSerializableTx(ctx context.Context, fn func(uow port.UnitOfWork) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}

	for attempt := 1; ; attempt++ {
		_, err := withTx(ctx, t.pool, opts, func(tx pgx.Tx) (struct{}, error) {
			return struct{}{}, fn(unitOfWork{tx: tx})
		})
		if err == nil {
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("attempt %d: %w", attempt, errors.Join(err, ctxErr))
		}

		if !IsSerializationFailure(err) {
			if attempt > 1 {
				return fmt.Errorf("attempt %d: %w", attempt, err)
			}
			return err
		}

		if t.metrics != nil {
			t.metrics.OrderTxRetries.Inc()
		}
		t.log.WithError(err).WithField("attempt", attempt).Debug("serializable tx restarted")
	}
}

type unitOfWork struct {
	tx pgx.Tx
}

func (u unitOfWork) Orders() port.OrderRepository {
	return NewOrderWithTx(u.tx)
}

func (u unitOfWork) Inventory() port.InventoryLedger {
	return NewInventoryWithTx(u.tx)
}

func (u unitOfWork) Catalog() port.CatalogReader {
	return NewCatalogWithTx(u.tx)
}
