package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/blocohub/checkout/internal/domain/order"
	"github.com/blocohub/checkout/internal/fault"
)

var _ order.UnitOfWork = (*Store)(nil)

// Store is the PostgreSQL unit-of-work factory for the checkout core.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store over the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// stores binds every domain store to the given querier.
func stores(db DB) order.Stores {
	return order.Stores{
		Carts:    &CartStore{db: db},
		Products: &ProductStore{db: db},
		Coupons:  &CouponStore{db: db},
		Orders:   &OrderStore{db: db},
	}
}

// WithinTx runs fn against stores bound to a single transaction. The
// transaction commits only if fn returns nil; any error triggers a full
// rollback. Domain faults pass through unchanged; anything else is
// translated so raw driver errors never reach callers.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, st order.Stores) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, stores(tx)); err != nil {
		return translate(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

// View returns stores bound to the shared pool for non-transactional reads.
func (s *Store) View() order.Stores {
	return stores(s.pool)
}

// translate maps storage errors into the domain fault taxonomy. Known
// business-rule failures are rethrown as-is.
func translate(err error) error {
	var (
		validation *fault.ValidationError
		notFound   *fault.NotFoundError
		service    *fault.ServiceError
	)
	if errors.As(err, &validation) || errors.As(err, &notFound) || errors.As(err, &service) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 23: integrity constraint violations surface as conflicts.
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23" {
			return &fault.ServiceError{Msg: "operação conflita com o estado atual dos dados"}
		}
	}
	return errors.Wrap(err, "storage")
}
