package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/logger"
	"github.com/punchamoorthee/rentalops/internal/service"
)

const maxTxAttempts = 5

// Postgres error codes
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

var txRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rentalops_tx_retries_total",
	Help: "Units of work re-run after a serialization failure or deadlock",
})

type Store struct {
	Db *pgxpool.Pool
}

func NewStore(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// Migrate applies the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// RunInTx executes fn in a REPEATABLE READ transaction after locking every row
// named in ls with SELECT ... FOR UPDATE, in a fixed order (assets, users, rentals,
// each sorted by id) so concurrent units of work cannot deadlock on each other.
// A unit of work that loses a serialization race is re-run with a fresh snapshot,
// so fn re-validates against the winner's committed state.
func (s *Store) RunInTx(ctx context.Context, ls service.LockSet, fn func(tx service.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runOnce(ctx, ls, fn)
		if !isRetryable(err) {
			return err
		}
		txRetries.Inc()
		logger.Debug("retrying unit of work", "attempt", attempt, "error", err)
	}
	return fmt.Errorf("tx aborted after %d attempts: %w", maxTxAttempts, err)
}

func (s *Store) runOnce(ctx context.Context, ls service.LockSet, fn func(tx service.Tx) error) error {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockRows(ctx, tx, "assets", ls.Assets); err != nil {
		return err
	}
	if err := lockRows(ctx, tx, "users", ls.Users); err != nil {
		return err
	}
	if err := lockRows(ctx, tx, "rentals", ls.Rentals); err != nil {
		return err
	}

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", mapConstraint(err))
	}
	return nil
}

// View runs fn against the pool without a transaction.
func (s *Store) View(ctx context.Context, fn func(tx service.Tx) error) error {
	return fn(&pgTx{q: s.Db, readOnly: true})
}

func lockRows(ctx context.Context, tx pgx.Tx, table string, ids []uuid.UUID) error {
	// table is one of a fixed set of identifiers, never caller input.
	query := "SELECT 1 FROM " + table + " WHERE id = $1 FOR UPDATE"
	for _, id := range sortedIDs(ids) {
		if _, err := tx.Exec(ctx, query, id); err != nil {
			return fmt.Errorf("lock acquisition on %s failed: %w", table, err)
		}
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

// mapConstraint turns a violation of the open-rental partial unique indexes into
// the matching domain sentinel.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		switch pgErr.ConstraintName {
		case constraintOpenByAsset:
			return domain.ErrAssetRented
		case constraintOpenByUser:
			return domain.ErrUserRenting
		}
	}
	return err
}

// querier is satisfied by both pgx.Tx and *pgxpool.Pool.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTx struct {
	q        querier
	readOnly bool
}

const rentalColumns = "id, asset_id, user_id, start_date, expected_return_date, end_date, total, created_at, updated_at"

func (t *pgTx) FindAssetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	var a domain.Asset
	err := t.q.QueryRow(ctx,
		"SELECT id, name, daily_rate, fine_amount, available, created_at FROM assets WHERE id = $1", id,
	).Scan(&a.ID, &a.Name, &a.DailyRate, &a.FineAmount, &a.Available, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("asset query failed: %w", err)
	}
	return &a, nil
}

func (t *pgTx) SetAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	if t.readOnly {
		return errReadOnly
	}
	tag, err := t.q.Exec(ctx, "UPDATE assets SET available = $1 WHERE id = $2", available, id)
	logger.DatabaseResult("set_available", tag.RowsAffected(), err, "asset_id", id)
	if err != nil {
		return fmt.Errorf("asset update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *pgTx) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := t.q.QueryRow(ctx,
		"SELECT id, name, email, driver_license, created_at FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.DriverLicense, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("user query failed: %w", err)
	}
	return &u, nil
}

func (t *pgTx) FindRentalByID(ctx context.Context, id uuid.UUID) (*domain.Rental, error) {
	return t.findRental(ctx, "SELECT "+rentalColumns+" FROM rentals WHERE id = $1", id)
}

func (t *pgTx) FindOpenRentalByAsset(ctx context.Context, assetID uuid.UUID) (*domain.Rental, error) {
	return t.findRental(ctx, "SELECT "+rentalColumns+" FROM rentals WHERE asset_id = $1 AND end_date IS NULL", assetID)
}

func (t *pgTx) FindOpenRentalByUser(ctx context.Context, userID uuid.UUID) (*domain.Rental, error) {
	return t.findRental(ctx, "SELECT "+rentalColumns+" FROM rentals WHERE user_id = $1 AND end_date IS NULL", userID)
}

func (t *pgTx) findRental(ctx context.Context, query string, arg uuid.UUID) (*domain.Rental, error) {
	r, err := scanRental(t.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("rental query failed: %w", err)
	}
	return r, nil
}

func (t *pgTx) ListRentalsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Rental, error) {
	rows, err := t.q.Query(ctx,
		"SELECT "+rentalColumns+" FROM rentals WHERE user_id = $1 ORDER BY start_date DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("rental listing failed: %w", err)
	}
	defer rows.Close()

	rentals := []domain.Rental{}
	for rows.Next() {
		r, err := scanRental(rows)
		if err != nil {
			return nil, fmt.Errorf("rental scan failed: %w", err)
		}
		rentals = append(rentals, *r)
	}
	return rentals, rows.Err()
}

func (t *pgTx) CreateRental(ctx context.Context, r *domain.Rental) error {
	if t.readOnly {
		return errReadOnly
	}
	tag, err := t.q.Exec(ctx,
		"INSERT INTO rentals ("+rentalColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		r.ID, r.AssetID, r.UserID, r.StartDate, r.ExpectedReturnDate, r.EndDate, nullDecimal(r.Total), r.CreatedAt, r.UpdatedAt,
	)
	logger.DatabaseResult("create_rental", tag.RowsAffected(), err, "rental_id", r.ID)
	if err != nil {
		if mapped := mapConstraint(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("rental insert failed: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateRental(ctx context.Context, r *domain.Rental) error {
	if t.readOnly {
		return errReadOnly
	}
	tag, err := t.q.Exec(ctx,
		"UPDATE rentals SET expected_return_date = $1, end_date = $2, total = $3, updated_at = $4 WHERE id = $5",
		r.ExpectedReturnDate, r.EndDate, nullDecimal(r.Total), r.UpdatedAt, r.ID,
	)
	logger.DatabaseResult("update_rental", tag.RowsAffected(), err, "rental_id", r.ID)
	if err != nil {
		if mapped := mapConstraint(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("rental update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateAsset inserts a catalog asset. Catalog management lives outside the
// rental engine; this exists for seeding and tests.
func (s *Store) CreateAsset(ctx context.Context, a domain.Asset) error {
	_, err := s.Db.Exec(ctx,
		"INSERT INTO assets (id, name, daily_rate, fine_amount, available, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		a.ID, a.Name, Numeric(a.DailyRate), Numeric(a.FineAmount), a.Available, a.CreatedAt)
	return err
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.Db.Exec(ctx,
		"INSERT INTO users (id, name, email, driver_license, created_at) VALUES ($1, $2, $3, $4, $5)",
		u.ID, u.Name, u.Email, u.DriverLicense, u.CreatedAt)
	return err
}

func scanRental(row pgx.Row) (*domain.Rental, error) {
	var (
		r     domain.Rental
		end   *time.Time
		total decimal.NullDecimal
	)
	err := row.Scan(&r.ID, &r.AssetID, &r.UserID, &r.StartDate, &r.ExpectedReturnDate, &end, &total, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if end != nil {
		e := end.UTC()
		r.EndDate = &e
	}
	if total.Valid {
		r.Total = &total.Decimal
	}
	r.StartDate = r.StartDate.UTC()
	r.ExpectedReturnDate = r.ExpectedReturnDate.UTC()
	return &r, nil
}

// Numeric converts a decimal into the pgx numeric representation without
// passing through a float.
func Numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func nullDecimal(d *decimal.Decimal) pgtype.Numeric {
	if d == nil {
		return pgtype.Numeric{}
	}
	return Numeric(*d)
}
