package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/rentalops/internal/clock"
	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/logger"
)

// DefaultMinimumRentalHours is the shortest allowed gap between booking and expected return.
const DefaultMinimumRentalHours = 24

type RentalService struct {
	store    Store
	clock    clock.Clock
	minHours int
	log      *slog.Logger
}

type Option func(*RentalService)

// WithMinimumRentalHours overrides DefaultMinimumRentalHours.
func WithMinimumRentalHours(h int) Option {
	return func(s *RentalService) { s.minHours = h }
}

func NewRentalService(store Store, clk clock.Clock, opts ...Option) *RentalService {
	s := &RentalService{
		store:    store,
		clock:    clk,
		minHours: DefaultMinimumRentalHours,
		log:      logger.WithService("rentals"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenRental books assetID to userID until expectedReturn.
//
// All checks and writes run inside one unit of work that holds the asset and the
// user exclusively, so two callers racing for the same asset cannot both succeed.
// The return window is measured from the current instant, not from the rental's
// start_date; the two are read from the clock separately and may differ slightly.
func (s *RentalService) OpenRental(ctx context.Context, userID, assetID uuid.UUID, expectedReturn time.Time) (*domain.Rental, error) {
	var rental *domain.Rental

	// Unit of work may be re-run by the store on serialization conflicts.
	locks := LockSet{Assets: []uuid.UUID{assetID}, Users: []uuid.UUID{userID}}
	err := s.store.RunInTx(ctx, locks, func(tx Tx) error {
		// 1. Asset exists
		asset, err := tx.FindAssetByID(ctx, assetID)
		if errors.Is(err, domain.ErrNotFound) {
			return ErrAssetNotFound
		}
		if err != nil {
			return collaboratorFailure("asset lookup", err)
		}

		// 2. Asset free
		_, err = tx.FindOpenRentalByAsset(ctx, assetID)
		if err == nil {
			return ErrAssetUnavailable
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return collaboratorFailure("open rental lookup by asset", err)
		}
		if !asset.Available {
			return ErrAssetUnavailable
		}

		// 3. User exists
		if _, err := tx.FindUserByID(ctx, userID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return ErrUserNotFound
			}
			return collaboratorFailure("user lookup", err)
		}

		// 4. User free
		_, err = tx.FindOpenRentalByUser(ctx, userID)
		if err == nil {
			return ErrUserAlreadyRenting
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return collaboratorFailure("open rental lookup by user", err)
		}

		// 5. Minimum duration
		now := s.clock.Now()
		if s.clock.HoursBetween(now, expectedReturn) < s.minHours {
			return ErrInvalidReturnWindow
		}

		// 6. Record
		r := &domain.Rental{
			ID:                 uuid.New(),
			AssetID:            assetID,
			UserID:             userID,
			StartDate:          now,
			ExpectedReturnDate: expectedReturn.UTC(),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.CreateRental(ctx, r); err != nil {
			return err
		}

		// 7. Availability
		if err := tx.SetAvailable(ctx, assetID, false); err != nil {
			return err
		}

		rental = r
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, "open", err, "asset_id", assetID, "user_id", userID)
	}

	rentalsOpened.Inc()
	s.log.InfoContext(ctx, "rental opened",
		"rental_id", rental.ID, "asset_id", assetID, "user_id", userID,
		"expected_return_date", rental.ExpectedReturnDate)
	return rental, nil
}

// CloseRental returns the asset of rentalID and charges the rental.
//
// userID is advisory: it is logged but the caller is not checked against the renter.
// A rental that is already closed is rejected with ErrRentalClosed and keeps its total.
func (s *RentalService) CloseRental(ctx context.Context, rentalID, userID uuid.UUID) (*domain.Rental, error) {
	// Resolve the asset first so the unit of work can lock it together with the rental.
	var assetID uuid.UUID
	err := s.store.View(ctx, func(tx Tx) error {
		r, err := tx.FindRentalByID(ctx, rentalID)
		if errors.Is(err, domain.ErrNotFound) {
			return ErrRentalNotFound
		}
		if err != nil {
			return collaboratorFailure("rental lookup", err)
		}
		assetID = r.AssetID
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, "close", err, "rental_id", rentalID, "user_id", userID)
	}

	var (
		rental *domain.Rental
		charge Charge
	)
	locks := LockSet{Assets: []uuid.UUID{assetID}, Rentals: []uuid.UUID{rentalID}}
	err = s.store.RunInTx(ctx, locks, func(tx Tx) error {
		r, err := tx.FindRentalByID(ctx, rentalID)
		if errors.Is(err, domain.ErrNotFound) {
			return ErrRentalNotFound
		}
		if err != nil {
			return collaboratorFailure("rental lookup", err)
		}
		if !r.IsOpen() {
			return ErrRentalClosed
		}

		asset, err := tx.FindAssetByID(ctx, r.AssetID)
		if errors.Is(err, domain.ErrNotFound) {
			return ErrAssetNotFound
		}
		if err != nil {
			return collaboratorFailure("asset lookup", err)
		}

		now := s.clock.Now()
		charge = ComputeCharge(s.clock, asset, r, now)

		r.EndDate = &now
		r.Total = &charge.Total
		r.UpdatedAt = now
		if err := tx.UpdateRental(ctx, r); err != nil {
			return err
		}

		if err := tx.SetAvailable(ctx, r.AssetID, true); err != nil {
			return err
		}

		rental = r
		return nil
	})
	if err != nil {
		return nil, s.reject(ctx, "close", err, "rental_id", rentalID, "user_id", userID)
	}

	rentalsClosed.Inc()
	revenueTotal.Add(charge.Total.InexactFloat64())
	s.log.InfoContext(ctx, "rental closed",
		"rental_id", rental.ID, "asset_id", rental.AssetID, "user_id", rental.UserID,
		"closed_by", userID, "daily_periods", charge.DailyPeriods,
		"overdue_days", charge.OverdueDays, "total", charge.Total.StringFixed(2))
	return rental, nil
}

// GetRental returns a single rental.
func (s *RentalService) GetRental(ctx context.Context, id uuid.UUID) (*domain.Rental, error) {
	var rental *domain.Rental
	err := s.store.View(ctx, func(tx Tx) error {
		r, err := tx.FindRentalByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return ErrRentalNotFound
		}
		if err != nil {
			return collaboratorFailure("rental lookup", err)
		}
		rental = r
		return nil
	})
	if err != nil {
		return nil, classify("get rental", err)
	}
	return rental, nil
}

// ListUserRentals returns every rental of userID, open and closed, newest first.
func (s *RentalService) ListUserRentals(ctx context.Context, userID uuid.UUID) ([]domain.Rental, error) {
	var rentals []domain.Rental
	err := s.store.View(ctx, func(tx Tx) error {
		if _, err := tx.FindUserByID(ctx, userID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return ErrUserNotFound
			}
			return collaboratorFailure("user lookup", err)
		}
		list, err := tx.ListRentalsByUser(ctx, userID)
		if err != nil {
			return collaboratorFailure("rental listing", err)
		}
		rentals = list
		return nil
	})
	if err != nil {
		return nil, classify("list rentals", err)
	}
	return rentals, nil
}

func (s *RentalService) GetAsset(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	var asset *domain.Asset
	err := s.store.View(ctx, func(tx Tx) error {
		a, err := tx.FindAssetByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return ErrAssetNotFound
		}
		if err != nil {
			return collaboratorFailure("asset lookup", err)
		}
		asset = a
		return nil
	})
	if err != nil {
		return nil, classify("get asset", err)
	}
	return asset, nil
}

func (s *RentalService) reject(ctx context.Context, op string, err error, args ...any) error {
	e := classify(op+" rental", err)
	rentalRejections.WithLabelValues(op, string(e.Kind)).Inc()

	args = append(args, "kind", e.Kind, "error", e)
	if e.Transient() {
		s.log.ErrorContext(ctx, "rental "+op+" failed", args...)
	} else {
		s.log.InfoContext(ctx, "rental "+op+" rejected", args...)
	}
	return e
}

// classify maps any error escaping a unit of work onto the failure taxonomy.
// A uniqueness guard firing at commit means the race was lost and reads the same
// as the pre-check outcome.
func classify(op string, err error) *Error {
	var e *Error
	switch {
	case errors.As(err, &e):
		return e
	case errors.Is(err, domain.ErrAssetRented):
		return ErrAssetUnavailable
	case errors.Is(err, domain.ErrUserRenting):
		return ErrUserAlreadyRenting
	default:
		return collaboratorFailure(op, err)
	}
}
