package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/punchamoorthee/rentalops/internal/domain"
)

// AssetDirectory looks up assets and flips their availability flag.
// Absent assets are reported as domain.ErrNotFound.
type AssetDirectory interface {
	FindAssetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	SetAvailable(ctx context.Context, id uuid.UUID, available bool) error
}

type UserDirectory interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// RentalLedger is the durable record of rentals. Find* methods report absence as domain.ErrNotFound.
// CreateRental and UpdateRental may report domain.ErrAssetRented or domain.ErrUserRenting
// when a uniqueness guard on open rentals fires.
type RentalLedger interface {
	FindRentalByID(ctx context.Context, id uuid.UUID) (*domain.Rental, error)
	FindOpenRentalByAsset(ctx context.Context, assetID uuid.UUID) (*domain.Rental, error)
	FindOpenRentalByUser(ctx context.Context, userID uuid.UUID) (*domain.Rental, error)
	ListRentalsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Rental, error)
	CreateRental(ctx context.Context, r *domain.Rental) error
	UpdateRental(ctx context.Context, r *domain.Rental) error
}

// Tx is the set of collaborators bound to one unit of work.
type Tx interface {
	AssetDirectory
	UserDirectory
	RentalLedger
}

// LockSet names the rows a unit of work must hold exclusively before fn runs.
type LockSet struct {
	Assets  []uuid.UUID
	Users   []uuid.UUID
	Rentals []uuid.UUID
}

// Store runs fn as a single serializable unit holding the locks in ls.
// If fn returns an error nothing it wrote is visible to anyone else.
// The Tx passed to fn must not be used after fn returns.
type Store interface {
	RunInTx(ctx context.Context, ls LockSet, fn func(tx Tx) error) error
	// View runs fn against committed state without taking locks.
	View(ctx context.Context, fn func(tx Tx) error) error
}
