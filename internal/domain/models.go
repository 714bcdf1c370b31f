package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store-level sentinels. Collaborators return these so the engine can tell
// an absent record or a lost uniqueness race apart from an I/O failure.
var (
	ErrNotFound    = errors.New("record not found")
	ErrAssetRented = errors.New("asset already has an open rental")
	ErrUserRenting = errors.New("user already has an open rental")
)

// Asset is a bookable vehicle. Available is only flipped by the rental engine.
type Asset struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	DailyRate  decimal.Decimal `json:"daily_rate"`
	FineAmount decimal.Decimal `json:"fine_amount"`
	Available  bool            `json:"available"`
	CreatedAt  time.Time       `json:"created_at"`
}

type User struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	DriverLicense string    `json:"driver_license"`
	CreatedAt     time.Time `json:"created_at"`
}

// Rental records one booking of an asset by a user.
// EndDate and Total are nil while the rental is open and are written exactly once on close.
type Rental struct {
	ID                 uuid.UUID        `json:"id"`
	AssetID            uuid.UUID        `json:"asset_id"`
	UserID             uuid.UUID        `json:"user_id"`
	StartDate          time.Time        `json:"start_date"`
	ExpectedReturnDate time.Time        `json:"expected_return_date"`
	EndDate            *time.Time       `json:"end_date"`
	Total              *decimal.Decimal `json:"total"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// IsOpen reports whether the rental has not been closed yet.
func (r *Rental) IsOpen() bool {
	return r.EndDate == nil
}

// OpenRentalRequest is the DTO for incoming rental requests.
type OpenRentalRequest struct {
	UserID             uuid.UUID `json:"user_id"`
	AssetID            uuid.UUID `json:"asset_id"`
	ExpectedReturnDate time.Time `json:"expected_return_date"`
}

// CloseRentalRequest is the DTO for returning an asset.
type CloseRentalRequest struct {
	UserID uuid.UUID `json:"user_id"`
}
