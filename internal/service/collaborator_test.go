package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/punchamoorthee/rentalops/internal/clock"
	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/service"
)

func TestOpenRental_CollaboratorFailures(t *testing.T) {
	ctx := context.Background()
	assetID, userID := uuid.New(), uuid.New()
	car := &domain.Asset{ID: assetID, DailyRate: decimal.NewFromInt(100), FineAmount: decimal.NewFromInt(60), Available: true}
	driver := &domain.User{ID: userID}
	connReset := errors.New("connection reset by peer")

	t.Run("Asset Lookup Fails", func(t *testing.T) {
		tx := new(MockTx)
		tx.On("FindAssetByID", ctx, assetID).Return(nil, connReset)
		svc := service.NewRentalService(&MockStore{Tx: tx}, clock.NewFixed(epoch))

		_, err := svc.OpenRental(ctx, userID, assetID, epoch.Add(48*time.Hour))
		assert.ErrorIs(t, err, service.ErrCollaborator)
		assert.ErrorIs(t, err, connReset)

		var e *service.Error
		assert.True(t, errors.As(err, &e))
		assert.True(t, e.Transient())
		tx.AssertNotCalled(t, "CreateRental", mock.Anything, mock.Anything)
	})

	t.Run("Lost Race At Commit Reads As Unavailable", func(t *testing.T) {
		tx := new(MockTx)
		tx.On("FindAssetByID", ctx, assetID).Return(car, nil)
		tx.On("FindOpenRentalByAsset", ctx, assetID).Return(nil, domain.ErrNotFound)
		tx.On("FindUserByID", ctx, userID).Return(driver, nil)
		tx.On("FindOpenRentalByUser", ctx, userID).Return(nil, domain.ErrNotFound)
		tx.On("CreateRental", ctx, mock.AnythingOfType("*domain.Rental")).Return(domain.ErrAssetRented)
		svc := service.NewRentalService(&MockStore{Tx: tx}, clock.NewFixed(epoch))

		_, err := svc.OpenRental(ctx, userID, assetID, epoch.Add(48*time.Hour))
		assert.ErrorIs(t, err, service.ErrAssetUnavailable)
		assert.False(t, service.ErrAssetUnavailable.Transient())
		tx.AssertNotCalled(t, "SetAvailable", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Availability Flip Fails", func(t *testing.T) {
		tx := new(MockTx)
		tx.On("FindAssetByID", ctx, assetID).Return(car, nil)
		tx.On("FindOpenRentalByAsset", ctx, assetID).Return(nil, domain.ErrNotFound)
		tx.On("FindUserByID", ctx, userID).Return(driver, nil)
		tx.On("FindOpenRentalByUser", ctx, userID).Return(nil, domain.ErrNotFound)
		tx.On("CreateRental", ctx, mock.AnythingOfType("*domain.Rental")).Return(nil)
		tx.On("SetAvailable", ctx, assetID, false).Return(connReset)
		svc := service.NewRentalService(&MockStore{Tx: tx}, clock.NewFixed(epoch))

		r, err := svc.OpenRental(ctx, userID, assetID, epoch.Add(48*time.Hour))
		assert.Nil(t, r)
		assert.Equal(t, service.KindCollaboratorFailure, service.KindOf(err))
		tx.AssertExpectations(t)
	})

	t.Run("Store Unreachable", func(t *testing.T) {
		svc := service.NewRentalService(&MockStore{err: context.DeadlineExceeded}, clock.NewFixed(epoch))

		_, err := svc.OpenRental(ctx, userID, assetID, epoch.Add(48*time.Hour))
		assert.ErrorIs(t, err, service.ErrCollaborator)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestCloseRental_WritesOnce(t *testing.T) {
	ctx := context.Background()
	assetID, userID, rentalID := uuid.New(), uuid.New(), uuid.New()
	car := &domain.Asset{ID: assetID, DailyRate: decimal.NewFromInt(100), FineAmount: decimal.NewFromInt(60)}
	open := &domain.Rental{
		ID:                 rentalID,
		AssetID:            assetID,
		UserID:             userID,
		StartDate:          epoch,
		ExpectedReturnDate: epoch.Add(24 * time.Hour),
	}
	clk := clock.NewFixed(epoch.Add(72 * time.Hour))

	tx := new(MockTx)
	tx.On("FindRentalByID", ctx, rentalID).Return(open, nil)
	tx.On("FindAssetByID", ctx, assetID).Return(car, nil)
	tx.On("UpdateRental", ctx, mock.MatchedBy(func(r *domain.Rental) bool {
		return r.ID == rentalID && r.EndDate != nil && r.Total != nil && r.Total.Equal(decimal.NewFromInt(420))
	})).Return(nil).Once()
	tx.On("SetAvailable", ctx, assetID, true).Return(nil).Once()
	svc := service.NewRentalService(&MockStore{Tx: tx}, clk)

	closed, err := svc.CloseRental(ctx, rentalID, userID)
	assert.NoError(t, err)
	assert.True(t, closed.EndDate.Equal(clk.Now()))
	tx.AssertExpectations(t)
	tx.AssertNotCalled(t, "CreateRental", mock.Anything, mock.Anything)
}

func TestCloseRental_AssetMissing(t *testing.T) {
	ctx := context.Background()
	rentalID := uuid.New()
	rental := &domain.Rental{ID: rentalID, AssetID: uuid.New(), StartDate: epoch, ExpectedReturnDate: epoch.Add(24 * time.Hour)}

	tx := new(MockTx)
	tx.On("FindRentalByID", ctx, rentalID).Return(rental, nil)
	tx.On("FindAssetByID", ctx, rental.AssetID).Return(nil, domain.ErrNotFound)
	svc := service.NewRentalService(&MockStore{Tx: tx}, clock.NewFixed(epoch))

	_, err := svc.CloseRental(ctx, rentalID, uuid.New())
	assert.ErrorIs(t, err, service.ErrAssetNotFound)
	tx.AssertNotCalled(t, "UpdateRental", mock.Anything, mock.Anything)
}
