package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/service"
)

var now = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func openRental(asset, user uuid.UUID) *domain.Rental {
	return &domain.Rental{
		ID:                 uuid.New(),
		AssetID:            asset,
		UserID:             user,
		StartDate:          now,
		ExpectedReturnDate: now.Add(48 * time.Hour),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestMemory_FailedUnitOfWorkIsDiscarded(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	SeedMemory(m, 1, now)
	asset, user := SeedAssetID(1), SeedUserID(1)
	boom := errors.New("boom")

	err := m.RunInTx(ctx, service.LockSet{Assets: []uuid.UUID{asset}}, func(tx service.Tx) error {
		require.NoError(t, tx.CreateRental(ctx, openRental(asset, user)))
		require.NoError(t, tx.SetAvailable(ctx, asset, false))

		// staged writes are visible inside the unit of work
		_, err := tx.FindOpenRentalByAsset(ctx, asset)
		require.NoError(t, err)
		a, err := tx.FindAssetByID(ctx, asset)
		require.NoError(t, err)
		assert.False(t, a.Available)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 0, m.OpenRentalCount(asset))
	err = m.View(ctx, func(tx service.Tx) error {
		a, err := tx.FindAssetByID(ctx, asset)
		require.NoError(t, err)
		assert.True(t, a.Available)
		return nil
	})
	assert.NoError(t, err)
}

func TestMemory_OpenRentalGuards(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	SeedMemory(m, 2, now)

	first := openRental(SeedAssetID(1), SeedUserID(1))
	err := m.RunInTx(ctx, service.LockSet{}, func(tx service.Tx) error {
		return tx.CreateRental(ctx, first)
	})
	require.NoError(t, err)

	err = m.RunInTx(ctx, service.LockSet{}, func(tx service.Tx) error {
		return tx.CreateRental(ctx, openRental(SeedAssetID(1), SeedUserID(2)))
	})
	assert.ErrorIs(t, err, domain.ErrAssetRented)

	err = m.RunInTx(ctx, service.LockSet{}, func(tx service.Tx) error {
		return tx.CreateRental(ctx, openRental(SeedAssetID(2), SeedUserID(1)))
	})
	assert.ErrorIs(t, err, domain.ErrUserRenting)

	// closing frees both indexes
	err = m.RunInTx(ctx, service.LockSet{}, func(tx service.Tx) error {
		r, err := tx.FindRentalByID(ctx, first.ID)
		if err != nil {
			return err
		}
		end := now.Add(time.Hour)
		total := decimal.NewFromInt(100)
		r.EndDate, r.Total = &end, &total
		return tx.UpdateRental(ctx, r)
	})
	require.NoError(t, err)

	err = m.View(ctx, func(tx service.Tx) error {
		_, err := tx.FindOpenRentalByUser(ctx, SeedUserID(1))
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_ViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	SeedMemory(m, 1, now)

	err := m.View(ctx, func(tx service.Tx) error {
		return tx.SetAvailable(ctx, SeedAssetID(1), false)
	})
	assert.ErrorIs(t, err, errReadOnly)

	err = m.View(ctx, func(tx service.Tx) error {
		return tx.CreateRental(ctx, openRental(SeedAssetID(1), SeedUserID(1)))
	})
	assert.ErrorIs(t, err, errReadOnly)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	SeedMemory(m, 1, now)
	r := openRental(SeedAssetID(1), SeedUserID(1))
	require.NoError(t, m.RunInTx(ctx, service.LockSet{}, func(tx service.Tx) error {
		return tx.CreateRental(ctx, r)
	}))

	// mutating the caller's record must not reach the store
	end := now
	r.EndDate = &end

	assert.Equal(t, 1, m.OpenRentalCount(SeedAssetID(1)))
}

func TestMemory_LockWaitHonoursContext(t *testing.T) {
	m := NewMemory()
	asset := uuid.New()
	held := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = m.RunInTx(context.Background(), service.LockSet{Assets: []uuid.UUID{asset}}, func(service.Tx) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.RunInTx(ctx, service.LockSet{Assets: []uuid.UUID{asset}}, func(service.Tx) error {
		t.Fatal("unit of work ran without the lock")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(done)
}

func TestLockKeysOrder(t *testing.T) {
	a1 := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	a2 := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	u := uuid.MustParse("00000000-0000-0000-0000-000000000009")

	keys := lockKeys(service.LockSet{Assets: []uuid.UUID{a1, a2, a1}, Users: []uuid.UUID{u}})

	require.Len(t, keys, 3)
	assert.Equal(t, "asset:"+a2.String(), keys[0])
	assert.Equal(t, "asset:"+a1.String(), keys[1])
	assert.True(t, strings.HasPrefix(keys[2], "user:"))
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	release, err := k.lockAll(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, k.locks, 2)

	release()
	assert.Empty(t, k.locks)
}
