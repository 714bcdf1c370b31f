package service_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/service"
)

// MockStore hands its Tx to every unit of work, or fails before running it when err is set.
type MockStore struct {
	Tx  *MockTx
	err error
}

func (m *MockStore) RunInTx(_ context.Context, _ service.LockSet, fn func(tx service.Tx) error) error {
	if m.err != nil {
		return m.err
	}
	return fn(m.Tx)
}

func (m *MockStore) View(_ context.Context, fn func(tx service.Tx) error) error {
	return fn(m.Tx)
}

type MockTx struct {
	mock.Mock
}

func (m *MockTx) FindAssetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Asset), args.Error(1)
}

func (m *MockTx) SetAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	args := m.Called(ctx, id, available)
	return args.Error(0)
}

func (m *MockTx) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockTx) FindRentalByID(ctx context.Context, id uuid.UUID) (*domain.Rental, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rental), args.Error(1)
}

func (m *MockTx) FindOpenRentalByAsset(ctx context.Context, assetID uuid.UUID) (*domain.Rental, error) {
	args := m.Called(ctx, assetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rental), args.Error(1)
}

func (m *MockTx) FindOpenRentalByUser(ctx context.Context, userID uuid.UUID) (*domain.Rental, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rental), args.Error(1)
}

func (m *MockTx) ListRentalsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Rental, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Rental), args.Error(1)
}

func (m *MockTx) CreateRental(ctx context.Context, r *domain.Rental) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockTx) UpdateRental(ctx context.Context, r *domain.Rental) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}
