package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/punchamoorthee/rentalops/internal/domain"
	"github.com/punchamoorthee/rentalops/internal/service"
)

var errReadOnly = errors.New("write attempted in a read-only view")

// Memory is a single-process store. Units of work serialize on per-row keyed
// locks and stage their writes, which are applied together on commit.
type Memory struct {
	mu      sync.RWMutex
	assets  map[uuid.UUID]domain.Asset
	users   map[uuid.UUID]domain.User
	rentals map[uuid.UUID]domain.Rental

	// open rental id per asset and per user
	openByAsset map[uuid.UUID]uuid.UUID
	openByUser  map[uuid.UUID]uuid.UUID

	locks *keyedMutex
}

func NewMemory() *Memory {
	return &Memory{
		assets:      make(map[uuid.UUID]domain.Asset),
		users:       make(map[uuid.UUID]domain.User),
		rentals:     make(map[uuid.UUID]domain.Rental),
		openByAsset: make(map[uuid.UUID]uuid.UUID),
		openByUser:  make(map[uuid.UUID]uuid.UUID),
		locks:       newKeyedMutex(),
	}
}

// AddAsset inserts or replaces a catalog asset.
func (m *Memory) AddAsset(a domain.Asset) {
	m.mu.Lock()
	m.assets[a.ID] = a
	m.mu.Unlock()
}

func (m *Memory) AddUser(u domain.User) {
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
}

// OpenRentalCount counts rentals without an end date for assetID. Used to check invariants.
func (m *Memory) OpenRentalCount(assetID uuid.UUID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.rentals {
		if r.AssetID == assetID && r.EndDate == nil {
			n++
		}
	}
	return n
}

func (m *Memory) RunInTx(ctx context.Context, ls service.LockSet, fn func(tx service.Tx) error) error {
	release, err := m.locks.lockAll(ctx, lockKeys(ls))
	if err != nil {
		return fmt.Errorf("lock acquisition failed: %w", err)
	}
	defer release()

	tx := newMemTx(m)
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return m.commit(tx)
}

func (m *Memory) View(ctx context.Context, fn func(tx service.Tx) error) error {
	tx := newMemTx(m)
	tx.readOnly = true
	return fn(tx)
}

func (m *Memory) commit(tx *memTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Same guards as the partial unique indexes of the postgres schema.
	for _, r := range tx.rentals {
		if r.EndDate != nil {
			continue
		}
		if id, ok := m.openByAsset[r.AssetID]; ok && id != r.ID {
			return domain.ErrAssetRented
		}
		if id, ok := m.openByUser[r.UserID]; ok && id != r.ID {
			return domain.ErrUserRenting
		}
	}

	for id, r := range tx.rentals {
		m.rentals[id] = r
		if r.EndDate == nil {
			m.openByAsset[r.AssetID] = r.ID
			m.openByUser[r.UserID] = r.ID
			continue
		}
		if m.openByAsset[r.AssetID] == r.ID {
			delete(m.openByAsset, r.AssetID)
		}
		if m.openByUser[r.UserID] == r.ID {
			delete(m.openByUser, r.UserID)
		}
	}
	for id, available := range tx.available {
		a := m.assets[id]
		a.Available = available
		m.assets[id] = a
	}
	return nil
}

type memTx struct {
	m         *Memory
	readOnly  bool
	rentals   map[uuid.UUID]domain.Rental
	available map[uuid.UUID]bool
}

func newMemTx(m *Memory) *memTx {
	return &memTx{
		m:         m,
		rentals:   make(map[uuid.UUID]domain.Rental),
		available: make(map[uuid.UUID]bool),
	}
}

func (t *memTx) FindAssetByID(_ context.Context, id uuid.UUID) (*domain.Asset, error) {
	t.m.mu.RLock()
	a, ok := t.m.assets[id]
	t.m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	if v, staged := t.available[id]; staged {
		a.Available = v
	}
	return &a, nil
}

func (t *memTx) SetAvailable(_ context.Context, id uuid.UUID, available bool) error {
	if t.readOnly {
		return errReadOnly
	}
	t.m.mu.RLock()
	_, ok := t.m.assets[id]
	t.m.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}
	t.available[id] = available
	return nil
}

func (t *memTx) FindUserByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	t.m.mu.RLock()
	u, ok := t.m.users[id]
	t.m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (t *memTx) FindRentalByID(_ context.Context, id uuid.UUID) (*domain.Rental, error) {
	if r, ok := t.rentals[id]; ok {
		return cloneRental(r), nil
	}
	t.m.mu.RLock()
	r, ok := t.m.rentals[id]
	t.m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRental(r), nil
}

func (t *memTx) FindOpenRentalByAsset(ctx context.Context, assetID uuid.UUID) (*domain.Rental, error) {
	return t.findOpen(ctx, func(r domain.Rental) bool { return r.AssetID == assetID }, func() (uuid.UUID, bool) {
		id, ok := t.m.openByAsset[assetID]
		return id, ok
	})
}

func (t *memTx) FindOpenRentalByUser(ctx context.Context, userID uuid.UUID) (*domain.Rental, error) {
	return t.findOpen(ctx, func(r domain.Rental) bool { return r.UserID == userID }, func() (uuid.UUID, bool) {
		id, ok := t.m.openByUser[userID]
		return id, ok
	})
}

// findOpen merges staged rentals over the committed open-rental index.
func (t *memTx) findOpen(ctx context.Context, match func(domain.Rental) bool, committed func() (uuid.UUID, bool)) (*domain.Rental, error) {
	for _, r := range t.rentals {
		if match(r) && r.EndDate == nil {
			return cloneRental(r), nil
		}
	}

	t.m.mu.RLock()
	id, ok := committed()
	t.m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	r, err := t.FindRentalByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.EndDate != nil {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (t *memTx) ListRentalsByUser(_ context.Context, userID uuid.UUID) ([]domain.Rental, error) {
	merged := make(map[uuid.UUID]domain.Rental)
	t.m.mu.RLock()
	for id, r := range t.m.rentals {
		if r.UserID == userID {
			merged[id] = r
		}
	}
	t.m.mu.RUnlock()
	for id, r := range t.rentals {
		if r.UserID == userID {
			merged[id] = r
		}
	}

	out := make([]domain.Rental, 0, len(merged))
	for _, r := range merged {
		out = append(out, *cloneRental(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (t *memTx) CreateRental(ctx context.Context, r *domain.Rental) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, err := t.FindRentalByID(ctx, r.ID); err == nil {
		return fmt.Errorf("rental %s already exists", r.ID)
	}
	if r.EndDate == nil {
		if _, err := t.FindOpenRentalByAsset(ctx, r.AssetID); err == nil {
			return domain.ErrAssetRented
		}
		if _, err := t.FindOpenRentalByUser(ctx, r.UserID); err == nil {
			return domain.ErrUserRenting
		}
	}
	t.rentals[r.ID] = *cloneRental(*r)
	return nil
}

func (t *memTx) UpdateRental(ctx context.Context, r *domain.Rental) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, err := t.FindRentalByID(ctx, r.ID); err != nil {
		return err
	}
	t.rentals[r.ID] = *cloneRental(*r)
	return nil
}

func cloneRental(r domain.Rental) *domain.Rental {
	if r.EndDate != nil {
		end := *r.EndDate
		r.EndDate = &end
	}
	if r.Total != nil {
		total := *r.Total
		r.Total = &total
	}
	return &r
}
