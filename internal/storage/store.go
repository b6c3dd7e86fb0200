// Package storage persists the authoritative user, ride and bid records.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/henriqu3-99/Lehgo/internal/models"
)

var ErrNotFound = errors.New("storage: not found")

// Store defines persistence operations for the gateway.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id string) (*models.Ride, error)
	AcceptRide(ctx context.Context, rideID, driverID string, amount int64) error
	CreateBid(ctx context.Context, b *models.BidRecord) error
	BidsForRide(ctx context.Context, rideID string) ([]models.BidRecord, error)
}

type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
	rides map[string]*models.Ride
	bids  map[string][]*models.BidRecord // keyed by ride id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*models.User),
		rides: make(map[string]*models.Ride),
		bids:  make(map[string][]*models.BidRecord),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) CreateRide(_ context.Context, r *models.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRide(_ context.Context, id string) (*models.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) AcceptRide(_ context.Context, rideID, driverID string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok {
		return ErrNotFound
	}
	r.DriverID = driverID
	r.Price = amount
	r.Status = models.RideAccepted
	r.UpdatedAt = time.Now()
	for _, b := range m.bids[rideID] {
		if b.DriverID == driverID && b.Amount == amount {
			b.Status = models.BidAccepted
		}
	}
	return nil
}

func (m *MemoryStore) CreateBid(_ context.Context, b *models.BidRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bids[b.RideID] = append(m.bids[b.RideID], &cp)
	return nil
}

func (m *MemoryStore) BidsForRide(_ context.Context, rideID string) ([]models.BidRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.BidRecord, 0, len(m.bids[rideID]))
	for _, b := range m.bids[rideID] {
		out = append(out, *b)
	}
	return out, nil
}
