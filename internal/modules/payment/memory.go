// README: In-memory settlement store for tests. The ride id is reserved under
// the lock before the ledger moves funds, so two concurrent settles of the
// same ride resolve to exactly one completed record.
package payment

import (
	"context"
	"sync"

	"hail/internal/types"
)

// Ledger is the slice of the wallet the settlement store needs.
type Ledger interface {
	Transfer(ctx context.Context, payer, payee types.ID, amount int64) error
}

type MemoryStore struct {
	mu       sync.Mutex
	byRide   map[types.ID]*Settlement
	reserved map[types.ID]bool
	all      []*Settlement
	ledger   Ledger
}

func NewMemoryStore(ledger Ledger) *MemoryStore {
	return &MemoryStore{
		byRide:   make(map[types.ID]*Settlement),
		reserved: make(map[types.ID]bool),
		ledger:   ledger,
	}
}

func (s *MemoryStore) CreateCompleted(ctx context.Context, stl *Settlement) error {
	s.mu.Lock()
	if s.byRide[stl.RideID] != nil || s.reserved[stl.RideID] {
		s.mu.Unlock()
		return ErrAlreadyPaid
	}
	// Reserve the ride so a concurrent settle fails fast. The reservation is
	// invisible to readers; the record is published only after the transfer
	// commits, matching the transaction boundary of the pg store.
	s.reserved[stl.RideID] = true
	s.mu.Unlock()

	if err := s.ledger.Transfer(ctx, stl.PayerID, stl.PayeeID, stl.Amount.Amount); err != nil {
		s.mu.Lock()
		delete(s.reserved, stl.RideID)
		s.mu.Unlock()
		return err
	}

	cp := *stl
	s.mu.Lock()
	delete(s.reserved, stl.RideID)
	s.byRide[stl.RideID] = &cp
	s.all = append(s.all, &cp)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetByRide(ctx context.Context, rideID types.ID) (*Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stl, ok := s.byRide[rideID]
	if !ok {
		return nil, nil
	}
	cp := *stl
	return &cp, nil
}

func (s *MemoryStore) ListByAccount(ctx context.Context, accountID types.ID) ([]*Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Settlement
	for i := len(s.all) - 1; i >= 0; i-- {
		if s.all[i].PayerID == accountID || s.all[i].PayeeID == accountID {
			cp := *s.all[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) EarningsTotal(ctx context.Context, payeeID types.ID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, stl := range s.all {
		if stl.PayeeID == payeeID {
			total += stl.Amount.Amount
		}
	}
	return total, nil
}
