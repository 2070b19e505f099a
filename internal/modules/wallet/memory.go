// README: In-memory account store; one mutex keeps both transfer legs in a
// single critical section.
package wallet

import (
	"context"
	"sync"
	"time"

	"hail/internal/types"
)

type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[types.ID]*Account
	byName   map[string]types.ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[types.ID]*Account),
		byName:   make(map[string]types.ID),
	}
}

func (m *MemoryStore) CreateAccount(ctx context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[a.Name]; exists {
		return ErrNameTaken
	}
	cp := *a
	m.accounts[a.ID] = &cp
	m.byName[a.Name] = a.ID
	return nil
}

func (m *MemoryStore) GetAccount(ctx context.Context, id types.ID) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id)
}

func (m *MemoryStore) GetByName(ctx context.Context, name string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return m.getLocked(id)
}

func (m *MemoryStore) Deposit(ctx context.Context, id types.ID, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, ErrNotFound
	}
	a.Balance.Amount += amount
	return a.Balance.Amount, nil
}

func (m *MemoryStore) Withdraw(ctx context.Context, id types.ID, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return 0, ErrNotFound
	}
	if a.Balance.Amount < amount {
		return 0, ErrInsufficientFunds
	}
	a.Balance.Amount -= amount
	return a.Balance.Amount, nil
}

func (m *MemoryStore) Transfer(ctx context.Context, payer, payee types.ID, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	from, ok := m.accounts[payer]
	if !ok {
		return ErrNotFound
	}
	to, ok := m.accounts[payee]
	if !ok {
		return ErrNotFound
	}
	if from.Balance.Amount < amount {
		return ErrInsufficientFunds
	}
	from.Balance.Amount -= amount
	to.Balance.Amount += amount
	return nil
}

func (m *MemoryStore) SetPresence(ctx context.Context, id types.ID, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	a.Online = online
	a.LastActiveAt = &now
	return nil
}

func (m *MemoryStore) UpdatePosition(ctx context.Context, id types.ID, pos types.Point, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	p := pos
	a.Position = &p
	a.Online = true
	a.LastActiveAt = &at
	return nil
}

func (m *MemoryStore) CountByRole(ctx context.Context) (map[types.Role]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[types.Role]int)
	for _, a := range m.accounts {
		out[a.Role]++
	}
	return out, nil
}

func (m *MemoryStore) getLocked(id types.ID) (*Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	if a.Position != nil {
		p := *a.Position
		cp.Position = &p
	}
	return &cp, nil
}
