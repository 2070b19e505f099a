// README: In-memory chat store for tests.
package chat

import (
	"context"
	"sync"

	"hail/internal/types"
)

type MemoryStore struct {
	mu     sync.RWMutex
	byRide map[types.ID][]*Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byRide: make(map[types.ID][]*Message)}
}

func (m *MemoryStore) Insert(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.byRide[msg.RideID] = append(m.byRide[msg.RideID], &cp)
	return nil
}

func (m *MemoryStore) History(ctx context.Context, rideID types.ID, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.byRide[rideID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}
