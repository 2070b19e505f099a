// README: In-memory rating store for tests.
package rating

import (
	"context"
	"sync"

	"hail/internal/types"
)

type MemoryStore struct {
	mu      sync.RWMutex
	ratings []*Rating
	seen    map[string]bool // rideID+raterID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]bool)}
}

func (m *MemoryStore) Insert(ctx context.Context, r *Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(r.RideID) + "/" + string(r.RaterID)
	if m.seen[key] {
		return ErrDuplicate
	}
	m.seen[key] = true
	cp := *r
	m.ratings = append(m.ratings, &cp)
	return nil
}

func (m *MemoryStore) ListByRecipient(ctx context.Context, recipientID types.ID) ([]*Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Rating
	for i := len(m.ratings) - 1; i >= 0; i-- {
		if m.ratings[i].RecipientID == recipientID {
			cp := *m.ratings[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) Summarize(ctx context.Context, recipientID types.ID) (Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum Summary
	var total int
	for _, r := range m.ratings {
		if r.RecipientID == recipientID {
			total += r.Score
			sum.Count++
		}
	}
	if sum.Count > 0 {
		sum.Average = float64(total) / float64(sum.Count)
	}
	return sum, nil
}
