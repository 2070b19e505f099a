// README: In-memory ride store; one mutex covers rides and offers so the
// acceptance commit is indivisible, mirroring the SQL transaction.
package ride

import (
	"context"
	"sort"
	"sync"
	"time"

	"hail/internal/types"
)

type MemoryStore struct {
	mu     sync.RWMutex
	rides  map[types.ID]*Request
	offers map[types.ID]*Offer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rides:  make(map[types.ID]*Request),
		offers: make(map[types.ID]*Offer),
	}
}

func (m *MemoryStore) CreateRequest(ctx context.Context, r *Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rides[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRequest(ctx context.Context, id types.ID) (*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) ListOpen(ctx context.Context) ([]*Request, error) {
	return m.list(func(r *Request) bool { return r.Status == StatusOpen })
}

func (m *MemoryStore) ListByParticipant(ctx context.Context, accountID types.ID) ([]*Request, error) {
	return m.list(func(r *Request) bool {
		return r.RequesterID == accountID || (r.ProviderID != nil && *r.ProviderID == accountID)
	})
}

func (m *MemoryStore) ListExpiredCandidates(ctx context.Context, cutoff time.Time) ([]*Request, error) {
	return m.list(func(r *Request) bool {
		return r.Status == StatusOpen && r.CreatedAt.Before(cutoff)
	})
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[id]
	if !ok || r.Status != from || r.StatusVersion != version {
		return false, nil
	}
	now := time.Now().UTC()
	r.Status = to
	r.StatusVersion++
	switch to {
	case StatusSettled:
		r.CompletedAt = &now
	case StatusCancelled, StatusExpired:
		r.CancelledAt = &now
	}
	return true, nil
}

func (m *MemoryStore) InsertOffer(ctx context.Context, o *Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.offers[o.ID] = &cp
	return nil
}

func (m *MemoryStore) GetOffer(ctx context.Context, id types.ID) (*Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) ListOffers(ctx context.Context, rideID types.ID) ([]*Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Offer
	for _, o := range m.offers {
		if o.RideID == rideID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) AcceptOffer(ctx context.Context, r *Request, o *Offer, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.rides[r.ID]
	if !ok || cur.Status != StatusOpen || cur.StatusVersion != r.StatusVersion {
		return false, nil
	}
	target, ok := m.offers[o.ID]
	if !ok || target.RideID != r.ID || target.Status != OfferPending {
		return false, nil
	}

	provider := target.ProviderID
	fare := target.Fare
	cur.Status = StatusMatched
	cur.StatusVersion++
	cur.ProviderID = &provider
	cur.AcceptedFare = &fare
	cur.StartedAt = &now

	target.Status = OfferAccepted
	for _, sib := range m.offers {
		if sib.RideID == r.ID && sib.ID != target.ID && sib.Status == OfferPending {
			sib.Status = OfferRejected
		}
	}
	return true, nil
}

func (m *MemoryStore) list(keep func(*Request) bool) ([]*Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Request
	for _, r := range m.rides {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
