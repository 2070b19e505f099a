// README: Chat rule tests over the in-memory store.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"hail/internal/modules/ride"
	"hail/internal/types"
)

type stubParticipants struct {
	members map[types.ID]bool
}

func (s *stubParticipants) IsParticipant(ctx context.Context, rideID, accountID types.ID) (bool, error) {
	return s.members[accountID], nil
}

type captureNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *captureNotifier) Publish(rideID types.ID, kind string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind)
}

func newFixture() (*Service, *captureNotifier) {
	notify := &captureNotifier{}
	parts := &stubParticipants{members: map[types.ID]bool{"req1": true, "prov1": true}}
	return NewService(NewMemoryStore(), parts, notify), notify
}

func TestPostRules(t *testing.T) {
	svc, notify := newFixture()
	ctx := context.Background()

	msg, err := svc.Post(ctx, "ride1", "req1", "  on my way  ")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if msg.Body != "on my way" {
		t.Errorf("body = %q, want trimmed", msg.Body)
	}

	if _, err := svc.Post(ctx, "ride1", "stranger", "hello"); !errors.Is(err, ride.ErrForbidden) {
		t.Errorf("stranger: got %v, want ErrForbidden", err)
	}
	if _, err := svc.Post(ctx, "ride1", "req1", "   "); !errors.Is(err, ride.ErrValidation) {
		t.Errorf("blank body: got %v, want ErrValidation", err)
	}
	if _, err := svc.Post(ctx, "ride1", "req1", strings.Repeat("x", 2001)); !errors.Is(err, ride.ErrValidation) {
		t.Errorf("oversized body: got %v, want ErrValidation", err)
	}

	notify.mu.Lock()
	defer notify.mu.Unlock()
	if len(notify.events) != 1 || notify.events[0] != "chat.message" {
		t.Errorf("events = %v, want one chat.message", notify.events)
	}
}

func TestHistoryOrderAndLimit(t *testing.T) {
	svc, _ := newFixture()
	ctx := context.Background()

	bodies := []string{"one", "two", "three", "four"}
	for _, b := range bodies {
		if _, err := svc.Post(ctx, "ride1", "req1", b); err != nil {
			t.Fatalf("post %q: %v", b, err)
		}
	}

	msgs, err := svc.History(ctx, "ride1", "prov1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("len = %d, want 4", len(msgs))
	}
	for i, m := range msgs {
		if m.Body != bodies[i] {
			t.Errorf("msg %d = %q, want %q (oldest first)", i, m.Body, bodies[i])
		}
	}

	// Limit keeps the most recent messages.
	recent, err := svc.History(ctx, "ride1", "prov1", 2)
	if err != nil {
		t.Fatalf("limited history: %v", err)
	}
	if len(recent) != 2 || recent[0].Body != "three" || recent[1].Body != "four" {
		t.Fatalf("limited history = %v", recent)
	}

	if _, err := svc.History(ctx, "ride1", "stranger", 0); !errors.Is(err, ride.ErrForbidden) {
		t.Errorf("stranger history: got %v, want ErrForbidden", err)
	}
}
