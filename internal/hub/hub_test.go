// README: Broadcaster tests: membership, ordering, and slow-subscriber drops.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"hail/internal/types"
)

type stubAuthorizer struct {
	members map[types.ID]bool
}

func (s *stubAuthorizer) IsParticipant(ctx context.Context, rideID, accountID types.ID) (bool, error) {
	return s.members[accountID], nil
}

type stubPresence struct {
	mu        sync.Mutex
	online    map[types.ID]bool
	positions map[types.ID]types.Point
}

func newStubPresence() *stubPresence {
	return &stubPresence{
		online:    make(map[types.ID]bool),
		positions: make(map[types.ID]types.Point),
	}
}

func (s *stubPresence) SetOnline(ctx context.Context, id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[id] = true
	return nil
}

func (s *stubPresence) SetOffline(ctx context.Context, id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[id] = false
	return nil
}

func (s *stubPresence) UpdatePosition(ctx context.Context, id types.ID, pos types.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[id] = pos
	return nil
}

func newTestHub(members ...types.ID) (*Hub, *stubPresence) {
	auth := &stubAuthorizer{members: make(map[types.ID]bool)}
	for _, m := range members {
		auth.members[m] = true
	}
	presence := newStubPresence()
	return NewHub(auth, presence, nil), presence
}

func drain(c *Client, n int) []Event {
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		frame := <-c.Send()
		var e Event
		if err := json.Unmarshal(frame, &e); err != nil {
			panic(err)
		}
		events = append(events, e)
	}
	return events
}

func TestJoinRequiresParticipation(t *testing.T) {
	h, _ := newTestHub("req1")
	ctx := context.Background()

	member, err := h.Register(ctx, "req1", types.RoleRequester)
	if err != nil {
		t.Fatal(err)
	}
	stranger, err := h.Register(ctx, "other", types.RoleProvider)
	if err != nil {
		t.Fatal(err)
	}

	if err := h.Join(ctx, member, "ride1"); err != nil {
		t.Fatalf("member join: %v", err)
	}
	if err := h.Join(ctx, stranger, "ride1"); err != ErrNotParticipant {
		t.Fatalf("stranger join: got %v, want ErrNotParticipant", err)
	}
}

func TestPublishOrderPreserved(t *testing.T) {
	h, _ := newTestHub("req1")
	ctx := context.Background()

	c, err := h.Register(ctx, "req1", types.RoleRequester)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Join(ctx, c, "ride1"); err != nil {
		t.Fatal(err)
	}

	const n = 10
	for i := 0; i < n; i++ {
		h.Publish("ride1", fmt.Sprintf("event.%d", i), nil)
	}
	events := drain(c, n)
	for i, e := range events {
		if want := fmt.Sprintf("event.%d", i); e.Kind != want {
			t.Fatalf("event %d = %s, want %s", i, e.Kind, want)
		}
		if e.Channel != "ride:ride1" {
			t.Fatalf("channel = %s", e.Channel)
		}
	}
}

func TestPublishOnlyReachesMembers(t *testing.T) {
	h, _ := newTestHub("req1", "prov1")
	ctx := context.Background()

	member, _ := h.Register(ctx, "req1", types.RoleRequester)
	outsider, _ := h.Register(ctx, "prov1", types.RoleProvider)
	if err := h.Join(ctx, member, "ride1"); err != nil {
		t.Fatal(err)
	}

	h.Publish("ride1", "offer.submitted", map[string]any{"fare": 450})

	if got := drain(member, 1); got[0].Kind != "offer.submitted" {
		t.Fatalf("member got %s", got[0].Kind)
	}
	select {
	case frame := <-outsider.Send():
		t.Fatalf("outsider received %s", frame)
	default:
	}
}

func TestSlowSubscriberDropsWithoutBlocking(t *testing.T) {
	h, _ := newTestHub("req1")
	ctx := context.Background()

	c, _ := h.Register(ctx, "req1", types.RoleRequester)
	if err := h.Join(ctx, c, "ride1"); err != nil {
		t.Fatal(err)
	}

	// Nobody drains: publishes beyond the queue size must not block.
	for i := 0; i < sendQueueSize*3; i++ {
		h.Publish("ride1", "event", nil)
	}
	if got := len(c.send); got != sendQueueSize {
		t.Fatalf("queued %d frames, want %d", got, sendQueueSize)
	}
}

func TestUnregisterCleansUp(t *testing.T) {
	h, presence := newTestHub("req1")
	ctx := context.Background()

	c, _ := h.Register(ctx, "req1", types.RoleRequester)
	if err := h.Join(ctx, c, "ride1"); err != nil {
		t.Fatal(err)
	}

	presence.mu.Lock()
	if !presence.online["req1"] {
		t.Error("register did not set online")
	}
	presence.mu.Unlock()

	h.Unregister(ctx, c)

	// Send channel closes so the writer pump exits.
	if _, open := <-c.Send(); open {
		t.Error("send channel still open after unregister")
	}
	presence.mu.Lock()
	if presence.online["req1"] {
		t.Error("unregister did not set offline")
	}
	presence.mu.Unlock()

	// Publishing to the departed channel is a no-op.
	h.Publish("ride1", "event", nil)

	// Double unregister is safe.
	h.Unregister(ctx, c)
}

func TestJoinAfterStopOrUnregisterRejected(t *testing.T) {
	h, _ := newTestHub("req1", "req2")
	ctx := context.Background()

	detached, err := h.Register(ctx, "req1", types.RoleRequester)
	if err != nil {
		t.Fatal(err)
	}
	h.Unregister(ctx, detached)
	if err := h.Join(ctx, detached, "ride1"); err == nil {
		t.Fatal("join after unregister succeeded")
	}

	stopped, err := h.Register(ctx, "req2", types.RoleRequester)
	if err != nil {
		t.Fatal(err)
	}
	h.Stop()
	if err := h.Join(ctx, stopped, "ride1"); err == nil {
		t.Fatal("join after stop succeeded")
	}

	// Neither client re-entered a channel: publishing must not panic on their
	// closed send channels.
	h.Publish("ride1", "event", nil)
}

func TestBroadcastRoleFilterAndPresence(t *testing.T) {
	h, presence := newTestHub()
	ctx := context.Background()

	prov, _ := h.Register(ctx, "prov1", types.RoleProvider)
	req, _ := h.Register(ctx, "req1", types.RoleRequester)

	h.Broadcast("ride.created", map[string]any{"ride_id": "r1"}, types.RoleProvider)
	if got := drain(prov, 1); got[0].Kind != "ride.created" {
		t.Fatalf("provider got %s", got[0].Kind)
	}
	select {
	case <-req.Send():
		t.Fatal("requester received provider-only broadcast")
	default:
	}

	// Presence updates reach everyone and record the position.
	h.BroadcastPresence(ctx, prov, types.Point{Lat: 24.9, Lng: 67.1})
	if got := drain(req, 1); got[0].Kind != "presence.update" {
		t.Fatalf("requester got %s", got[0].Kind)
	}
	if got := drain(prov, 1); got[0].Kind != "presence.update" {
		t.Fatalf("provider got %s", got[0].Kind)
	}
	presence.mu.Lock()
	if pos := presence.positions["prov1"]; pos.Lat != 24.9 {
		t.Errorf("position not recorded: %+v", pos)
	}
	presence.mu.Unlock()
}
