// README: State machine and negotiation tests over the in-memory store.
package ride

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hail/internal/config"
	"hail/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	sweep := config.SweepConfig{Interval: time.Minute, Timeout: 5 * time.Minute}
	return NewService(NewMemoryStore(), nil, nil, sweep, zerolog.Nop())
}

func createOpenRide(t *testing.T, svc *Service, requester types.ID) *Request {
	t.Helper()
	r, err := svc.Create(context.Background(), CreateCommand{
		RequesterID:    requester,
		Pickup:         types.Point{Lat: 24.8607, Lng: 67.0011},
		Dropoff:        types.Point{Lat: 24.9263, Lng: 67.0226},
		PickupAddress:  "Saddar",
		DropoffAddress: "Gulshan",
		OfferedFare:    500,
		VehicleClass:   types.VehicleCar,
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return r
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusOpen, StatusMatched, true},
		{StatusOpen, StatusExpired, true},
		{StatusOpen, StatusSettled, false},
		{StatusOpen, StatusCancelled, false},
		{StatusMatched, StatusSettled, true},
		{StatusMatched, StatusCancelled, true},
		{StatusMatched, StatusOpen, false},
		{StatusMatched, StatusExpired, false},
		{StatusSettled, StatusCancelled, false},
		{StatusExpired, StatusMatched, false},
		{StatusCancelled, StatusOpen, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  CreateCommand
	}{
		{"missing requester", CreateCommand{
			Pickup: types.Point{Lat: 1, Lng: 1}, Dropoff: types.Point{Lat: 2, Lng: 2},
			PickupAddress: "a", DropoffAddress: "b", OfferedFare: 100,
		}},
		{"zero fare", CreateCommand{
			RequesterID: "u1",
			Pickup:      types.Point{Lat: 1, Lng: 1}, Dropoff: types.Point{Lat: 2, Lng: 2},
			PickupAddress: "a", DropoffAddress: "b",
		}},
		{"negative fare", CreateCommand{
			RequesterID: "u1",
			Pickup:      types.Point{Lat: 1, Lng: 1}, Dropoff: types.Point{Lat: 2, Lng: 2},
			PickupAddress: "a", DropoffAddress: "b", OfferedFare: -50,
		}},
		{"missing address", CreateCommand{
			RequesterID: "u1",
			Pickup:      types.Point{Lat: 1, Lng: 1}, Dropoff: types.Point{Lat: 2, Lng: 2},
			OfferedFare: 100,
		}},
		{"zero point", CreateCommand{
			RequesterID:   "u1",
			Dropoff:       types.Point{Lat: 2, Lng: 2},
			PickupAddress: "a", DropoffAddress: "b", OfferedFare: 100,
		}},
		{"bad vehicle class", CreateCommand{
			RequesterID: "u1",
			Pickup:      types.Point{Lat: 1, Lng: 1}, Dropoff: types.Point{Lat: 2, Lng: 2},
			PickupAddress: "a", DropoffAddress: "b", OfferedFare: 100,
			VehicleClass: "Rickshaw",
		}},
	}
	for _, c := range cases {
		if _, err := svc.Create(ctx, c.cmd); err != ErrValidation {
			t.Errorf("%s: got %v, want ErrValidation", c.name, err)
		}
	}
}

func TestNegotiationHappyPath(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	r := createOpenRide(t, svc, "req1")

	// Three providers bid; the requester takes the middle one.
	o1, err := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, ProviderID: "prov1", Fare: 500})
	if err != nil {
		t.Fatalf("offer 1: %v", err)
	}
	o2, err := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, ProviderID: "prov2", Fare: 450})
	if err != nil {
		t.Fatalf("offer 2: %v", err)
	}
	o3, err := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, ProviderID: "prov3", Fare: 480})
	if err != nil {
		t.Fatalf("offer 3: %v", err)
	}

	matched, err := svc.AcceptOffer(ctx, AcceptOfferCommand{RideID: r.ID, RequesterID: "req1", OfferID: o2.ID})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if matched.Status != StatusMatched {
		t.Fatalf("status = %s, want matched", matched.Status)
	}
	if matched.ProviderID == nil || *matched.ProviderID != "prov2" {
		t.Fatalf("provider = %v, want prov2", matched.ProviderID)
	}
	if matched.AcceptedFare == nil || matched.AcceptedFare.Amount != 450 {
		t.Fatalf("accepted fare = %v, want 450", matched.AcceptedFare)
	}

	// Siblings got rejected in the same commit.
	offers, err := svc.ListOffers(ctx, r.ID, "req1")
	if err != nil {
		t.Fatalf("list offers: %v", err)
	}
	for _, o := range offers {
		switch o.ID {
		case o2.ID:
			if o.Status != OfferAccepted {
				t.Errorf("winning offer status = %s", o.Status)
			}
		case o1.ID, o3.ID:
			if o.Status != OfferRejected {
				t.Errorf("offer %s status = %s, want rejected", o.ID, o.Status)
			}
		}
	}

	// Provider completes, ride settles.
	done, err := svc.Complete(ctx, CompleteCommand{RideID: r.ID, ProviderID: "prov2"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusSettled {
		t.Fatalf("status = %s, want settled", done.Status)
	}
	if done.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
}

func TestSubmitOfferRules(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	r := createOpenRide(t, svc, "req1")

	if _, err := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, ProviderID: "req1", Fare: 400}); err != ErrForbidden {
		t.Errorf("own-ride offer: got %v, want ErrForbidden", err)
	}
	if _, err := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, ProviderID: "prov1", Fare: 0}); err != ErrValidation {
		t.Errorf("zero fare: got %v, want ErrValidation", err)
	}
	if _, err := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: "missing", ProviderID: "prov1", Fare: 400}); err != ErrNotFound {
		t.Errorf("missing ride: got %v, want ErrNotFound", err)
	}

	// A provider may revise its price with a second offer.
	first, err := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, ProviderID: "prov1", Fare: 500})
	if err != nil {
		t.Fatalf("first offer: %v", err)
	}
	second, err := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, ProviderID: "prov1", Fare: 470})
	if err != nil {
		t.Fatalf("revised offer: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("revision reused the offer id")
	}

	// Once matched, no further offers.
	if _, err := svc.AcceptOffer(ctx, AcceptOfferCommand{RideID: r.ID, RequesterID: "req1", OfferID: second.ID}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, ProviderID: "prov2", Fare: 460}); err != ErrInvalidState {
		t.Errorf("offer after match: got %v, want ErrInvalidState", err)
	}
}

func TestAcceptOfferRules(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	r := createOpenRide(t, svc, "req1")
	other := createOpenRide(t, svc, "req2")

	o, err := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, ProviderID: "prov1", Fare: 480})
	if err != nil {
		t.Fatalf("offer: %v", err)
	}

	if _, err := svc.AcceptOffer(ctx, AcceptOfferCommand{RideID: r.ID, RequesterID: "someone", OfferID: o.ID}); err != ErrForbidden {
		t.Errorf("non-requester accept: got %v, want ErrForbidden", err)
	}
	// Offer belongs to a different ride.
	if _, err := svc.AcceptOffer(ctx, AcceptOfferCommand{RideID: other.ID, RequesterID: "req2", OfferID: o.ID}); err != ErrNotFound {
		t.Errorf("cross-ride accept: got %v, want ErrNotFound", err)
	}

	if _, err := svc.AcceptOffer(ctx, AcceptOfferCommand{RideID: r.ID, RequesterID: "req1", OfferID: o.ID}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// Accepting again finds the offer no longer pending.
	if _, err := svc.AcceptOffer(ctx, AcceptOfferCommand{RideID: r.ID, RequesterID: "req1", OfferID: o.ID}); err != ErrInvalidState {
		t.Errorf("double accept: got %v, want ErrInvalidState", err)
	}
}

func TestCompleteAndCancelRules(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	r := createOpenRide(t, svc, "req1")

	// Complete before match is invalid.
	if _, err := svc.Complete(ctx, CompleteCommand{RideID: r.ID, ProviderID: "prov1"}); err != ErrForbidden {
		t.Errorf("complete unmatched: got %v, want ErrForbidden", err)
	}
	// Cancel before match is invalid: open rides expire, they are not cancelled.
	if _, err := svc.Cancel(ctx, CancelCommand{RideID: r.ID, RequesterID: "req1"}); err != ErrInvalidState {
		t.Errorf("cancel open: got %v, want ErrInvalidState", err)
	}

	o, _ := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, ProviderID: "prov1", Fare: 480})
	if _, err := svc.AcceptOffer(ctx, AcceptOfferCommand{RideID: r.ID, RequesterID: "req1", OfferID: o.ID}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := svc.Complete(ctx, CompleteCommand{RideID: r.ID, ProviderID: "prov9"}); err != ErrForbidden {
		t.Errorf("wrong provider complete: got %v, want ErrForbidden", err)
	}
	if _, err := svc.Cancel(ctx, CancelCommand{RideID: r.ID, RequesterID: "prov1"}); err != ErrForbidden {
		t.Errorf("provider cancel: got %v, want ErrForbidden", err)
	}

	cancelled, err := svc.Cancel(ctx, CancelCommand{RideID: r.ID, RequesterID: "req1"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
	if _, err := svc.Complete(ctx, CompleteCommand{RideID: r.ID, ProviderID: "prov1"}); err != ErrInvalidState {
		t.Errorf("complete cancelled: got %v, want ErrInvalidState", err)
	}
}

func TestListOffersRequesterOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	r := createOpenRide(t, svc, "req1")
	if _, err := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, ProviderID: "prov1", Fare: 480}); err != nil {
		t.Fatalf("offer: %v", err)
	}

	if _, err := svc.ListOffers(ctx, r.ID, "prov1"); err != ErrForbidden {
		t.Errorf("provider listing offers: got %v, want ErrForbidden", err)
	}
	offers, err := svc.ListOffers(ctx, r.ID, "req1")
	if err != nil {
		t.Fatalf("list offers: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("got %d offers, want 1", len(offers))
	}
}

func TestSweepExpired(t *testing.T) {
	store := NewMemoryStore()
	sweep := config.SweepConfig{Interval: time.Minute, Timeout: 5 * time.Minute}
	svc := NewService(store, nil, nil, sweep, zerolog.Nop())
	ctx := context.Background()

	stale := &Request{
		ID:          types.NewID(),
		RequesterID: "req1",
		Pickup:      types.Point{Lat: 1, Lng: 1},
		Dropoff:     types.Point{Lat: 2, Lng: 2},
		OfferedFare: types.NewMoney(500),
		Status:      StatusOpen,
		CreatedAt:   time.Now().Add(-10 * time.Minute),
	}
	fresh := &Request{
		ID:          types.NewID(),
		RequesterID: "req2",
		Pickup:      types.Point{Lat: 1, Lng: 1},
		Dropoff:     types.Point{Lat: 2, Lng: 2},
		OfferedFare: types.NewMoney(500),
		Status:      StatusOpen,
		CreatedAt:   time.Now(),
	}
	if err := store.CreateRequest(ctx, stale); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateRequest(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	n, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}

	got, _ := svc.Get(ctx, stale.ID)
	if got.Status != StatusExpired {
		t.Errorf("stale status = %s, want expired", got.Status)
	}
	got, _ = svc.Get(ctx, fresh.ID)
	if got.Status != StatusOpen {
		t.Errorf("fresh status = %s, want open", got.Status)
	}

	// Terminal: offers against an expired ride are refused.
	if _, err := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: stale.ID, ProviderID: "prov1", Fare: 400}); err != ErrInvalidState {
		t.Errorf("offer on expired: got %v, want ErrInvalidState", err)
	}
}

func TestIsParticipant(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	r := createOpenRide(t, svc, "req1")

	ok, err := svc.IsParticipant(ctx, r.ID, "req1")
	if err != nil || !ok {
		t.Errorf("requester: ok=%v err=%v", ok, err)
	}
	ok, _ = svc.IsParticipant(ctx, r.ID, "prov1")
	if ok {
		t.Error("unassigned provider should not be a participant")
	}

	o, _ := svc.SubmitOffer(ctx, SubmitOfferCommand{RideID: r.ID, ProviderID: "prov1", Fare: 480})
	if _, err := svc.AcceptOffer(ctx, AcceptOfferCommand{RideID: r.ID, RequesterID: "req1", OfferID: o.ID}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	ok, _ = svc.IsParticipant(ctx, r.ID, "prov1")
	if !ok {
		t.Error("assigned provider should be a participant")
	}
	ok, _ = svc.IsParticipant(ctx, "missing", "req1")
	if ok {
		t.Error("missing ride should report false")
	}
}

// flakyStore fails the candidate scan a fixed number of times before
// delegating, to exercise the sweeper loop's log-and-retry path.
type flakyStore struct {
	Store
	mu    sync.Mutex
	fails int
	calls int
}

func (s *flakyStore) ListExpiredCandidates(ctx context.Context, cutoff time.Time) ([]*Request, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.fails
	s.mu.Unlock()
	if fail {
		return nil, errors.New("storage unavailable")
	}
	return s.Store.ListExpiredCandidates(ctx, cutoff)
}

func TestRunExpirySweeperSurvivesFailures(t *testing.T) {
	store := &flakyStore{Store: NewMemoryStore(), fails: 2}
	sweep := config.SweepConfig{Interval: 5 * time.Millisecond, Timeout: 0}
	svc := NewService(store, nil, nil, sweep, zerolog.Nop())

	r := createOpenRide(t, svc, "req1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.RunExpirySweeper(ctx)

	// The first ticks fail; the loop must keep running and expire the ride
	// once the store recovers.
	deadline := time.After(2 * time.Second)
	for {
		got, err := svc.Get(context.Background(), r.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == StatusExpired {
			break
		}
		select {
		case <-deadline:
			t.Fatal("ride never expired after sweep failures")
		case <-time.After(5 * time.Millisecond):
		}
	}

	store.mu.Lock()
	calls := store.calls
	store.mu.Unlock()
	if calls <= store.fails {
		t.Fatalf("scan ran %d times, want more than the %d failing runs", calls, store.fails)
	}
}

func TestTimestampsAreUTC(t *testing.T) {
	svc := newTestService(t)
	r := createOpenRide(t, svc, "req1")
	if r.CreatedAt.Location() != time.UTC {
		t.Errorf("ride created_at location = %v, want UTC", r.CreatedAt.Location())
	}
	o, err := svc.SubmitOffer(context.Background(), SubmitOfferCommand{RideID: r.ID, ProviderID: "prov1", Fare: 480})
	if err != nil {
		t.Fatal(err)
	}
	if o.CreatedAt.Location() != time.UTC {
		t.Errorf("offer created_at location = %v, want UTC", o.CreatedAt.Location())
	}
}
