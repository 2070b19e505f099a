// README: Ride service implements the request/offer state machine, the
// at-most-one-acceptance negotiation protocol, and the expiry sweeper.
package ride

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"hail/internal/config"
	"hail/internal/observability"
	"hail/internal/types"
)

var (
	ErrValidation   = errors.New("invalid ride request")
	ErrNotFound     = errors.New("ride not found")
	ErrForbidden    = errors.New("caller is not allowed to perform this operation")
	ErrInvalidState = errors.New("operation not allowed in current ride state")
	ErrConflict     = errors.New("ride no longer open")
)

// FareSuggester is the fare-band collaborator. It may be unavailable; Create
// treats a failed suggestion as non-fatal.
type FareSuggester interface {
	Suggest(ctx context.Context, distanceKm float64, class types.VehicleClass) (min, max types.Money, err error)
}

// Notifier relays state-change events to the channel broadcaster. Delivery is
// fire-and-forget.
type Notifier interface {
	Publish(rideID types.ID, kind string, payload map[string]any)
}

type Service struct {
	store  Store
	fares  FareSuggester
	notify Notifier
	sweep  config.SweepConfig
	log    zerolog.Logger
}

func NewService(store Store, fares FareSuggester, notify Notifier, sweep config.SweepConfig, log zerolog.Logger) *Service {
	return &Service{store: store, fares: fares, notify: notify, sweep: sweep, log: log}
}

type CreateCommand struct {
	RequesterID    types.ID
	Pickup         types.Point
	Dropoff        types.Point
	PickupAddress  string
	DropoffAddress string
	OfferedFare    int64
	VehicleClass   types.VehicleClass
	DistanceKm     *float64
}

type SubmitOfferCommand struct {
	RideID     types.ID
	ProviderID types.ID
	Fare       int64
}

type AcceptOfferCommand struct {
	RideID      types.ID
	RequesterID types.ID
	OfferID     types.ID
}

type CompleteCommand struct {
	RideID     types.ID
	ProviderID types.ID
}

type CancelCommand struct {
	RideID      types.ID
	RequesterID types.ID
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Request, error) {
	if cmd.RequesterID == "" ||
		cmd.PickupAddress == "" || cmd.DropoffAddress == "" ||
		!validPoint(cmd.Pickup) || !validPoint(cmd.Dropoff) ||
		cmd.OfferedFare <= 0 {
		return nil, ErrValidation
	}
	class := cmd.VehicleClass
	if class == "" {
		class = types.VehicleCar
	}
	if !class.Valid() {
		return nil, ErrValidation
	}

	r := &Request{
		ID:             types.NewID(),
		RequesterID:    cmd.RequesterID,
		Pickup:         cmd.Pickup,
		Dropoff:        cmd.Dropoff,
		PickupAddress:  cmd.PickupAddress,
		DropoffAddress: cmd.DropoffAddress,
		OfferedFare:    types.NewMoney(cmd.OfferedFare),
		VehicleClass:   class,
		Status:         StatusOpen,
		DistanceKm:     cmd.DistanceKm,
		CreatedAt:      time.Now().UTC(),
	}

	if s.fares != nil && cmd.DistanceKm != nil {
		if min, max, err := s.fares.Suggest(ctx, *cmd.DistanceKm, class); err == nil {
			r.SuggestedMin = &min
			r.SuggestedMax = &max
		} else {
			s.log.Warn().Err(err).Str("ride_id", string(r.ID)).Msg("fare suggestion failed")
		}
	}

	if err := s.store.CreateRequest(ctx, r); err != nil {
		return nil, err
	}
	observability.RidesCreated.Inc()
	return r, nil
}

// SubmitOffer is a pure insert: it needs no exclusivity with other
// submissions, only the status precondition. A provider may submit again to
// revise its price; earlier pending offers stay pending.
func (s *Service) SubmitOffer(ctx context.Context, cmd SubmitOfferCommand) (*Offer, error) {
	if cmd.Fare <= 0 {
		return nil, ErrValidation
	}
	r, err := s.store.GetRequest(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if r.RequesterID == cmd.ProviderID {
		return nil, ErrForbidden
	}
	if r.Status != StatusOpen {
		return nil, ErrInvalidState
	}

	o := &Offer{
		ID:         types.NewID(),
		RideID:     r.ID,
		ProviderID: cmd.ProviderID,
		Fare:       types.NewMoney(cmd.Fare),
		Status:     OfferPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.InsertOffer(ctx, o); err != nil {
		return nil, err
	}
	s.publish(r.ID, "offer.submitted", map[string]any{
		"offer_id":    o.ID,
		"provider_id": o.ProviderID,
		"fare":        o.Fare.Amount,
	})
	return o, nil
}

// AcceptOffer closes the negotiation. The winning offer is accepted, every
// sibling rejected, and the request matched, in one store commit. Losing a
// race against a competing acceptance or the expiry sweep returns ErrConflict.
func (s *Service) AcceptOffer(ctx context.Context, cmd AcceptOfferCommand) (*Request, error) {
	r, err := s.store.GetRequest(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if r.RequesterID != cmd.RequesterID {
		return nil, ErrForbidden
	}
	o, err := s.store.GetOffer(ctx, cmd.OfferID)
	if err != nil {
		return nil, err
	}
	if o.RideID != r.ID {
		return nil, ErrNotFound
	}
	if o.Status != OfferPending || !CanTransition(r.Status, StatusMatched) {
		return nil, ErrInvalidState
	}

	ok, err := s.store.AcceptOffer(ctx, r, o, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	observability.RidesMatched.Inc()
	s.publish(r.ID, "offer.accepted", map[string]any{
		"offer_id":    o.ID,
		"provider_id": o.ProviderID,
		"fare":        o.Fare.Amount,
	})
	return s.store.GetRequest(ctx, r.ID)
}

// Complete is the provider-driven execution-completed transition.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Request, error) {
	r, err := s.store.GetRequest(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if r.ProviderID == nil || *r.ProviderID != cmd.ProviderID {
		return nil, ErrForbidden
	}
	if !CanTransition(r.Status, StatusSettled) {
		return nil, ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusSettled, r.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.publish(r.ID, "ride.completed", nil)
	return s.store.GetRequest(ctx, r.ID)
}

// Cancel abandons a matched ride. It never moves funds.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Request, error) {
	r, err := s.store.GetRequest(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if r.RequesterID != cmd.RequesterID {
		return nil, ErrForbidden
	}
	if !CanTransition(r.Status, StatusCancelled) {
		return nil, ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusCancelled, r.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.publish(r.ID, "ride.cancelled", nil)
	return s.store.GetRequest(ctx, r.ID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Request, error) {
	return s.store.GetRequest(ctx, id)
}

func (s *Service) ListOpen(ctx context.Context) ([]*Request, error) {
	return s.store.ListOpen(ctx)
}

func (s *Service) ListByParticipant(ctx context.Context, accountID types.ID) ([]*Request, error) {
	return s.store.ListByParticipant(ctx, accountID)
}

// ListOffers returns a request's offers to its requester only.
func (s *Service) ListOffers(ctx context.Context, rideID, callerID types.ID) ([]*Offer, error) {
	r, err := s.store.GetRequest(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.RequesterID != callerID {
		return nil, ErrForbidden
	}
	return s.store.ListOffers(ctx, rideID)
}

// IsParticipant reports whether the account is the requester or the assigned
// provider. The hub checks this at channel-join time.
func (s *Service) IsParticipant(ctx context.Context, rideID, accountID types.ID) (bool, error) {
	r, err := s.store.GetRequest(ctx, rideID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if r.RequesterID == accountID {
		return true, nil
	}
	return r.ProviderID != nil && *r.ProviderID == accountID, nil
}

// SweepExpired force-expires every open request older than the configured
// timeout and returns how many transitioned. A request accepted between the
// scan and the swap is skipped: the compare-and-swap observes the newer
// status and reports no rows.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.sweep.Timeout)
	stale, err := s.store.ListExpiredCandidates(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, r := range stale {
		ok, err := s.store.UpdateStatus(ctx, r.ID, StatusOpen, StatusExpired, r.StatusVersion)
		if err != nil {
			s.log.Error().Err(err).Str("ride_id", string(r.ID)).Msg("expire transition failed")
			continue
		}
		if !ok {
			continue
		}
		expired++
		observability.RidesExpired.Inc()
		s.publish(r.ID, "ride.expired", map[string]any{"reason": "no offer accepted in time"})
	}
	return expired, nil
}

// RunExpirySweeper ticks until ctx is cancelled. Sweep failures are logged
// and retried on the next tick.
func (s *Service) RunExpirySweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweep.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepExpired(ctx)
			if err != nil {
				s.log.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if n > 0 {
				s.log.Info().Int("expired", n).Msg("expired stale requests")
			}
		}
	}
}

func (s *Service) publish(rideID types.ID, kind string, payload map[string]any) {
	if s.notify == nil {
		return
	}
	s.notify.Publish(rideID, kind, payload)
}

func validPoint(p types.Point) bool {
	if p.Lat == 0 && p.Lng == 0 {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
