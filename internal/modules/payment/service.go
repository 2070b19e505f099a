// README: Settlement rules. Only the requester of a settled ride can pay, the
// amount is the accepted fare, and paying twice is a no-op error rather than a
// second transfer.
package payment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hail/internal/logging"
	"hail/internal/modules/ride"
	"hail/internal/observability"
	"hail/internal/types"
)

// RideReader is the slice of the ride module the settlement flow needs.
type RideReader interface {
	Get(ctx context.Context, id types.ID) (*ride.Request, error)
}

// Notifier mirrors ride.Notifier; wired to the hub in main.
type Notifier interface {
	Publish(rideID types.ID, kind string, payload map[string]any)
}

type Service struct {
	store  Store
	rides  RideReader
	notify Notifier
	log    zerolog.Logger
}

func NewService(store Store, rides RideReader, notify Notifier) *Service {
	return &Service{
		store:  store,
		rides:  rides,
		notify: notify,
		log:    logging.New("payment"),
	}
}

// Settle pays the provider out of the requester's wallet. Idempotent against
// the ride id: the second call returns ErrAlreadyPaid and moves no funds.
func (s *Service) Settle(ctx context.Context, rideID, callerID types.ID) (*Settlement, error) {
	r, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.RequesterID != callerID {
		return nil, ride.ErrForbidden
	}
	if r.Status != ride.StatusSettled || r.ProviderID == nil {
		return nil, ride.ErrInvalidState
	}

	amount := r.OfferedFare
	if r.AcceptedFare != nil {
		amount = *r.AcceptedFare
	}

	stl := &Settlement{
		ID:        types.NewID(),
		RideID:    r.ID,
		PayerID:   r.RequesterID,
		PayeeID:   *r.ProviderID,
		Amount:    amount,
		Status:    StatusCompleted,
		Method:    "wallet",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateCompleted(ctx, stl); err != nil {
		return nil, err
	}

	observability.SettlementsDone.Inc()
	s.log.Info().
		Str("ride_id", string(r.ID)).
		Int64("amount", amount.Amount).
		Msg("settlement completed")
	if s.notify != nil {
		s.notify.Publish(r.ID, "settlement.completed", map[string]any{
			"ride_id":  string(r.ID),
			"payer_id": string(stl.PayerID),
			"payee_id": string(stl.PayeeID),
			"amount":   amount.Amount,
			"currency": amount.Currency,
		})
	}
	return stl, nil
}

func (s *Service) ForRide(ctx context.Context, rideID, callerID types.ID) (*Settlement, error) {
	r, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.RequesterID != callerID && (r.ProviderID == nil || *r.ProviderID != callerID) {
		return nil, ride.ErrForbidden
	}
	stl, err := s.store.GetByRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if stl == nil {
		return nil, ride.ErrNotFound
	}
	return stl, nil
}

func (s *Service) History(ctx context.Context, accountID types.ID) ([]*Settlement, error) {
	return s.store.ListByAccount(ctx, accountID)
}

func (s *Service) Earnings(ctx context.Context, payeeID types.ID) (types.Money, error) {
	total, err := s.store.EarningsTotal(ctx, payeeID)
	if err != nil {
		return types.Money{}, err
	}
	return types.NewMoney(total), nil
}
