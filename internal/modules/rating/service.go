// README: Rating rules. Only participants of a matched or settled ride can
// rate, the recipient is always the counterparty, and ratings never mutate.
package rating

import (
	"context"
	"time"

	"hail/internal/modules/ride"
	"hail/internal/types"
)

// RideReader mirrors payment.RideReader.
type RideReader interface {
	Get(ctx context.Context, id types.ID) (*ride.Request, error)
}

type Service struct {
	store Store
	rides RideReader
}

func NewService(store Store, rides RideReader) *Service {
	return &Service{store: store, rides: rides}
}

type SubmitCommand struct {
	RideID  types.ID
	RaterID types.ID
	Score   int
	Comment string
}

func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*Rating, error) {
	if cmd.Score < 1 || cmd.Score > 5 {
		return nil, ride.ErrValidation
	}
	r, err := s.rides.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if r.Status != ride.StatusMatched && r.Status != ride.StatusSettled {
		return nil, ride.ErrInvalidState
	}
	if r.ProviderID == nil {
		return nil, ride.ErrInvalidState
	}

	var recipient types.ID
	switch cmd.RaterID {
	case r.RequesterID:
		recipient = *r.ProviderID
	case *r.ProviderID:
		recipient = r.RequesterID
	default:
		return nil, ride.ErrForbidden
	}

	rating := &Rating{
		ID:          types.NewID(),
		RideID:      cmd.RideID,
		RaterID:     cmd.RaterID,
		RecipientID: recipient,
		Score:       cmd.Score,
		Comment:     cmd.Comment,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, rating); err != nil {
		return nil, err
	}
	return rating, nil
}

func (s *Service) ForAccount(ctx context.Context, accountID types.ID) ([]*Rating, Summary, error) {
	list, err := s.store.ListByRecipient(ctx, accountID)
	if err != nil {
		return nil, Summary{}, err
	}
	sum, err := s.store.Summarize(ctx, accountID)
	if err != nil {
		return nil, Summary{}, err
	}
	return list, sum, nil
}
