// README: Chat rules. Only the ride's participants can read or post, and
// posting both persists the message and pushes it to live subscribers.
package chat

import (
	"context"
	"strings"
	"time"

	"hail/internal/modules/ride"
	"hail/internal/types"
)

const defaultHistoryLimit = 100

// Participants reports whether an account belongs to a ride's conversation.
type Participants interface {
	IsParticipant(ctx context.Context, rideID, accountID types.ID) (bool, error)
}

// Notifier mirrors ride.Notifier; wired to the hub in main.
type Notifier interface {
	Publish(rideID types.ID, kind string, payload map[string]any)
}

type Service struct {
	store  Store
	rides  Participants
	notify Notifier
}

func NewService(store Store, rides Participants, notify Notifier) *Service {
	return &Service{store: store, rides: rides, notify: notify}
}

func (s *Service) Post(ctx context.Context, rideID, senderID types.ID, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if body == "" || len(body) > 2000 {
		return nil, ride.ErrValidation
	}
	ok, err := s.rides.IsParticipant(ctx, rideID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ride.ErrForbidden
	}

	msg := &Message{
		ID:       types.NewID(),
		RideID:   rideID,
		SenderID: senderID,
		Body:     body,
		SentAt:   time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, msg); err != nil {
		return nil, err
	}
	if s.notify != nil {
		s.notify.Publish(rideID, "chat.message", map[string]any{
			"id":        string(msg.ID),
			"ride_id":   string(msg.RideID),
			"sender_id": string(msg.SenderID),
			"body":      msg.Body,
			"sent_at":   msg.SentAt.Format(time.RFC3339),
		})
	}
	return msg, nil
}

func (s *Service) History(ctx context.Context, rideID, callerID types.ID, limit int) ([]*Message, error) {
	ok, err := s.rides.IsParticipant(ctx, rideID, callerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ride.ErrForbidden
	}
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}
	return s.store.History(ctx, rideID, limit)
}
