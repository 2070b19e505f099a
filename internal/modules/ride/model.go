// README: Ride request aggregate, offers, and status definitions.
package ride

import (
	"time"

	"hail/internal/types"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusMatched   Status = "matched"
	StatusSettled   Status = "settled"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// AllowedTransitions represents the request lifecycle as code. Terminal
// states have no outgoing edges.
var AllowedTransitions = map[Status][]Status{
	StatusOpen:    {StatusMatched, StatusExpired},
	StatusMatched: {StatusSettled, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	_, ok := AllowedTransitions[s]
	return !ok
}

type Request struct {
	ID             types.ID
	RequesterID    types.ID
	ProviderID     *types.ID
	Pickup         types.Point
	Dropoff        types.Point
	PickupAddress  string
	DropoffAddress string
	OfferedFare    types.Money
	AcceptedFare   *types.Money
	SuggestedMin   *types.Money
	SuggestedMax   *types.Money
	VehicleClass   types.VehicleClass
	Status         Status
	StatusVersion  int
	DistanceKm     *float64
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
}

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
)

// Offer is a provider's proposed price against an open request. At most one
// offer per request ever reaches accepted; its siblings are rejected in the
// same commit.
type Offer struct {
	ID         types.ID
	RideID     types.ID
	ProviderID types.ID
	Fare       types.Money
	Status     OfferStatus
	CreatedAt  time.Time
}
