// README: Settlement record; at most one completed settlement per ride.
package payment

import (
	"time"

	"hail/internal/types"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Settlement struct {
	ID        types.ID
	RideID    types.ID
	PayerID   types.ID
	PayeeID   types.ID
	Amount    types.Money
	Status    Status
	Method    string
	CreatedAt time.Time
}
