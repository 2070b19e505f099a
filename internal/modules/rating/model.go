// README: Append-only ride feedback between counterparties.
package rating

import (
	"time"

	"hail/internal/types"
)

type Rating struct {
	ID          types.ID
	RideID      types.ID
	RaterID     types.ID
	RecipientID types.ID
	Score       int
	Comment     string
	CreatedAt   time.Time
}

// Summary is the aggregate exposed on account profiles.
type Summary struct {
	Average float64
	Count   int
}
