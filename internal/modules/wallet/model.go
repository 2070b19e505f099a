// README: Account aggregate: identity, wallet balance, and presence.
package wallet

import (
	"time"

	"hail/internal/types"
)

type Account struct {
	ID           types.ID
	Name         string
	PasswordHash string
	Role         types.Role
	Balance      types.Money
	Online       bool
	Position     *types.Point
	LastActiveAt *time.Time
	CreatedAt    time.Time
}
