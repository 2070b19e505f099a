// README: Per-ride chat messages, persisted and replayed as history.
package chat

import (
	"time"

	"hail/internal/types"
)

type Message struct {
	ID       types.ID
	RideID   types.ID
	SenderID types.ID
	Body     string
	SentAt   time.Time
}
