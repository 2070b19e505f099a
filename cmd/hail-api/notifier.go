// README: Late-bound notifier; the ride service is constructed before the hub
// that consumes its events.
package main

import (
	"sync/atomic"

	"hail/internal/hub"
	"hail/internal/types"
)

type lateNotifier struct {
	hub atomic.Pointer[hub.Hub]
}

func (n *lateNotifier) bind(h *hub.Hub) {
	n.hub.Store(h)
}

func (n *lateNotifier) Publish(rideID types.ID, kind string, payload map[string]any) {
	if h := n.hub.Load(); h != nil {
		h.Publish(rideID, kind, payload)
	}
}
