// README: Presence and channel broadcaster. Each connection gets a buffered
// send queue drained by its own writer; a slow subscriber drops frames without
// stalling the channel. Ride channels are joined only after an authorizer
// check, presence events fan out to everyone.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hail/internal/logging"
	"hail/internal/observability"
	"hail/internal/types"
)

const sendQueueSize = 32

var ErrNotParticipant = errors.New("hub: not a ride participant")

// Authorizer gates channel membership. Implemented by the ride service.
type Authorizer interface {
	IsParticipant(ctx context.Context, rideID, accountID types.ID) (bool, error)
}

// Presence records online state and last position. Implemented by the wallet
// service.
type Presence interface {
	SetOnline(ctx context.Context, id types.ID) error
	SetOffline(ctx context.Context, id types.ID) error
	UpdatePosition(ctx context.Context, id types.ID, pos types.Point) error
}

type Event struct {
	Channel string         `json:"channel"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// Client is one websocket connection's hub-side handle. The transport layer
// owns the socket and drains Send.
type Client struct {
	AccountID types.ID
	Role      types.Role
	send      chan []byte
	closeOnce sync.Once
}

// Send is the frame queue for this connection's writer goroutine. It is
// closed when the client unregisters.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Enqueue offers a frame to this connection's queue, dropping it when full.
// Direct acks from the transport layer go through here so the writer goroutine
// stays the only socket writer.
func (c *Client) Enqueue(frame []byte) bool {
	return c.enqueue(frame)
}

func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

type Hub struct {
	auth     Authorizer
	presence Presence
	geo      *GeoStore
	log      zerolog.Logger

	mu       sync.Mutex
	clients  map[*Client]bool
	channels map[string]map[*Client]bool
	stopped  bool
}

// NewHub wires the broadcaster. geo may be nil when Redis is not configured.
func NewHub(auth Authorizer, presence Presence, geo *GeoStore) *Hub {
	return &Hub{
		auth:     auth,
		presence: presence,
		geo:      geo,
		log:      logging.New("hub"),
		clients:  make(map[*Client]bool),
		channels: make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Start() {}

// Stop disconnects every client. Register calls after Stop are rejected.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]bool)
	h.channels = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// Register attaches a connection and marks the account online.
func (h *Hub) Register(ctx context.Context, accountID types.ID, role types.Role) (*Client, error) {
	c := &Client{
		AccountID: accountID,
		Role:      role,
		send:      make(chan []byte, sendQueueSize),
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil, errors.New("hub: stopped")
	}
	h.clients[c] = true
	h.mu.Unlock()

	if err := h.presence.SetOnline(ctx, accountID); err != nil {
		h.log.Warn().Err(err).Str("account_id", string(accountID)).Msg("set online failed")
	}
	observability.ClientsOnline.Inc()
	return c, nil
}

// Unregister detaches the connection, leaves all channels and marks the
// account offline.
func (h *Hub) Unregister(ctx context.Context, c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for ch, members := range h.channels {
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, ch)
		}
	}
	h.mu.Unlock()

	c.close()
	if err := h.presence.SetOffline(ctx, c.AccountID); err != nil {
		h.log.Warn().Err(err).Str("account_id", string(c.AccountID)).Msg("set offline failed")
	}
	if h.geo != nil && c.Role == types.RoleProvider {
		if err := h.geo.Remove(ctx, c.AccountID); err != nil {
			h.log.Warn().Err(err).Msg("geo remove failed")
		}
	}
	observability.ClientsOnline.Dec()
}

// Join subscribes the connection to a ride channel after checking the account
// is a participant.
func (h *Hub) Join(ctx context.Context, c *Client, rideID types.ID) error {
	ok, err := h.auth.IsParticipant(ctx, rideID, c.AccountID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// A frame may race Stop or Unregister; a detached client's send channel
	// is closed, so it must not re-enter the channel maps.
	if h.stopped || !h.clients[c] {
		return errors.New("hub: client disconnected")
	}
	ch := channelName(rideID)
	if h.channels[ch] == nil {
		h.channels[ch] = make(map[*Client]bool)
	}
	h.channels[ch][c] = true
	return nil
}

func (h *Hub) Leave(c *Client, rideID types.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := channelName(rideID)
	if members, ok := h.channels[ch]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, ch)
		}
	}
}

// Publish fans an event out to the ride channel's current members. Frames are
// enqueued under one lock acquisition so publish order is delivery order per
// channel. Satisfies the Notifier interfaces of the domain services.
func (h *Hub) Publish(rideID types.ID, kind string, payload map[string]any) {
	frame, err := marshalEvent(Event{
		Channel: channelName(rideID),
		Kind:    kind,
		Payload: payload,
		At:      time.Now().UTC(),
	})
	if err != nil {
		h.log.Error().Err(err).Str("kind", kind).Msg("event marshal failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.channels[channelName(rideID)] {
		if !c.enqueue(frame) {
			h.log.Debug().Str("account_id", string(c.AccountID)).Msg("send queue full, frame dropped")
		}
	}
}

// Broadcast sends an event to every connected client, optionally filtered by
// role. Used for open-ride announcements to providers.
func (h *Hub) Broadcast(kind string, payload map[string]any, role types.Role) {
	frame, err := marshalEvent(Event{
		Channel: "broadcast",
		Kind:    kind,
		Payload: payload,
		At:      time.Now().UTC(),
	})
	if err != nil {
		h.log.Error().Err(err).Str("kind", kind).Msg("event marshal failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if role != "" && c.Role != role {
			continue
		}
		if !c.enqueue(frame) {
			h.log.Debug().Str("account_id", string(c.AccountID)).Msg("send queue full, frame dropped")
		}
	}
}

// BroadcastPresence records the account's position and fans a presence update
// out to all connections.
func (h *Hub) BroadcastPresence(ctx context.Context, c *Client, pos types.Point) {
	if err := h.presence.UpdatePosition(ctx, c.AccountID, pos); err != nil {
		h.log.Warn().Err(err).Str("account_id", string(c.AccountID)).Msg("position update failed")
	}
	if h.geo != nil && c.Role == types.RoleProvider {
		if err := h.geo.UpdatePosition(ctx, c.AccountID, pos); err != nil {
			h.log.Warn().Err(err).Msg("geo update failed")
		}
	}
	h.Broadcast("presence.update", map[string]any{
		"account_id": string(c.AccountID),
		"role":       string(c.Role),
		"lat":        pos.Lat,
		"lng":        pos.Lng,
	}, "")
}

func channelName(rideID types.ID) string {
	return "ride:" + string(rideID)
}

func marshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
