// README: Websocket endpoint. The reader loop parses client frames
// (join/leave/chat/location) and the writer goroutine drains the hub send
// queue; disconnect tears both down and marks the account offline.
package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hail/internal/hub"
	"hail/internal/logging"
	"hail/internal/modules/chat"
	"hail/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type WSHandler struct {
	hub  *hub.Hub
	chat *chat.Service
	log  zerolog.Logger
}

func NewWSHandler(h *hub.Hub, chatSvc *chat.Service) *WSHandler {
	return &WSHandler{hub: h, chat: chatSvc, log: logging.New("ws")}
}

type clientFrame struct {
	Type   string  `json:"type"`
	RideID string  `json:"ride_id,omitempty"`
	Body   string  `json:"body,omitempty"`
	Lat    float64 `json:"lat,omitempty"`
	Lng    float64 `json:"lng,omitempty"`
}

type ackFrame struct {
	Type   string `json:"type"`
	RideID string `json:"ride_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (h *WSHandler) Serve(c *gin.Context) {
	callerID, role, ok := caller(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	ctx := context.Background()
	client, err := h.hub.Register(ctx, callerID, role)
	if err != nil {
		conn.Close()
		return
	}

	go h.writePump(conn, client)
	h.readPump(ctx, conn, client)
}

// writePump is the connection's only socket writer; it drains the hub queue
// until the client unregisters.
func (h *WSHandler) writePump(conn *websocket.Conn, client *hub.Client) {
	defer conn.Close()
	for frame := range client.Send() {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

func (h *WSHandler) readPump(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(ctx, client)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.log.Debug().Str("account_id", string(client.AccountID)).Msg("unparseable frame")
			h.ack(client, ackFrame{Type: "error", Error: "invalid frame"})
			continue
		}
		h.handleFrame(ctx, client, frame)
	}
}

func (h *WSHandler) handleFrame(ctx context.Context, client *hub.Client, frame clientFrame) {
	switch frame.Type {
	case "join":
		err := h.hub.Join(ctx, client, types.ID(frame.RideID))
		if err != nil {
			msg := "join failed"
			if errors.Is(err, hub.ErrNotParticipant) {
				msg = err.Error()
			}
			h.ack(client, ackFrame{Type: "join.rejected", RideID: frame.RideID, Error: msg})
			return
		}
		h.ack(client, ackFrame{Type: "join.ok", RideID: frame.RideID})
	case "leave":
		h.hub.Leave(client, types.ID(frame.RideID))
		h.ack(client, ackFrame{Type: "leave.ok", RideID: frame.RideID})
	case "chat":
		if _, err := h.chat.Post(ctx, types.ID(frame.RideID), client.AccountID, frame.Body); err != nil {
			h.ack(client, ackFrame{Type: "chat.rejected", RideID: frame.RideID, Error: err.Error()})
		}
	case "location":
		h.hub.BroadcastPresence(ctx, client, types.Point{Lat: frame.Lat, Lng: frame.Lng})
	default:
		h.ack(client, ackFrame{Type: "error", Error: "unknown frame type"})
	}
}

// ack rides the client's send queue so the writer goroutine stays the single
// socket writer.
func (h *WSHandler) ack(client *hub.Client, frame ackFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	client.Enqueue(data)
}
