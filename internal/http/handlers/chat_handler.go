// README: Chat handlers: post a message, replay history.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hail/internal/modules/chat"
	"hail/internal/types"
)

type ChatHandler struct {
	chat *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{chat: svc}
}

type postMessageReq struct {
	Body string `json:"body"`
}

func (h *ChatHandler) Post(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	var req postMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	msg, err := h.chat.Post(c.Request.Context(), types.ID(c.Param("id")), callerID, req.Body)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, messageResponse(msg))
}

func (h *ChatHandler) History(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.chat.History(c.Request.Context(), types.ID(c.Param("id")), callerID, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse(m))
	}
	writeJSON(c, http.StatusOK, gin.H{"messages": out})
}

func messageResponse(m *chat.Message) gin.H {
	return gin.H{
		"message_id": m.ID,
		"ride_id":    m.RideID,
		"sender_id":  m.SenderID,
		"body":       m.Body,
		"sent_at":    m.SentAt.Format(time.RFC3339),
	}
}
