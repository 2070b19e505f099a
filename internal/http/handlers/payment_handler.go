// README: Settlement handlers: settle a ride, look up payments, provider
// earnings.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hail/internal/modules/payment"
	"hail/internal/types"
)

type PaymentHandler struct {
	payments *payment.Service
}

func NewPaymentHandler(svc *payment.Service) *PaymentHandler {
	return &PaymentHandler{payments: svc}
}

func (h *PaymentHandler) Settle(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	stl, err := h.payments.Settle(c.Request.Context(), types.ID(c.Param("id")), callerID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, settlementResponse(stl))
}

func (h *PaymentHandler) ForRide(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	stl, err := h.payments.ForRide(c.Request.Context(), types.ID(c.Param("id")), callerID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, settlementResponse(stl))
}

func (h *PaymentHandler) History(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.payments.History(c.Request.Context(), callerID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, stl := range list {
		out = append(out, settlementResponse(stl))
	}
	writeJSON(c, http.StatusOK, gin.H{"payments": out})
}

func (h *PaymentHandler) Earnings(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	total, err := h.payments.Earnings(c.Request.Context(), callerID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"total": total.Amount, "currency": total.Currency})
}

func settlementResponse(stl *payment.Settlement) gin.H {
	return gin.H{
		"payment_id": stl.ID,
		"ride_id":    stl.RideID,
		"payer_id":   stl.PayerID,
		"payee_id":   stl.PayeeID,
		"amount":     stl.Amount.Amount,
		"currency":   stl.Amount.Currency,
		"status":     stl.Status,
		"method":     stl.Method,
		"created_at": stl.CreatedAt.Format(time.RFC3339),
	}
}
