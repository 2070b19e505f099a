// README: Wallet handlers: balance, deposit, withdraw.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hail/internal/modules/wallet"
)

type WalletHandler struct {
	wallet *wallet.Service
}

func NewWalletHandler(svc *wallet.Service) *WalletHandler {
	return &WalletHandler{wallet: svc}
}

func (h *WalletHandler) Balance(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	bal, err := h.wallet.Balance(c.Request.Context(), callerID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"balance": bal.Amount, "currency": bal.Currency})
}

type amountReq struct {
	Amount int64 `json:"amount"`
}

func (h *WalletHandler) Deposit(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	var req amountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	bal, err := h.wallet.Deposit(c.Request.Context(), callerID, req.Amount)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"balance": bal.Amount, "currency": bal.Currency})
}

func (h *WalletHandler) Withdraw(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	var req amountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	bal, err := h.wallet.Withdraw(c.Request.Context(), callerID, req.Amount)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"balance": bal.Amount, "currency": bal.Currency})
}
