// README: Operator stats endpoint.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hail/internal/modules/ride"
	"hail/internal/modules/wallet"
)

type AdminHandler struct {
	wallet *wallet.Service
	rides  *ride.Service
}

func NewAdminHandler(w *wallet.Service, r *ride.Service) *AdminHandler {
	return &AdminHandler{wallet: w, rides: r}
}

func (h *AdminHandler) Stats(c *gin.Context) {
	roles, err := h.wallet.CountByRole(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	open, err := h.rides.ListOpen(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"accounts_by_role": roles,
		"open_rides":       len(open),
	})
}
