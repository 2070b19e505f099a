// README: Fare suggestion endpoint.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hail/internal/modules/pricing"
	"hail/internal/types"
)

type PricingHandler struct {
	suggester pricing.Suggester
}

func NewPricingHandler(s pricing.Suggester) *PricingHandler {
	return &PricingHandler{suggester: s}
}

func (h *PricingHandler) Suggest(c *gin.Context) {
	distance, err := strconv.ParseFloat(c.Query("distance_km"), 64)
	if err != nil || distance < 0 {
		writeError(c, http.StatusBadRequest, "invalid distance_km")
		return
	}
	class := types.VehicleClass(c.Query("vehicle_class"))
	if class == "" {
		class = types.VehicleCar
	}
	if !class.Valid() {
		writeError(c, http.StatusBadRequest, "invalid vehicle_class")
		return
	}

	min, max, err := h.suggester.Suggest(c.Request.Context(), distance, class)
	if err != nil {
		writeError(c, http.StatusServiceUnavailable, "fare suggestion unavailable")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"min_fare": min.Amount,
		"max_fare": max.Amount,
		"currency": min.Currency,
	})
}
