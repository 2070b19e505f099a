// README: Ride request lifecycle handlers: create, browse, offer, accept,
// complete, cancel.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hail/internal/modules/pricing"
	"hail/internal/modules/ride"
	"hail/internal/types"
)

type RideHandler struct {
	rides  *ride.Service
	routes *pricing.RouteService
}

// NewRideHandler wires the ride endpoints. routes may be nil; distance then
// falls back to the great-circle estimate.
func NewRideHandler(svc *ride.Service, routes *pricing.RouteService) *RideHandler {
	return &RideHandler{rides: svc, routes: routes}
}

type createRideReq struct {
	PickupLat      float64 `json:"pickup_lat"`
	PickupLng      float64 `json:"pickup_lng"`
	DropoffLat     float64 `json:"dropoff_lat"`
	DropoffLng     float64 `json:"dropoff_lng"`
	PickupAddress  string  `json:"pickup_address"`
	DropoffAddress string  `json:"dropoff_address"`
	OfferedFare    int64   `json:"offered_fare"`
	VehicleClass   string  `json:"vehicle_class"`
}

func (h *RideHandler) Create(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	var req createRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	pickup := types.Point{Lat: req.PickupLat, Lng: req.PickupLng}
	dropoff := types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng}
	distance := pricing.DistanceKm(pickup, dropoff)
	if h.routes != nil {
		if km, err := h.routes.RoadDistanceKm(c.Request.Context(), pickup, dropoff); err == nil {
			distance = km
		}
	}

	r, err := h.rides.Create(c.Request.Context(), ride.CreateCommand{
		RequesterID:    callerID,
		Pickup:         pickup,
		Dropoff:        dropoff,
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		OfferedFare:    req.OfferedFare,
		VehicleClass:   types.VehicleClass(req.VehicleClass),
		DistanceKm:     &distance,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, rideResponse(r))
}

func (h *RideHandler) Get(c *gin.Context) {
	r, err := h.rides.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rideResponse(r))
}

func (h *RideHandler) ListOpen(c *gin.Context) {
	list, err := h.rides.ListOpen(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, r := range list {
		out = append(out, rideResponse(r))
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": out})
}

func (h *RideHandler) ListMine(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	list, err := h.rides.ListByParticipant(c.Request.Context(), callerID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, r := range list {
		out = append(out, rideResponse(r))
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": out})
}

type submitOfferReq struct {
	Fare int64 `json:"fare"`
}

func (h *RideHandler) SubmitOffer(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	var req submitOfferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.rides.SubmitOffer(c.Request.Context(), ride.SubmitOfferCommand{
		RideID:     types.ID(c.Param("id")),
		ProviderID: callerID,
		Fare:       req.Fare,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, offerResponse(o))
}

func (h *RideHandler) ListOffers(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	offers, err := h.rides.ListOffers(c.Request.Context(), types.ID(c.Param("id")), callerID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(offers))
	for _, o := range offers {
		out = append(out, offerResponse(o))
	}
	writeJSON(c, http.StatusOK, gin.H{"offers": out})
}

func (h *RideHandler) AcceptOffer(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	r, err := h.rides.AcceptOffer(c.Request.Context(), ride.AcceptOfferCommand{
		RideID:      types.ID(c.Param("id")),
		RequesterID: callerID,
		OfferID:     types.ID(c.Param("offer_id")),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rideResponse(r))
}

func (h *RideHandler) Complete(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	r, err := h.rides.Complete(c.Request.Context(), ride.CompleteCommand{
		RideID:     types.ID(c.Param("id")),
		ProviderID: callerID,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rideResponse(r))
}

func (h *RideHandler) Cancel(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	r, err := h.rides.Cancel(c.Request.Context(), ride.CancelCommand{
		RideID:      types.ID(c.Param("id")),
		RequesterID: callerID,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rideResponse(r))
}

func rideResponse(r *ride.Request) gin.H {
	out := gin.H{
		"ride_id":       r.ID,
		"requester_id":  r.RequesterID,
		"pickup":        gin.H{"lat": r.Pickup.Lat, "lng": r.Pickup.Lng, "address": r.PickupAddress},
		"dropoff":       gin.H{"lat": r.Dropoff.Lat, "lng": r.Dropoff.Lng, "address": r.DropoffAddress},
		"offered_fare":  r.OfferedFare.Amount,
		"currency":      r.OfferedFare.Currency,
		"vehicle_class": r.VehicleClass,
		"status":        r.Status,
		"created_at":    r.CreatedAt.Format(time.RFC3339),
	}
	if r.ProviderID != nil {
		out["provider_id"] = *r.ProviderID
	}
	if r.AcceptedFare != nil {
		out["accepted_fare"] = r.AcceptedFare.Amount
	}
	if r.SuggestedMin != nil && r.SuggestedMax != nil {
		out["suggested_fare"] = gin.H{"min": r.SuggestedMin.Amount, "max": r.SuggestedMax.Amount}
	}
	if r.DistanceKm != nil {
		out["distance_km"] = *r.DistanceKm
	}
	return out
}

func offerResponse(o *ride.Offer) gin.H {
	return gin.H{
		"offer_id":    o.ID,
		"ride_id":     o.RideID,
		"provider_id": o.ProviderID,
		"fare":        o.Fare.Amount,
		"status":      o.Status,
		"created_at":  o.CreatedAt.Format(time.RFC3339),
	}
}
