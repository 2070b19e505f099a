// README: Rating handlers: submit feedback, per-account summary.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hail/internal/modules/rating"
	"hail/internal/types"
)

type RatingHandler struct {
	ratings *rating.Service
}

func NewRatingHandler(svc *rating.Service) *RatingHandler {
	return &RatingHandler{ratings: svc}
}

type submitRatingReq struct {
	RideID  string `json:"ride_id"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

func (h *RatingHandler) Submit(c *gin.Context) {
	callerID, _, ok := caller(c)
	if !ok {
		return
	}
	var req submitRatingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.ratings.Submit(c.Request.Context(), rating.SubmitCommand{
		RideID:  types.ID(req.RideID),
		RaterID: callerID,
		Score:   req.Score,
		Comment: req.Comment,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"rating_id":    r.ID,
		"ride_id":      r.RideID,
		"recipient_id": r.RecipientID,
		"score":        r.Score,
	})
}

func (h *RatingHandler) ForAccount(c *gin.Context) {
	accountID := types.ID(c.Param("id"))
	list, sum, err := h.ratings.ForAccount(c.Request.Context(), accountID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, r := range list {
		out = append(out, gin.H{
			"ride_id":    r.RideID,
			"score":      r.Score,
			"comment":    r.Comment,
			"created_at": r.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(c, http.StatusOK, gin.H{
		"average": sum.Average,
		"count":   sum.Count,
		"ratings": out,
	})
}
