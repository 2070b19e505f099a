// README: Shared handler utilities (JSON helpers, domain error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hail/internal/http/middleware"
	"hail/internal/modules/payment"
	"hail/internal/modules/rating"
	"hail/internal/modules/ride"
	"hail/internal/modules/wallet"
	"hail/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrValidation), errors.Is(err, wallet.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrNotFound), errors.Is(err, wallet.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ride.ErrInvalidState), errors.Is(err, ride.ErrConflict),
		errors.Is(err, payment.ErrAlreadyPaid), errors.Is(err, rating.ErrDuplicate),
		errors.Is(err, wallet.ErrNameTaken):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, wallet.ErrInsufficientFunds):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// caller returns the authenticated account id, aborting with 401 if absent.
func caller(c *gin.Context) (types.ID, types.Role, bool) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthenticated")
		return "", "", false
	}
	return claims.AccountID, claims.Role, true
}
