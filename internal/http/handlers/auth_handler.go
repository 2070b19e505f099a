// README: Registration and login.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hail/internal/auth"
	"hail/internal/modules/wallet"
	"hail/internal/types"
)

type AuthHandler struct {
	wallet *wallet.Service
	tokens *auth.JWT
}

func NewAuthHandler(w *wallet.Service, tokens *auth.JWT) *AuthHandler {
	return &AuthHandler{wallet: w, tokens: tokens}
}

type registerReq struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" || len(req.Password) < 6 {
		writeError(c, http.StatusBadRequest, "name and password (min 6 chars) required")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	acct, err := h.wallet.Register(c.Request.Context(), wallet.RegisterCommand{
		Name:         req.Name,
		PasswordHash: hash,
		Role:         types.Role(req.Role),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	token, err := h.tokens.Issue(acct.ID, acct.Role)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"account_id": acct.ID,
		"name":       acct.Name,
		"role":       acct.Role,
		"token":      token,
	})
}

type loginReq struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	acct, err := h.wallet.GetByName(c.Request.Context(), req.Name)
	if err != nil || !auth.CheckPassword(acct.PasswordHash, req.Password) {
		// Same response for unknown name and wrong password.
		writeError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := h.tokens.Issue(acct.ID, acct.Role)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"account_id": acct.ID,
		"role":       acct.Role,
		"token":      token,
	})
}
