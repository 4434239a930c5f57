package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/watermate/internal/domain"
	"github.com/vladislavdragonenkov/watermate/internal/service/session"
)

type credentialsRequest struct {
	Phone string `json:"phone" binding:"required"`
	OTP   string `json:"otp"`
}

type sessionResponse struct {
	RequiresOTP bool         `json:"requiresOtp"`
	User        *domain.User `json:"user,omitempty"`
	Token       string       `json:"token,omitempty"`
	ExpiresAt   *time.Time   `json:"expiresAt,omitempty"`
}

func newSessionResponse(result session.LoginResult) sessionResponse {
	resp := sessionResponse{RequiresOTP: result.RequiresOTP, User: result.User, Token: result.Token}
	if !result.ExpiresAt.IsZero() {
		expires := result.ExpiresAt.UTC()
		resp.ExpiresAt = &expires
	}
	return resp
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.gate.Login(c.Request.Context(), req.Phone, req.OTP)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(result))
}

func (h *Handler) verifyOTP(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.gate.VerifyOTP(c.Request.Context(), req.Phone, req.OTP)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(result))
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.gate.Revoke(c.Request.Context(), c.GetString(tokenContextKey)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
