package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"freightpay/internal/domain"
	"freightpay/internal/redis"
)

// SessionHandler handles HTTP requests for sessions.
type SessionHandler struct {
	sessions redis.SessionStoreInterface
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions redis.SessionStoreInterface) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// CreateSessionRequest is the HTTP request body for opening a session.
// OTP delivery and checking happen upstream; this endpoint trades a
// verified identity for a bearer token.
type CreateSessionRequest struct {
	PhoneNumber string `json:"phone_number"`
	UserType    string `json:"user_type"`
}

// Create handles POST /v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.PhoneNumber == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "phone_number is required"})
		return
	}

	userType := domain.UserType(req.UserType)
	if userType != domain.UserTypeDriver && userType != domain.UserTypeCargoOwner {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user_type must be driver or cargoOwner"})
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), req.PhoneNumber, userType)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, session)
}

// Delete handles DELETE /v1/sessions
func (h *SessionHandler) Delete(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if token == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing bearer token"})
		return
	}

	if err := h.sessions.Delete(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
