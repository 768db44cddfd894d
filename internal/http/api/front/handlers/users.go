package handlers

import (
	"net/http"

	"chatbot-api/internal/auth"
	"chatbot-api/internal/memory"
	"chatbot-api/internal/models"

	"github.com/gin-gonic/gin"
)

// UserHandler handles profile and memory endpoints.
type UserHandler struct {
	accounts *auth.Service
	memory   *memory.Service
}

// NewUserHandler constructs a UserHandler. memory may be nil when the
// subsystem is not configured.
func NewUserHandler(accounts *auth.Service, memory *memory.Service) *UserHandler {
	return &UserHandler{accounts: accounts, memory: memory}
}

// Me returns the authenticated user's profile.
func (h *UserHandler) Me(c *gin.Context) {
	user, errProfile := h.accounts.Profile(c.Request.Context(), getUserID(c))
	if errProfile != nil {
		respondError(c, errProfile)
		return
	}
	c.JSON(http.StatusOK, formatUser(user))
}

// updateProfileRequest defines the request body for profile updates.
type updateProfileRequest struct {
	Name string `json:"name"`
}

// Update changes the authenticated user's display name.
func (h *UserHandler) Update(c *gin.Context) {
	var body updateProfileRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, errUpdate := h.accounts.UpdateProfile(c.Request.Context(), getUserID(c), body.Name)
	if errUpdate != nil {
		respondError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, formatUser(user))
}

// Delete removes the authenticated user's account, chats, and memories.
func (h *UserHandler) Delete(c *gin.Context) {
	userID := getUserID(c)

	if errDelete := h.accounts.DeleteAccount(c.Request.Context(), userID); errDelete != nil {
		respondError(c, errDelete)
		return
	}
	if h.memory != nil && h.memory.IsReady() {
		// Vector cleanup is best-effort; the account is already gone.
		_ = h.memory.ClearUser(c.Request.Context(), userID)
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ClearMemory deletes the authenticated user's long-term memories.
func (h *UserHandler) ClearMemory(c *gin.Context) {
	if h.memory == nil || !h.memory.IsReady() {
		c.JSON(http.StatusOK, gin.H{"cleared": false, "message": "memory is not configured"})
		return
	}

	if errClear := h.memory.ClearUser(c.Request.Context(), getUserID(c)); errClear != nil {
		respondError(c, errClear)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// formatUser converts a user model to a response payload.
func formatUser(user *models.User) gin.H {
	return gin.H{
		"id":      user.ID,
		"name":    user.Name,
		"email":   user.Email,
		"credits": user.Credits,
	}
}
