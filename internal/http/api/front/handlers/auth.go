package handlers

import (
	"net/http"

	"chatbot-api/internal/auth"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles signup, login, and password reset endpoints.
type AuthHandler struct {
	service *auth.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

// registerRequest defines the request body for starting a signup.
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register starts a signup and sends a verification code.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if errSignup := h.service.InitiateSignup(c.Request.Context(), body.Email, body.Name, body.Password); errSignup != nil {
		respondError(c, errSignup)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification code sent"})
}

// emailRequest defines request bodies that carry only an email.
type emailRequest struct {
	Email string `json:"email"`
}

// SendOTP re-issues the signup verification code.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var body emailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if errSend := h.service.ResendSignupOTP(c.Request.Context(), body.Email); errSend != nil {
		respondError(c, errSend)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification code sent"})
}

// verifyOTPRequest defines the request body for confirming a signup code.
type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP confirms the signup code and activates the account.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var body verifyOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	userID, errVerify := h.service.VerifySignup(c.Request.Context(), body.Email, body.OTP)
	if errVerify != nil {
		respondError(c, errVerify)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email verified", "user_id": userID})
}

// loginRequest defines the request body for logging in.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks credentials and returns a signed token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	token, user, errLogin := h.service.Login(c.Request.Context(), body.Email, body.Password)
	if errLogin != nil {
		respondError(c, errLogin)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":      user.ID,
			"name":    user.Name,
			"email":   user.Email,
			"credits": user.Credits,
		},
	})
}

// ForgotPassword starts a password reset. The response never reveals whether
// the email is registered.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var body emailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if errForgot := h.service.ForgotPassword(c.Request.Context(), body.Email); errForgot != nil {
		respondError(c, errForgot)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "if the email is registered, a reset code has been sent"})
}

// resetPasswordRequest defines the request body for completing a reset.
type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// ResetPassword verifies the reset code and replaces the password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var body resetPasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if errReset := h.service.ResetPassword(c.Request.Context(), body.Email, body.OTP, body.NewPassword); errReset != nil {
		respondError(c, errReset)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}
