package handlers

import (
	"net/http"
	"strings"

	"chatbot-api/internal/auth"
	"chatbot-api/internal/checkout"
	"chatbot-api/internal/credit"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles credit balance and checkout endpoints.
type PaymentHandler struct {
	ledger   *credit.Ledger
	bridge   *checkout.Bridge
	accounts *auth.Service
}

// NewPaymentHandler constructs a PaymentHandler. bridge may be nil when the
// payment processor is not configured.
func NewPaymentHandler(ledger *credit.Ledger, bridge *checkout.Bridge, accounts *auth.Service) *PaymentHandler {
	return &PaymentHandler{ledger: ledger, bridge: bridge, accounts: accounts}
}

// Credits returns the authenticated user's balance.
func (h *PaymentHandler) Credits(c *gin.Context) {
	balance, errBalance := h.ledger.Balance(c.Request.Context(), getUserID(c))
	if errBalance != nil {
		respondError(c, errBalance)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credits": balance})
}

// HasCredits reports whether the authenticated user can send a metered
// message.
func (h *PaymentHandler) HasCredits(c *gin.Context) {
	ok, errCheck := h.ledger.HasCredits(c.Request.Context(), getUserID(c))
	if errCheck != nil {
		respondError(c, errCheck)
		return
	}
	c.JSON(http.StatusOK, gin.H{"has_credits": ok})
}

// CreateCheckout opens a hosted checkout session for the credit bundle and
// returns its URL.
func (h *PaymentHandler) CreateCheckout(c *gin.Context) {
	if h.bridge == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments are not configured"})
		return
	}

	userID := getUserID(c)
	user, errProfile := h.accounts.Profile(c.Request.Context(), userID)
	if errProfile != nil {
		respondError(c, errProfile)
		return
	}

	url, errCreate := h.bridge.CreateSession(c.Request.Context(), userID, user.Email)
	if errCreate != nil {
		respondError(c, errCreate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// confirmPaymentRequest defines the request body for reconciling a completed
// checkout session.
type confirmPaymentRequest struct {
	SessionID string `json:"session_id"`
}

// Confirm reconciles a completed checkout session into credits. Repeated
// confirmations of the same session grant at most once.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	if h.bridge == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments are not configured"})
		return
	}

	var body confirmPaymentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.SessionID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	balance, errReconcile := h.ledger.Reconcile(c.Request.Context(), body.SessionID)
	if errReconcile != nil {
		respondError(c, errReconcile)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credits": balance})
}
