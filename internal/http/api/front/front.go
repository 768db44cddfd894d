// Package front registers the public HTTP API.
package front

import (
	"net/http"
	"strings"

	"chatbot-api/internal/auth"
	"chatbot-api/internal/chat"
	"chatbot-api/internal/checkout"
	"chatbot-api/internal/config"
	"chatbot-api/internal/conversation"
	"chatbot-api/internal/credit"
	"chatbot-api/internal/http/api/front/handlers"
	"chatbot-api/internal/memory"
	"chatbot-api/internal/openrouter"
	"chatbot-api/internal/ratelimit"
	"chatbot-api/internal/security"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies carries the services the public API routes over.
type Dependencies struct {
	DB            *gorm.DB
	JWT           config.JWTConfig
	Accounts      *auth.Service
	Chat          *chat.Service
	Store         *conversation.Store
	Ledger        *credit.Ledger
	Checkout      *checkout.Bridge // nil when payments are not configured
	Memory        *memory.Service  // nil when the subsystem is not configured
	Models        *openrouter.Client
	RateLimiter   *ratelimit.Manager
	AuthRateLimit int
}

// RegisterFrontRoutes registers public routes, middleware, and handlers.
func RegisterFrontRoutes(r *gin.Engine, deps Dependencies) {
	if r == nil || deps.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	v1 := r.Group("/v1")

	authHandler := handlers.NewAuthHandler(deps.Accounts)
	throttled := throttleMiddleware(deps.RateLimiter, deps.AuthRateLimit)
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/send-otp", throttled("send-otp"), authHandler.SendOTP)
	authGroup.POST("/verify-otp", authHandler.VerifyOTP)
	authGroup.POST("/login", throttled("login"), authHandler.Login)
	authGroup.POST("/forgot-password", throttled("forgot-password"), authHandler.ForgotPassword)
	authGroup.POST("/reset-password", authHandler.ResetPassword)

	modelHandler := handlers.NewModelHandler(deps.Models)
	v1.GET("/models", modelHandler.List)

	chatHandler := handlers.NewChatHandler(deps.Chat, deps.Store, deps.Ledger)
	v1.POST("/chat/send", optionalAuthMiddleware(deps.JWT), chatHandler.Send)
	v1.GET("/chat/:id", optionalAuthMiddleware(deps.JWT), chatHandler.Get)

	authed := v1.Group("")
	authed.Use(userAuthMiddleware(deps.JWT))

	authed.GET("/chat/sidebar", chatHandler.Sidebar)
	authed.GET("/chat/usage", chatHandler.Usage)
	authed.PUT("/chat/:id", chatHandler.Rename)
	authed.DELETE("/chat/:id", chatHandler.Delete)
	authed.DELETE("/chat", chatHandler.DeleteAll)

	paymentHandler := handlers.NewPaymentHandler(deps.Ledger, deps.Checkout, deps.Accounts)
	authed.GET("/payment/credits", paymentHandler.Credits)
	authed.GET("/payment/has-credits", paymentHandler.HasCredits)
	authed.POST("/payment/checkout", paymentHandler.CreateCheckout)
	authed.POST("/payment/confirm", paymentHandler.Confirm)

	userHandler := handlers.NewUserHandler(deps.Accounts, deps.Memory)
	authed.GET("/user/me", userHandler.Me)
	authed.PUT("/user/me", userHandler.Update)
	authed.DELETE("/user/me", userHandler.Delete)
	authed.DELETE("/memory", userHandler.ClearMemory)
}

// bearerToken extracts the Bearer token from the Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// userAuthMiddleware validates user JWTs and loads the user id into context.
func userAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		userID, email, errParse := security.ParseUserToken(jwtCfg, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("userID", userID)
		c.Set("userEmail", email)
		c.Next()
	}
}

// optionalAuthMiddleware loads the user id when a valid token is present and
// lets anonymous requests through. A malformed token is still rejected so a
// broken client does not silently lose its identity.
func optionalAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || token == "" {
			c.Next()
			return
		}

		userID, email, errParse := security.ParseUserToken(jwtCfg, token)
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("userID", userID)
		c.Set("userEmail", email)
		c.Next()
	}
}

// throttleMiddleware builds per-action rate limit middleware keyed by client
// address. A nil manager or non-positive limit disables the check.
func throttleMiddleware(manager *ratelimit.Manager, limit int) func(action string) gin.HandlerFunc {
	return func(action string) gin.HandlerFunc {
		return func(c *gin.Context) {
			if manager == nil || limit <= 0 {
				c.Next()
				return
			}

			key := ratelimit.KeyForIP(action, c.ClientIP())
			result, errAllow := manager.Allow(c.Request.Context(), key, limit)
			if errAllow != nil {
				// Limiter trouble never blocks logins.
				c.Next()
				return
			}
			if !result.Allowed {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts, please try again shortly"})
				return
			}
			c.Next()
		}
	}
}
