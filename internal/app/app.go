// Package app wires configuration, storage, and services into the HTTP
// server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"chatbot-api/internal/auth"
	"chatbot-api/internal/chat"
	"chatbot-api/internal/checkout"
	"chatbot-api/internal/config"
	"chatbot-api/internal/conversation"
	"chatbot-api/internal/credit"
	"chatbot-api/internal/db"
	"chatbot-api/internal/http/api/front"
	"chatbot-api/internal/mailer"
	"chatbot-api/internal/memory"
	"chatbot-api/internal/openrouter"
	"chatbot-api/internal/otp"
	"chatbot-api/internal/ratelimit"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// ConfigExists reports whether a config file exists at path.
func ConfigExists(path string) bool {
	info, errStat := os.Stat(path)
	return errStat == nil && !info.IsDir()
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the API server with database-backed components and blocks
// until ctx is cancelled or the listener fails.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	if strings.TrimSpace(jwtConfig.Secret) == "" {
		return errors.New("jwt secret is required (set JWT_SECRET or `jwt.secret` in config)")
	}

	var sender otp.Sender
	if m := mailer.New(config.LoadSMTPConfig(configPath)); m.IsConfigured() {
		sender = m
	} else {
		log.Warn("smtp is not configured, verification codes will not be delivered")
	}
	issuer := otp.NewIssuer(conn, sender)
	accounts := auth.NewService(conn, issuer, jwtConfig)

	stripeConfig := config.LoadStripeConfig(configPath)
	var bridge *checkout.Bridge
	var sessions credit.SessionRetriever
	if strings.TrimSpace(stripeConfig.SecretKey) != "" {
		bridge, err = checkout.New(conn, stripeConfig)
		if err != nil {
			return err
		}
		sessions = bridge
	} else {
		log.Warn("stripe is not configured, payments disabled")
	}
	ledger := credit.NewLedger(conn, sessions)

	store := conversation.NewStore(conn)
	gateway := openrouter.NewClient(config.LoadOpenRouterConfig(configPath))
	memoryService := memory.NewService(config.LoadPineconeConfig(configPath))
	chatService := chat.NewService(store, ledger, gateway, memoryService)

	rateLimitConfig := config.LoadRateLimitConfig(configPath)
	limiter := ratelimit.NewManager(
		ratelimit.StaticProvider(ratelimit.SettingsFromConfig(rateLimitConfig)),
		nil, nil,
	)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogMiddleware())

	front.RegisterFrontRoutes(engine, front.Dependencies{
		DB:            conn,
		JWT:           jwtConfig,
		Accounts:      accounts,
		Chat:          chatService,
		Store:         store,
		Ledger:        ledger,
		Checkout:      bridge,
		Memory:        memoryService,
		Models:        gateway,
		RateLimiter:   limiter,
		AuthRateLimit: rateLimitConfig.Limit,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	log.Infof("listening on :%d", port)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// requestLogMiddleware logs one line per request with latency and status.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}
