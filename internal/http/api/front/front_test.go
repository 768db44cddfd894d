package front

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"chatbot-api/internal/auth"
	"chatbot-api/internal/chat"
	"chatbot-api/internal/config"
	"chatbot-api/internal/conversation"
	"chatbot-api/internal/credit"
	"chatbot-api/internal/db"
	"chatbot-api/internal/models"
	"chatbot-api/internal/openrouter"
	"chatbot-api/internal/otp"
	"chatbot-api/internal/ratelimit"
	"chatbot-api/internal/security"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// newTestServer wires real components over a temp sqlite DB and a stub
// upstream model endpoint.
func newTestServer(t *testing.T, authRateLimit int) (*gin.Engine, *gorm.DB, config.JWTConfig) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + filepath.Join(t.TempDir(), "front-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "openai/gpt-3.5-turbo",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello there"}},
			},
		})
	}))
	t.Cleanup(upstream.Close)

	jwtCfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
	issuer := otp.NewIssuer(conn, nil)
	accounts := auth.NewService(conn, issuer, jwtCfg)
	store := conversation.NewStore(conn)
	ledger := credit.NewLedger(conn, nil)
	gateway := openrouter.NewClient(config.OpenRouterConfig{
		APIKey:       "test-key",
		BaseURL:      upstream.URL,
		DefaultModel: "openai/gpt-3.5-turbo",
	})
	chatService := chat.NewService(store, ledger, gateway, nil)
	limiter := ratelimit.NewManager(ratelimit.StaticProvider(ratelimit.SettingsConfig{}), nil, nil)

	engine := gin.New()
	RegisterFrontRoutes(engine, Dependencies{
		DB:            conn,
		JWT:           jwtCfg,
		Accounts:      accounts,
		Chat:          chatService,
		Store:         store,
		Ledger:        ledger,
		Models:        gateway,
		RateLimiter:   limiter,
		AuthRateLimit: authRateLimit,
	})
	return engine, conn, jwtCfg
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var errMarshal error
		payload, errMarshal = json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	engine, _, _ := newTestServer(t, 0)

	rec := doJSON(t, engine, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	engine, conn, jwtCfg := newTestServer(t, 0)

	if rec := doJSON(t, engine, http.MethodGet, "/v1/user/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := doJSON(t, engine, http.MethodGet, "/v1/user/me", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}

	user := models.User{Email: "me@example.com", Password: "hashed", IsVerified: true, Credits: 3}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("seed user: %v", errCreate)
	}
	token, errToken := security.IssueUserToken(jwtCfg, user.ID, user.Email)
	if errToken != nil {
		t.Fatalf("issue token: %v", errToken)
	}

	rec := doJSON(t, engine, http.MethodGet, "/v1/user/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Email   string `json:"email"`
		Credits int64  `json:"credits"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode body: %v", errDecode)
	}
	if body.Email != "me@example.com" || body.Credits != 3 {
		t.Fatalf("unexpected profile %+v", body)
	}
}

func TestSendMessage_AnonymousOverHTTP(t *testing.T) {
	engine, _, _ := newTestServer(t, 0)

	rec := doJSON(t, engine, http.MethodPost, "/v1/chat/send", "", gin.H{"message": "hi"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Chat struct {
			ID       uint64 `json:"id"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		} `json:"chat"`
		Credits *int64 `json:"credits"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode body: %v", errDecode)
	}
	if body.Credits != nil {
		t.Fatalf("expected no credits field for anonymous, got %d", *body.Credits)
	}
	if len(body.Chat.Messages) != 2 || body.Chat.Messages[1].Content != "hello there" {
		t.Fatalf("unexpected chat payload %+v", body.Chat)
	}
}

func TestMeteredSendDeductsOverHTTP(t *testing.T) {
	engine, conn, jwtCfg := newTestServer(t, 0)

	user := models.User{Email: "m@example.com", Password: "hashed", IsVerified: true, Credits: 2}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("seed user: %v", errCreate)
	}
	token, _ := security.IssueUserToken(jwtCfg, user.ID, user.Email)

	rec := doJSON(t, engine, http.MethodPost, "/v1/chat/send", token, gin.H{"message": "hi"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Credits *int64 `json:"credits"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &body); errDecode != nil {
		t.Fatalf("decode body: %v", errDecode)
	}
	if body.Credits == nil || *body.Credits != 1 {
		t.Fatalf("expected 1 credit remaining, got %v", body.Credits)
	}

	// Exhaust the balance, then expect 402.
	if rec = doJSON(t, engine, http.MethodPost, "/v1/chat/send", token, gin.H{"message": "hi again"}); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec = doJSON(t, engine, http.MethodPost, "/v1/chat/send", token, gin.H{"message": "one more"}); rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginThrottled(t *testing.T) {
	engine, _, _ := newTestServer(t, 2)

	body := gin.H{"email": "ghost@example.com", "password": "whatever"}
	for i := 0; i < 2; i++ {
		if rec := doJSON(t, engine, http.MethodPost, "/v1/auth/login", "", body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	if rec := doJSON(t, engine, http.MethodPost, "/v1/auth/login", "", body); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", rec.Code)
	}
}
