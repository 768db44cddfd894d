package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatbot-api/internal/config"
)

func testConfig(baseURL string) config.OpenRouterConfig {
	return config.OpenRouterConfig{
		APIKey:       "or-test-key",
		BaseURL:      baseURL,
		DefaultModel: "openai/gpt-3.5-turbo",
	}
}

func TestGenerate_Success(t *testing.T) {
	var gotAuth string
	var gotBody completionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if errDecode := json.NewDecoder(r.Body).Decode(&gotBody); errDecode != nil {
			t.Errorf("decode request: %v", errDecode)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "openai/gpt-3.5-turbo",
			"choices": [{"message": {"role": "assistant", "content": "hello back"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4}
		}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	result, err := client.Generate(context.Background(), GenerateRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Content != "hello back" {
		t.Fatalf("expected reply content, got %q", result.Content)
	}
	if result.PromptTokens != 12 || result.CompletionTokens != 4 {
		t.Fatalf("unexpected usage: %+v", result)
	}
	if gotAuth != "Bearer or-test-key" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
	if gotBody.Model != "openai/gpt-3.5-turbo" {
		t.Fatalf("expected default model applied, got %q", gotBody.Model)
	}
	if gotBody.Temperature != 0.7 {
		t.Fatalf("expected default temperature 0.7, got %v", gotBody.Temperature)
	}
	if gotBody.MaxTokens != 1000 {
		t.Fatalf("expected default max tokens 1000, got %d", gotBody.MaxTokens)
	}
}

func TestGenerate_UnauthorizedIsDistinct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key"}}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, err := client.Generate(context.Background(), GenerateRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGenerate_NotConfigured(t *testing.T) {
	client := NewClient(config.OpenRouterConfig{BaseURL: "http://localhost:1", DefaultModel: "m"})
	_, err := client.Generate(context.Background(), GenerateRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestGenerate_UpstreamErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "model not found"}}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	_, err := client.Generate(context.Background(), GenerateRequest{
		Model:    "missing/model",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != "openrouter: model not found" {
		t.Fatalf("expected upstream message surfaced, got %q", got)
	}
}

func TestModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"id": "openai/gpt-3.5-turbo", "name": "GPT-3.5 Turbo", "context_length": 16385}]}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	modelList, err := client.Models(context.Background())
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if len(modelList) != 1 || modelList[0].ID != "openai/gpt-3.5-turbo" {
		t.Fatalf("unexpected model list: %+v", modelList)
	}
}
