package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const indexTimeout = 30 * time.Second

// Vector is a stored embedding with its metadata payload.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Match is a scored query result.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// IndexClient talks to a Pinecone index over its data-plane REST API.
type IndexClient struct {
	host       string
	apiKey     string
	namespace  string
	httpClient *http.Client
}

// NewIndexClient constructs an IndexClient for the given index host.
func NewIndexClient(host, apiKey, namespace string) *IndexClient {
	host = strings.TrimSpace(host)
	if host != "" && !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	return &IndexClient{
		host:       strings.TrimRight(host, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		namespace:  namespace,
		httpClient: &http.Client{Timeout: indexTimeout},
	}
}

// IsReady reports whether the index host and API key are configured.
func (c *IndexClient) IsReady() bool {
	return c.host != "" && c.apiKey != ""
}

// Upsert writes a vector into the configured namespace.
func (c *IndexClient) Upsert(ctx context.Context, vector Vector) error {
	payload := map[string]any{
		"vectors":   []Vector{vector},
		"namespace": c.namespace,
	}
	_, err := c.post(ctx, "/vectors/upsert", payload)
	return err
}

// Query returns the nearest stored vectors for a user, scored by similarity.
func (c *IndexClient) Query(ctx context.Context, embedding []float32, userID uint64, topK int) ([]Match, error) {
	payload := map[string]any{
		"vector":          embedding,
		"topK":            topK,
		"includeMetadata": true,
		"namespace":       c.namespace,
		"filter": map[string]any{
			"userId": map[string]any{"$eq": strconv.FormatUint(userID, 10)},
		},
	}
	body, errPost := c.post(ctx, "/query", payload)
	if errPost != nil {
		return nil, errPost
	}

	var parsed struct {
		Matches []Match `json:"matches"`
	}
	if errUnmarshal := json.Unmarshal(body, &parsed); errUnmarshal != nil {
		return nil, fmt.Errorf("memory: decode query response: %w", errUnmarshal)
	}
	return parsed.Matches, nil
}

// Delete removes vectors by ID from the configured namespace.
func (c *IndexClient) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	payload := map[string]any{
		"ids":       ids,
		"namespace": c.namespace,
	}
	_, err := c.post(ctx, "/vectors/delete", payload)
	return err
}

// post executes a data-plane request and returns the raw body.
func (c *IndexClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	if !c.IsReady() {
		return nil, errors.New("memory: vector index is not configured")
	}

	encoded, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return nil, fmt.Errorf("memory: marshal index request: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(encoded))
	if errReq != nil {
		return nil, fmt.Errorf("memory: build index request: %w", errReq)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("memory: index request failed: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, fmt.Errorf("memory: read index response: %w", errRead)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("memory: index request %s failed: status %d", path, resp.StatusCode)
	}
	return body, nil
}
