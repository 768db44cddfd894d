package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Input type parameters for the Pinecone inference API.
const (
	// InputTypePassage embeds content for storage.
	InputTypePassage = "passage"
	// InputTypeQuery embeds a retrieval query.
	InputTypeQuery = "query"
)

const (
	inferenceBaseURL   = "https://api.pinecone.io"
	pineconeAPIVersion = "2024-10"
	embedTimeout       = 30 * time.Second
)

// EmbeddingClient generates embeddings through the Pinecone inference API.
type EmbeddingClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewEmbeddingClient constructs an EmbeddingClient.
func NewEmbeddingClient(apiKey, model string) *EmbeddingClient {
	return &EmbeddingClient{
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		baseURL:    inferenceBaseURL,
		httpClient: &http.Client{Timeout: embedTimeout},
	}
}

// IsConfigured reports whether an API key is present.
func (c *EmbeddingClient) IsConfigured() bool {
	return c.apiKey != ""
}

// embedRequest is the inference API wire format.
type embedRequest struct {
	Model      string `json:"model"`
	Parameters struct {
		InputType string `json:"input_type"`
		Truncate  string `json:"truncate"`
	} `json:"parameters"`
	Inputs []struct {
		Text string `json:"text"`
	} `json:"inputs"`
}

type embedResponse struct {
	Data []struct {
		Values []float32 `json:"values"`
	} `json:"data"`
}

// Embed generates an embedding for a single text with the given input type.
func (c *EmbeddingClient) Embed(ctx context.Context, text, inputType string) ([]float32, error) {
	if !c.IsConfigured() {
		return nil, errors.New("memory: embedding client is not configured")
	}

	req := embedRequest{Model: c.model}
	req.Parameters.InputType = inputType
	req.Parameters.Truncate = "END"
	req.Inputs = []struct {
		Text string `json:"text"`
	}{{Text: text}}

	payload, errMarshal := json.Marshal(req)
	if errMarshal != nil {
		return nil, fmt.Errorf("memory: marshal embed request: %w", errMarshal)
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(payload))
	if errReq != nil {
		return nil, fmt.Errorf("memory: build embed request: %w", errReq)
	}
	httpReq.Header.Set("Api-Key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Pinecone-API-Version", pineconeAPIVersion)

	resp, errDo := c.httpClient.Do(httpReq)
	if errDo != nil {
		return nil, fmt.Errorf("memory: embed request failed: %w", errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, fmt.Errorf("memory: read embed response: %w", errRead)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("memory: embed failed: status %d", resp.StatusCode)
	}

	var parsed embedResponse
	if errUnmarshal := json.Unmarshal(body, &parsed); errUnmarshal != nil {
		return nil, fmt.Errorf("memory: decode embed response: %w", errUnmarshal)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Values) == 0 {
		return nil, errors.New("memory: no embedding returned")
	}
	return parsed.Data[0].Values, nil
}
