// Package memory gives the chatbot long-term recall backed by a vector
// index. Every operation degrades silently: a broken or unconfigured index
// must never fail a chat request.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"chatbot-api/internal/config"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Memory record types.
const (
	// TypePreference marks a stated user preference.
	TypePreference = "user_preference"
	// TypeFact marks a durable fact about the user.
	TypeFact = "fact"
	// TypeContext marks a conversation exchange snapshot.
	TypeContext = "context"
	// TypeSummary marks a condensed thread summary.
	TypeSummary = "summary"
)

// Importance scores per record type.
const (
	importanceContext    = 5
	importanceFact       = 8
	importancePreference = 9
)

// exchangeReplyLimit caps how much of the assistant reply is stored per exchange.
const exchangeReplyLimit = 300

// Retrieved is a scored memory returned from retrieval.
type Retrieved struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
	Type    string  `json:"type"`
}

// embedder generates embeddings for storage or query.
type embedder interface {
	IsConfigured() bool
	Embed(ctx context.Context, text, inputType string) ([]float32, error)
}

// vectorIndex stores and searches embeddings.
type vectorIndex interface {
	IsReady() bool
	Upsert(ctx context.Context, vector Vector) error
	Query(ctx context.Context, embedding []float32, userID uint64, topK int) ([]Match, error)
	Delete(ctx context.Context, ids []string) error
}

// minRelevanceScore filters weak matches out of retrieved context.
const minRelevanceScore = 0.5

// Service stores and retrieves user memories.
type Service struct {
	embedder embedder
	index    vectorIndex
}

// NewService wires the embedding and index clients from config.
func NewService(cfg config.PineconeConfig) *Service {
	return &Service{
		embedder: NewEmbeddingClient(cfg.APIKey, cfg.Model),
		index:    NewIndexClient(cfg.IndexHost, cfg.APIKey, cfg.Namespace),
	}
}

// newServiceWith wires explicit dependencies, used by tests.
func newServiceWith(e embedder, idx vectorIndex) *Service {
	return &Service{embedder: e, index: idx}
}

// IsReady reports whether both the embedder and the index are configured.
func (s *Service) IsReady() bool {
	return s != nil && s.embedder.IsConfigured() && s.index.IsReady()
}

// Retrieve returns formatted memory context relevant to the query. Failures
// and an unready service both yield an empty context.
func (s *Service) Retrieve(ctx context.Context, userID uint64, query string, topK int) string {
	if !s.IsReady() {
		return ""
	}
	if topK <= 0 {
		topK = 5
	}

	embedding, errEmbed := s.embedder.Embed(ctx, query, InputTypeQuery)
	if errEmbed != nil {
		log.WithError(errEmbed).Warn("memory retrieval: embed query failed")
		return ""
	}

	matches, errQuery := s.index.Query(ctx, embedding, userID, topK)
	if errQuery != nil {
		log.WithError(errQuery).Warn("memory retrieval: index query failed")
		return ""
	}

	relevant := make([]Retrieved, 0, len(matches))
	for _, match := range matches {
		if match.Score < minRelevanceScore {
			continue
		}
		content, _ := match.Metadata["content"].(string)
		if content == "" {
			continue
		}
		recordType, _ := match.Metadata["type"].(string)
		if recordType == "" {
			recordType = TypeContext
		}
		relevant = append(relevant, Retrieved{
			ID:      match.ID,
			Score:   match.Score,
			Content: content,
			Type:    recordType,
		})
	}
	return formatForPrompt(relevant)
}

// Store embeds and persists one memory record, returning its ID.
func (s *Service) Store(ctx context.Context, userID uint64, content, recordType string, importance int) (string, error) {
	if !s.IsReady() {
		return "", nil
	}

	embedding, errEmbed := s.embedder.Embed(ctx, content, InputTypePassage)
	if errEmbed != nil {
		return "", fmt.Errorf("memory: embed content: %w", errEmbed)
	}

	id := uuid.NewString()
	vector := Vector{
		ID:     id,
		Values: embedding,
		Metadata: map[string]any{
			"userId":     strconv.FormatUint(userID, 10),
			"content":    content,
			"type":       recordType,
			"timestamp":  time.Now().UTC().UnixMilli(),
			"importance": importance,
		},
	}
	if errUpsert := s.index.Upsert(ctx, vector); errUpsert != nil {
		return "", fmt.Errorf("memory: upsert: %w", errUpsert)
	}
	return id, nil
}

// StoreExchange snapshots one user/assistant exchange as context memory.
// Errors are logged and swallowed.
func (s *Service) StoreExchange(ctx context.Context, userID uint64, userMessage, reply string) {
	if !s.IsReady() {
		return
	}
	if len(reply) > exchangeReplyLimit {
		reply = reply[:exchangeReplyLimit]
	}
	content := fmt.Sprintf("User said: %s\nAssistant replied: %s", userMessage, reply)
	if _, err := s.Store(ctx, userID, content, TypeContext, importanceContext); err != nil {
		log.WithError(err).Warn("memory: store exchange failed")
	}
}

// StorePreference persists a stated user preference.
func (s *Service) StorePreference(ctx context.Context, userID uint64, preference string) (string, error) {
	return s.Store(ctx, userID, preference, TypePreference, importancePreference)
}

// StoreFact persists a durable fact about the user.
func (s *Service) StoreFact(ctx context.Context, userID uint64, fact string) (string, error) {
	return s.Store(ctx, userID, fact, TypeFact, importanceFact)
}

// ClearUser removes every memory stored for a user.
func (s *Service) ClearUser(ctx context.Context, userID uint64) error {
	if !s.IsReady() {
		return nil
	}
	// The data-plane API has no delete-by-filter on serverless indexes, so
	// query with a zero vector and delete the matches.
	probe := make([]float32, 1024)
	matches, errQuery := s.index.Query(ctx, probe, userID, 100)
	if errQuery != nil {
		return fmt.Errorf("memory: clear user: %w", errQuery)
	}
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, match.ID)
	}
	if errDelete := s.index.Delete(ctx, ids); errDelete != nil {
		return fmt.Errorf("memory: clear user: %w", errDelete)
	}
	return nil
}

// formatForPrompt renders retrieved memories as a numbered context block.
func formatForPrompt(memories []Retrieved) string {
	if len(memories) == 0 {
		return ""
	}
	sort.Slice(memories, func(i, j int) bool { return memories[i].Score > memories[j].Score })

	out := "Relevant memories from previous conversations:"
	for i, m := range memories {
		out += fmt.Sprintf("\n%d. [%s] %s", i+1, typeLabel(m.Type), m.Content)
	}
	return out
}

// typeLabel maps record types to human-readable prompt labels.
func typeLabel(recordType string) string {
	switch recordType {
	case TypePreference:
		return "Preference"
	case TypeFact:
		return "Fact"
	case TypeContext:
		return "Context"
	case TypeSummary:
		return "Summary"
	default:
		return "Memory"
	}
}
