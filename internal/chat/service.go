// Package chat composes credits, persistence, memory, and the model
// gateway into the send-message pipeline.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatbot-api/internal/apperr"
	"chatbot-api/internal/conversation"
	"chatbot-api/internal/credit"
	"chatbot-api/internal/models"
	"chatbot-api/internal/openrouter"

	log "github.com/sirupsen/logrus"
)

const (
	// systemPreamble anchors every generation request.
	systemPreamble = "You are a helpful AI assistant. Please provide thoughtful and accurate responses. Remember the context of our conversation and refer back to previous messages when relevant."

	// apologyMessage substitutes for the assistant reply when every model
	// attempt fails. The exchange still succeeds so the user keeps their turn.
	apologyMessage = "I'm sorry, I'm having trouble generating a response right now. Please try again in a moment."

	historyLimit       = 10
	memoryTopK         = 5
	memoryStoreTimeout = 15 * time.Second
)

// Gateway generates model completions.
type Gateway interface {
	IsConfigured() bool
	DefaultModel() string
	Generate(ctx context.Context, req openrouter.GenerateRequest) (openrouter.GenerateResult, error)
}

// MemoryStore augments prompts with long-term memory. Implementations
// degrade to no-ops when unconfigured.
type MemoryStore interface {
	IsReady() bool
	Retrieve(ctx context.Context, userID uint64, query string, topK int) string
	StoreExchange(ctx context.Context, userID uint64, userMessage, reply string)
}

// Service runs the send-message pipeline.
type Service struct {
	store   *conversation.Store
	ledger  *credit.Ledger
	gateway Gateway
	memory  MemoryStore
}

// NewService constructs a Service. memory may be nil when the subsystem is
// not configured.
func NewService(store *conversation.Store, ledger *credit.Ledger, gateway Gateway, memory MemoryStore) *Service {
	return &Service{store: store, ledger: ledger, gateway: gateway, memory: memory}
}

// SendMessageInput is one inbound chat turn. A nil ChatID starts a new
// thread; a nil OwnerID is an anonymous, unmetered request.
type SendMessageInput struct {
	ChatID  *uint64
	OwnerID *uint64
	Message string
	Model   string
}

// SendMessageResult carries the completed exchange. RemainingCredits is nil
// for anonymous requests.
type SendMessageResult struct {
	Chat             *models.Chat
	Assistant        *models.Message
	RemainingCredits *int64
}

// SendMessage runs one chat turn: credit pre-check for metered users,
// resolve or create the thread, persist the user message, generate a reply
// with a one-shot fallback to the default model, persist the reply, then
// deduct. A failed generation degrades to an apology instead of an error;
// terminal errors exist only before the user message is persisted.
func (s *Service) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, apperr.New(apperr.KindValidation, "message is required")
	}
	if !s.gateway.IsConfigured() {
		return nil, apperr.New(apperr.KindUpstreamConfig, "model service is not configured")
	}

	if input.OwnerID != nil {
		ok, errCheck := s.ledger.HasCredits(ctx, *input.OwnerID)
		if errCheck != nil {
			return nil, fmt.Errorf("chat: check credits: %w", errCheck)
		}
		if !ok {
			return nil, apperr.New(apperr.KindInsufficientCredits, "insufficient credits, please purchase more credits to continue chatting")
		}
	}

	model := strings.TrimSpace(input.Model)
	if model == "" {
		model = s.gateway.DefaultModel()
	}

	chat, history, errResolve := s.resolveChat(ctx, input.ChatID, input.OwnerID, message, model)
	if errResolve != nil {
		return nil, errResolve
	}

	if _, errAppend := s.store.AppendMessage(ctx, chat.ID, models.MessageRoleUser, message, model); errAppend != nil {
		return nil, fmt.Errorf("chat: persist user message: %w", errAppend)
	}

	prompt := s.buildPrompt(ctx, input.OwnerID, history, message)
	content, usedModel, generated := s.generate(ctx, model, prompt)

	assistant, errAppend := s.store.AppendMessage(ctx, chat.ID, models.MessageRoleAssistant, content, usedModel)
	if errAppend != nil {
		return nil, fmt.Errorf("chat: persist assistant message: %w", errAppend)
	}

	if errRetitle := s.store.MaybeRetitle(ctx, chat.ID, message); errRetitle != nil {
		log.WithError(errRetitle).WithField("chatId", chat.ID).Warn("chat: retitle failed")
	}

	var remaining *int64
	if input.OwnerID != nil {
		balance, deducted, errDeduct := s.ledger.Deduct(ctx, *input.OwnerID)
		if errDeduct != nil || !deducted {
			// The answer is already delivered; never claw it back.
			log.WithError(errDeduct).WithField("userId", *input.OwnerID).Error("chat: credit deduction failed after generation")
		}
		remaining = &balance
	}

	if generated && input.OwnerID != nil && s.memory != nil && s.memory.IsReady() {
		s.storeExchangeAsync(*input.OwnerID, message, content)
	}

	updated, errReload := s.store.GetChat(ctx, chat.ID, input.OwnerID)
	if errReload != nil {
		return nil, fmt.Errorf("chat: reload chat: %w", errReload)
	}

	return &SendMessageResult{
		Chat:             updated,
		Assistant:        assistant,
		RemainingCredits: remaining,
	}, nil
}

// resolveChat loads an existing thread with its recent history or creates a
// new one titled from the first message.
func (s *Service) resolveChat(ctx context.Context, chatID, owner *uint64, message, model string) (*models.Chat, []models.Message, error) {
	if chatID == nil {
		chat, errCreate := s.store.CreateChat(ctx, owner, message, model)
		if errCreate != nil {
			return nil, nil, fmt.Errorf("chat: create chat: %w", errCreate)
		}
		return chat, nil, nil
	}

	chat, errFind := s.store.GetChat(ctx, *chatID, owner)
	if errFind != nil {
		var appErr *apperr.Error
		if errors.As(errFind, &appErr) {
			return nil, nil, appErr
		}
		return nil, nil, fmt.Errorf("chat: load chat: %w", errFind)
	}
	history, errHistory := s.store.History(ctx, chat.ID, historyLimit)
	if errHistory != nil {
		return nil, nil, fmt.Errorf("chat: load history: %w", errHistory)
	}
	return chat, history, nil
}

// buildPrompt assembles the generation request: system preamble plus
// optional memory context, prior messages, and the new user turn.
func (s *Service) buildPrompt(ctx context.Context, owner *uint64, history []models.Message, message string) []openrouter.ChatMessage {
	system := systemPreamble
	if owner != nil && s.memory != nil && s.memory.IsReady() {
		if memoryContext := s.memory.Retrieve(ctx, *owner, message, memoryTopK); memoryContext != "" {
			system += "\n\n" + memoryContext
		}
	}

	prompt := make([]openrouter.ChatMessage, 0, len(history)+2)
	prompt = append(prompt, openrouter.ChatMessage{Role: models.MessageRoleSystem, Content: system})
	for _, msg := range history {
		prompt = append(prompt, openrouter.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	prompt = append(prompt, openrouter.ChatMessage{Role: models.MessageRoleUser, Content: message})
	return prompt
}

// generate calls the gateway with the requested model, falling back once to
// the default model, then to the apology text. It returns the reply, the
// model that produced it, and whether a real generation succeeded.
func (s *Service) generate(ctx context.Context, model string, prompt []openrouter.ChatMessage) (string, string, bool) {
	result, errGenerate := s.gateway.Generate(ctx, openrouter.GenerateRequest{Model: model, Messages: prompt})
	if errGenerate == nil {
		return result.Content, model, true
	}
	log.WithError(errGenerate).WithField("model", model).Warn("chat: generation failed")

	if fallback := s.gateway.DefaultModel(); fallback != "" && fallback != model {
		result, errGenerate = s.gateway.Generate(ctx, openrouter.GenerateRequest{Model: fallback, Messages: prompt})
		if errGenerate == nil {
			return result.Content, fallback, true
		}
		log.WithError(errGenerate).WithField("model", fallback).Warn("chat: fallback generation failed")
	}

	return apologyMessage, model, false
}

// storeExchangeAsync records the exchange in long-term memory without
// blocking the response. Loss is tolerated.
func (s *Service) storeExchangeAsync(userID uint64, message, reply string) {
	memory := s.memory
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), memoryStoreTimeout)
		defer cancel()
		memory.StoreExchange(ctx, userID, message, reply)
	}()
}
