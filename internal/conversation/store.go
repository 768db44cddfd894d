// Package conversation persists chat threads and their message history.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"chatbot-api/internal/apperr"
	"chatbot-api/internal/models"

	"gorm.io/gorm"
)

// titleMaxRunes caps sidebar titles derived from the first message.
const titleMaxRunes = 30

// retitleMessageCeiling is the message count at or below which a thread
// title still tracks the latest user message.
const retitleMessageCeiling = 2

// Store persists chats and messages.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DeriveTitle builds a sidebar title from message content, truncating long
// content at a rune boundary with an ellipsis.
func DeriveTitle(content string) string {
	if utf8.RuneCountInString(content) <= titleMaxRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:titleMaxRunes]) + "…"
}

// SidebarEntry summarizes a chat thread for listing.
type SidebarEntry struct {
	ID           uint64    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	MessageCount int64     `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UsageSummary aggregates a user's stored conversation volume.
type UsageSummary struct {
	Chats    int64 `json:"chats"`
	Messages int64 `json:"messages"`
}

// CreateChat starts a new thread titled after the first message. A nil owner
// creates an anonymous thread.
func (s *Store) CreateChat(ctx context.Context, owner *uint64, firstMessage, model string) (*models.Chat, error) {
	if firstMessage == "" {
		return nil, apperr.New(apperr.KindValidation, "message is required")
	}
	now := time.Now().UTC()
	chat := models.Chat{
		UserID:    owner,
		Title:     DeriveTitle(firstMessage),
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := s.db.WithContext(ctx).Create(&chat).Error; errCreate != nil {
		return nil, fmt.Errorf("conversation: create chat: %w", errCreate)
	}
	return &chat, nil
}

// GetChat loads a thread with its full message history. Owned threads are
// only visible to their owner; anonymous threads require no credential.
func (s *Store) GetChat(ctx context.Context, chatID uint64, requester *uint64) (*models.Chat, error) {
	var chat models.Chat
	if errFind := s.db.WithContext(ctx).
		Preload("Messages", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", chatID).
		First(&chat).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "chat not found")
		}
		return nil, fmt.Errorf("conversation: load chat: %w", errFind)
	}
	if chat.UserID != nil && (requester == nil || *requester != *chat.UserID) {
		return nil, apperr.New(apperr.KindNotFound, "chat not found")
	}
	return &chat, nil
}

// AppendMessage stores a message and bumps the thread's activity timestamp.
func (s *Store) AppendMessage(ctx context.Context, chatID uint64, role, content, model string) (*models.Message, error) {
	if content == "" {
		return nil, apperr.New(apperr.KindValidation, "message content is required")
	}
	now := time.Now().UTC()
	message := models.Message{
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		Model:     model,
		CreatedAt: now,
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&message).Error; errCreate != nil {
			return errCreate
		}
		res := tx.Model(&models.Chat{}).Where("id = ?", chatID).Update("updated_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindNotFound, "chat not found")
		}
		return nil
	})
	if errTx != nil {
		var appErr *apperr.Error
		if errors.As(errTx, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("conversation: append message: %w", errTx)
	}
	return &message, nil
}

// History returns the most recent messages of a thread in chronological order.
func (s *Store) History(ctx context.Context, chatID uint64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	var rows []models.Message
	if errFind := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("conversation: load history: %w", errFind)
	}
	// Reverse into chronological order.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// ListSidebar returns the user's threads ordered by recent activity. A nil
// owner has no sidebar: anonymous threads are never listed.
func (s *Store) ListSidebar(ctx context.Context, owner *uint64) ([]SidebarEntry, error) {
	if owner == nil {
		return []SidebarEntry{}, nil
	}
	var chats []models.Chat
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", *owner).
		Order("updated_at DESC").
		Find(&chats).Error; errFind != nil {
		return nil, fmt.Errorf("conversation: list chats: %w", errFind)
	}

	entries := make([]SidebarEntry, 0, len(chats))
	for _, chat := range chats {
		var count int64
		if errCount := s.db.WithContext(ctx).
			Model(&models.Message{}).
			Where("chat_id = ?", chat.ID).
			Count(&count).Error; errCount != nil {
			return nil, fmt.Errorf("conversation: count messages: %w", errCount)
		}
		entries = append(entries, SidebarEntry{
			ID:           chat.ID,
			Title:        chat.Title,
			Model:        chat.Model,
			MessageCount: count,
			UpdatedAt:    chat.UpdatedAt,
		})
	}
	return entries, nil
}

// Rename sets an explicit thread title chosen by the owner.
func (s *Store) Rename(ctx context.Context, chatID uint64, owner uint64, title string) error {
	if title == "" {
		return apperr.New(apperr.KindValidation, "title is required")
	}
	res := s.db.WithContext(ctx).
		Model(&models.Chat{}).
		Where("id = ? AND user_id = ?", chatID, owner).
		Updates(map[string]any{"title": DeriveTitle(title), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("conversation: rename chat: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.KindNotFound, "chat not found")
	}
	return nil
}

// MaybeRetitle refreshes the derived title while the thread is still young.
// Once the thread holds more than two messages the title is frozen.
func (s *Store) MaybeRetitle(ctx context.Context, chatID uint64, content string) error {
	var count int64
	if errCount := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("chat_id = ?", chatID).
		Count(&count).Error; errCount != nil {
		return fmt.Errorf("conversation: count messages: %w", errCount)
	}
	if count > retitleMessageCeiling {
		return nil
	}
	if errUpdate := s.db.WithContext(ctx).
		Model(&models.Chat{}).
		Where("id = ?", chatID).
		Update("title", DeriveTitle(content)).Error; errUpdate != nil {
		return fmt.Errorf("conversation: retitle chat: %w", errUpdate)
	}
	return nil
}

// DeleteChat removes an owned thread and its messages.
func (s *Store) DeleteChat(ctx context.Context, chatID uint64, owner uint64) error {
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", chatID, owner).Delete(&models.Chat{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindNotFound, "chat not found")
		}
		return tx.Where("chat_id = ?", chatID).Delete(&models.Message{}).Error
	})
	if errTx != nil {
		var appErr *apperr.Error
		if errors.As(errTx, &appErr) {
			return appErr
		}
		return fmt.Errorf("conversation: delete chat: %w", errTx)
	}
	return nil
}

// DeleteAll removes every thread owned by the user.
func (s *Store) DeleteAll(ctx context.Context, owner uint64) (int64, error) {
	var deleted int64
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint64
		if errFind := tx.Model(&models.Chat{}).
			Where("user_id = ?", owner).
			Pluck("id", &ids).Error; errFind != nil {
			return errFind
		}
		if len(ids) == 0 {
			return nil
		}
		if errMessages := tx.Where("chat_id IN ?", ids).Delete(&models.Message{}).Error; errMessages != nil {
			return errMessages
		}
		res := tx.Where("user_id = ?", owner).Delete(&models.Chat{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if errTx != nil {
		return 0, fmt.Errorf("conversation: delete all chats: %w", errTx)
	}
	return deleted, nil
}

// Usage reports the stored conversation volume for a user.
func (s *Store) Usage(ctx context.Context, owner uint64) (UsageSummary, error) {
	var summary UsageSummary
	if errChats := s.db.WithContext(ctx).
		Model(&models.Chat{}).
		Where("user_id = ?", owner).
		Count(&summary.Chats).Error; errChats != nil {
		return UsageSummary{}, fmt.Errorf("conversation: count chats: %w", errChats)
	}
	if errMessages := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Joins("JOIN chats ON chats.id = messages.chat_id").
		Where("chats.user_id = ?", owner).
		Count(&summary.Messages).Error; errMessages != nil {
		return UsageSummary{}, fmt.Errorf("conversation: count messages: %w", errMessages)
	}
	return summary, nil
}
