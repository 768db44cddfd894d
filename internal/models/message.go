package models

import "time"

// Message role constants define who authored a chat message.
const (
	// MessageRoleSystem marks a system preamble message.
	MessageRoleSystem = "system"
	// MessageRoleUser marks a user-authored message.
	MessageRoleUser = "user"
	// MessageRoleAssistant marks a model-generated message.
	MessageRoleAssistant = "assistant"
)

// Message records a single turn within a chat thread.
type Message struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ChatID uint64 `gorm:"not null;index"`    // Related chat ID.
	Chat   Chat   `gorm:"foreignKey:ChatID"` // Related chat record.

	Role    string `gorm:"type:text;not null"` // Author role: system, user, or assistant.
	Content string `gorm:"type:text;not null"` // Message text.

	Model string `gorm:"type:text"` // Model that produced an assistant message.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
