package models

import "time"

// Chat represents a conversation thread owned by a user or an anonymous visitor.
type Chat struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID *uint64 `gorm:"index"`             // Owning user ID, nil for anonymous threads.
	User   *User   `gorm:"foreignKey:UserID"` // Owning user record.

	Title string `gorm:"type:text;not null"` // Sidebar title derived from the first message.

	Model string `gorm:"type:text"` // Model identifier used for the thread.

	Messages []Message `gorm:"foreignKey:ChatID"` // Related messages.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last activity timestamp.
}
