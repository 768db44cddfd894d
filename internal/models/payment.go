package models

import (
	"time"

	"gorm.io/datatypes"
)

// Payment records a reconciled checkout session. The unique session ID makes
// credit grants idempotent: a second reconcile of the same session fails the
// insert and grants nothing.
type Payment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Credited user ID.
	User   User   `gorm:"foreignKey:UserID"` // Credited user record.

	SessionID string `gorm:"type:text;not null;uniqueIndex"` // Checkout session ID.

	AmountCents int64 `gorm:"not null;default:0"` // Charged amount in cents.
	Credits     int64 `gorm:"not null;default:0"` // Credits granted by this payment.

	Metadata datatypes.JSON `gorm:"type:json"` // Raw session metadata snapshot.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Reconcile timestamp.
}
