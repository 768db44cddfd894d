package models

import "time"

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text"`                      // Display name.
	Email    string `gorm:"type:text;not null;uniqueIndex"` // Normalized email address.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	IsVerified bool `gorm:"not null;default:false"` // Whether the email was confirmed via OTP.

	Credits int64 `gorm:"not null;default:0"` // Remaining prompt credits.

	StripeCustomerID string `gorm:"type:text"` // Linked Stripe customer ID, empty until first checkout.

	OTP       string     `gorm:"type:text"` // Pending signup verification code.
	OTPExpiry *time.Time ``                 // Signup code expiry.

	PasswordResetOTP       string     `gorm:"type:text"` // Pending password reset code.
	PasswordResetOTPExpiry *time.Time ``                 // Password reset code expiry.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
