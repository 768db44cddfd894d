// Package otp issues and verifies short-lived email verification codes.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"chatbot-api/internal/apperr"
	"chatbot-api/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// codeTTL is how long an issued code stays valid.
const codeTTL = 10 * time.Minute

// Sender delivers verification codes to users.
type Sender interface {
	SendOTP(to, code string) error
	SendPasswordResetOTP(to, code string) error
}

// Generate returns a random six-digit code.
func Generate() (string, error) {
	// Uniform in [100000, 999999].
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("otp: generate: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Issuer manages verification codes stored on user rows. Reissuing a code
// supersedes the previous one; verification consumes the code.
type Issuer struct {
	db     *gorm.DB
	sender Sender
	nowFn  func() time.Time
}

// NewIssuer constructs an Issuer.
func NewIssuer(db *gorm.DB, sender Sender) *Issuer {
	return &Issuer{db: db, sender: sender, nowFn: time.Now}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SendSignupOTP issues a verification code for a pending registration. A
// non-empty name also updates the pending display name.
func (i *Issuer) SendSignupOTP(ctx context.Context, email, name string) error {
	email = NormalizeEmail(email)

	var user models.User
	if errFind := i.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindValidation, "no pending registration found for this email")
		}
		return fmt.Errorf("otp: load user: %w", errFind)
	}
	if user.IsVerified {
		return apperr.New(apperr.KindValidation, "account already verified")
	}

	code, errGenerate := Generate()
	if errGenerate != nil {
		return errGenerate
	}
	expiry := i.nowFn().UTC().Add(codeTTL)

	updates := map[string]any{"otp": code, "otp_expiry": expiry}
	if name = strings.TrimSpace(name); name != "" {
		updates["name"] = name
	}
	if errUpdate := i.db.WithContext(ctx).Model(&user).Updates(updates).Error; errUpdate != nil {
		return fmt.Errorf("otp: store code: %w", errUpdate)
	}

	i.deliver(email, code, false)
	return nil
}

// VerifySignupOTP checks a signup code, marks the account verified, and
// consumes the code. It returns the verified user's ID.
func (i *Issuer) VerifySignupOTP(ctx context.Context, email, code string) (uint64, error) {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)

	var user models.User
	if errFind := i.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, apperr.New(apperr.KindValidation, "no pending registration found for this email")
		}
		return 0, fmt.Errorf("otp: load user: %w", errFind)
	}
	if user.OTP == "" {
		return 0, apperr.New(apperr.KindValidation, "no verification code found, please request a new one")
	}
	if user.OTPExpiry == nil || user.OTPExpiry.Before(i.nowFn().UTC()) {
		return 0, apperr.New(apperr.KindValidation, "verification code has expired, please request a new one")
	}
	if user.OTP != code {
		return 0, apperr.New(apperr.KindValidation, "invalid verification code")
	}

	if errUpdate := i.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"is_verified": true,
		"otp":         "",
		"otp_expiry":  nil,
	}).Error; errUpdate != nil {
		return 0, fmt.Errorf("otp: consume code: %w", errUpdate)
	}
	return user.ID, nil
}

// SendPasswordResetOTP issues a reset code. The outcome never reveals
// whether the email is registered.
func (i *Issuer) SendPasswordResetOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	var user models.User
	if errFind := i.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("otp: load user: %w", errFind)
	}

	code, errGenerate := Generate()
	if errGenerate != nil {
		return errGenerate
	}
	expiry := i.nowFn().UTC().Add(codeTTL)

	if errUpdate := i.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_reset_otp":        code,
		"password_reset_otp_expiry": expiry,
	}).Error; errUpdate != nil {
		return fmt.Errorf("otp: store reset code: %w", errUpdate)
	}

	i.deliver(email, code, true)
	return nil
}

// VerifyPasswordResetOTP checks a reset code without consuming it and
// returns the matching user.
func (i *Issuer) VerifyPasswordResetOTP(ctx context.Context, email, code string) (*models.User, error) {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)

	var user models.User
	if errFind := i.db.WithContext(ctx).
		Where("email = ? AND password_reset_otp <> '' AND password_reset_otp_expiry > ?", email, i.nowFn().UTC()).
		First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindValidation, "invalid or expired code, please request a new password reset")
		}
		return nil, fmt.Errorf("otp: load user: %w", errFind)
	}
	if user.PasswordResetOTP != code {
		return nil, apperr.New(apperr.KindValidation, "invalid code, please check and try again")
	}
	return &user, nil
}

// ConsumePasswordResetOTP clears the reset code after a successful reset.
func (i *Issuer) ConsumePasswordResetOTP(ctx context.Context, userID uint64) error {
	if errUpdate := i.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"password_reset_otp":        "",
			"password_reset_otp_expiry": nil,
		}).Error; errUpdate != nil {
		return fmt.Errorf("otp: consume reset code: %w", errUpdate)
	}
	return nil
}

// deliver sends the code by email. Delivery failure is logged, not fatal:
// the code is already stored and support can resend it.
func (i *Issuer) deliver(email, code string, reset bool) {
	if i.sender == nil {
		log.WithField("email", email).Warn("otp: no mail sender configured, code not delivered")
		return
	}
	var errSend error
	if reset {
		errSend = i.sender.SendPasswordResetOTP(email, code)
	} else {
		errSend = i.sender.SendOTP(email, code)
	}
	if errSend != nil {
		log.WithError(errSend).WithField("email", email).Error("otp: send email failed")
	}
}
