// Package auth implements account lifecycle: signup with email
// verification, login, password reset, and account deletion.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatbot-api/internal/apperr"
	"chatbot-api/internal/config"
	"chatbot-api/internal/models"
	"chatbot-api/internal/otp"
	"chatbot-api/internal/security"

	"gorm.io/gorm"
)

const minPasswordLength = 6

// Service orchestrates account operations.
type Service struct {
	db     *gorm.DB
	issuer *otp.Issuer
	jwtCfg config.JWTConfig
}

// NewService constructs a Service.
func NewService(db *gorm.DB, issuer *otp.Issuer, jwtCfg config.JWTConfig) *Service {
	return &Service{db: db, issuer: issuer, jwtCfg: jwtCfg}
}

// InitiateSignup registers a pending account and sends a verification code.
// Re-signup on a pending unverified email updates the registration in place;
// a verified email is rejected.
func (s *Service) InitiateSignup(ctx context.Context, email, name, password string) error {
	email = otp.NormalizeEmail(email)
	if errValidate := validateEmail(email); errValidate != nil {
		return errValidate
	}
	if len(password) < minPasswordLength {
		return apperr.New(apperr.KindValidation, "password must be at least 6 characters")
	}

	hashed, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("auth: hash password: %w", errHash)
	}

	var existing models.User
	errFind := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	switch {
	case errFind == nil:
		if existing.IsVerified {
			return apperr.New(apperr.KindValidation, "an account with this email already exists")
		}
		// Pending registration: refresh the name and password.
		updates := map[string]any{"password": hashed}
		if name = strings.TrimSpace(name); name != "" {
			updates["name"] = name
		}
		if errUpdate := s.db.WithContext(ctx).Model(&existing).Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("auth: update pending registration: %w", errUpdate)
		}
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		user := models.User{
			Name:     strings.TrimSpace(name),
			Email:    email,
			Password: hashed,
		}
		if errCreate := s.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
			if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.KindValidation, "an account with this email already exists")
			}
			return fmt.Errorf("auth: create user: %w", errCreate)
		}
	default:
		return fmt.Errorf("auth: load user: %w", errFind)
	}

	return s.issuer.SendSignupOTP(ctx, email, name)
}

// VerifySignup confirms the code and activates the account.
func (s *Service) VerifySignup(ctx context.Context, email, code string) (uint64, error) {
	return s.issuer.VerifySignupOTP(ctx, email, code)
}

// ResendSignupOTP reissues the verification code for a pending registration.
func (s *Service) ResendSignupOTP(ctx context.Context, email string) error {
	return s.issuer.SendSignupOTP(ctx, email, "")
}

// Login checks credentials and returns a signed token with the user record.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = otp.NormalizeEmail(email)

	var user models.User
	if errFind := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", nil, apperr.New(apperr.KindUnauthorized, "invalid email or password")
		}
		return "", nil, fmt.Errorf("auth: load user: %w", errFind)
	}
	if !security.VerifyPassword(user.Password, password) {
		return "", nil, apperr.New(apperr.KindUnauthorized, "invalid email or password")
	}
	if !user.IsVerified {
		return "", nil, apperr.New(apperr.KindUnauthorized, "email not verified")
	}

	token, errToken := security.IssueUserToken(s.jwtCfg, user.ID, user.Email)
	if errToken != nil {
		return "", nil, fmt.Errorf("auth: issue token: %w", errToken)
	}
	return token, &user, nil
}

// ForgotPassword starts a password reset. The outcome never reveals whether
// the email is registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	return s.issuer.SendPasswordResetOTP(ctx, email)
}

// ResetPassword verifies the reset code and replaces the password.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperr.New(apperr.KindValidation, "password must be at least 6 characters")
	}

	user, errVerify := s.issuer.VerifyPasswordResetOTP(ctx, email, code)
	if errVerify != nil {
		return errVerify
	}

	hashed, errHash := security.HashPassword(newPassword)
	if errHash != nil {
		return fmt.Errorf("auth: hash password: %w", errHash)
	}
	if errUpdate := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("password", hashed).Error; errUpdate != nil {
		return fmt.Errorf("auth: update password: %w", errUpdate)
	}
	return s.issuer.ConsumePasswordResetOTP(ctx, user.ID)
}

// Profile loads a user by ID.
func (s *Service) Profile(ctx context.Context, userID uint64) (*models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "user not found")
		}
		return nil, fmt.Errorf("auth: load user: %w", errFind)
	}
	return &user, nil
}

// UpdateProfile changes the display name and returns the updated record.
func (s *Service) UpdateProfile(ctx context.Context, userID uint64, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.KindValidation, "name is required")
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("name", name)
	if res.Error != nil {
		return nil, fmt.Errorf("auth: update profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.New(apperr.KindNotFound, "user not found")
	}
	return s.Profile(ctx, userID)
}

// DeleteAccount removes the user and everything they own.
func (s *Service) DeleteAccount(ctx context.Context, userID uint64) error {
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chatIDs []uint64
		if errFind := tx.Model(&models.Chat{}).Where("user_id = ?", userID).Pluck("id", &chatIDs).Error; errFind != nil {
			return errFind
		}
		if len(chatIDs) > 0 {
			if errMessages := tx.Where("chat_id IN ?", chatIDs).Delete(&models.Message{}).Error; errMessages != nil {
				return errMessages
			}
			if errChats := tx.Where("user_id = ?", userID).Delete(&models.Chat{}).Error; errChats != nil {
				return errChats
			}
		}
		res := tx.Delete(&models.User{}, userID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindNotFound, "user not found")
		}
		return nil
	})
	if errTx != nil {
		var appErr *apperr.Error
		if errors.As(errTx, &appErr) {
			return appErr
		}
		return fmt.Errorf("auth: delete account: %w", errTx)
	}
	return nil
}

// validateEmail applies a minimal shape check; real validation is the
// verification code itself.
func validateEmail(email string) error {
	if email == "" || !strings.Contains(email, "@") || strings.Contains(email, " ") {
		return apperr.New(apperr.KindValidation, "a valid email is required")
	}
	return nil
}
