// Package credit owns the user credit balance: metered deduction, grants,
// and checkout reconciliation.
package credit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"chatbot-api/internal/apperr"
	"chatbot-api/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// defaultReconcileCredits is granted when session metadata omits a credit count.
const defaultReconcileCredits = 20

// Session is a retrieved checkout session in provider-neutral form.
type Session struct {
	ID            string
	PaymentStatus string
	AmountCents   int64
	Metadata      map[string]string
}

// SessionRetriever fetches a checkout session by ID from the payment provider.
type SessionRetriever interface {
	RetrieveSession(ctx context.Context, sessionID string) (Session, error)
}

// Ledger manages user credit balances.
type Ledger struct {
	db       *gorm.DB
	sessions SessionRetriever
}

// NewLedger constructs a Ledger.
func NewLedger(db *gorm.DB, sessions SessionRetriever) *Ledger {
	return &Ledger{db: db, sessions: sessions}
}

// Balance returns the current credit balance for a user.
func (l *Ledger) Balance(ctx context.Context, userID uint64) (int64, error) {
	var user models.User
	if errFind := l.db.WithContext(ctx).Select("credits").Where("id = ?", userID).Take(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, apperr.New(apperr.KindNotFound, "user not found")
		}
		return 0, fmt.Errorf("credit: load balance: %w", errFind)
	}
	return user.Credits, nil
}

// HasCredits reports whether the user exists and holds a positive balance.
func (l *Ledger) HasCredits(ctx context.Context, userID uint64) (bool, error) {
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return false, nil
		}
		return false, err
	}
	return balance > 0, nil
}

// Deduct consumes one credit. The decrement is conditional on a positive
// balance so concurrent requests can never push the balance below zero.
// It returns the remaining balance and whether a credit was consumed.
func (l *Ledger) Deduct(ctx context.Context, userID uint64) (int64, bool, error) {
	res := l.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND credits > 0", userID).
		Update("credits", gorm.Expr("credits - ?", 1))
	if res.Error != nil {
		return 0, false, fmt.Errorf("credit: deduct: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the user is missing or the balance was already zero.
		balance, errBalance := l.Balance(ctx, userID)
		if errBalance != nil {
			return 0, false, errBalance
		}
		return balance, false, nil
	}

	balance, errBalance := l.Balance(ctx, userID)
	if errBalance != nil {
		return 0, true, errBalance
	}
	return balance, true, nil
}

// Add grants credits to a user and returns the new balance.
func (l *Ledger) Add(ctx context.Context, userID uint64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperr.New(apperr.KindValidation, "credit amount must be positive")
	}
	res := l.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return 0, fmt.Errorf("credit: add: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, apperr.New(apperr.KindNotFound, "user not found")
	}
	return l.Balance(ctx, userID)
}

// Reconcile verifies a completed checkout session and grants its credits
// exactly once. A session that was already reconciled returns the current
// balance without granting again.
func (l *Ledger) Reconcile(ctx context.Context, sessionID string) (int64, error) {
	if sessionID == "" {
		return 0, apperr.New(apperr.KindValidation, "session id is required")
	}
	if l.sessions == nil {
		return 0, apperr.New(apperr.KindUpstreamConfig, "payment provider is not configured")
	}

	session, errRetrieve := l.sessions.RetrieveSession(ctx, sessionID)
	if errRetrieve != nil {
		return 0, errRetrieve
	}
	if session.PaymentStatus != "paid" {
		return 0, apperr.New(apperr.KindValidation, "payment not completed")
	}

	userIDRaw := session.Metadata["userId"]
	userID, errParse := strconv.ParseUint(userIDRaw, 10, 64)
	if errParse != nil || userID == 0 {
		return 0, apperr.New(apperr.KindValidation, "user id not found in session")
	}

	credits := int64(defaultReconcileCredits)
	if creditsRaw := session.Metadata["credits"]; creditsRaw != "" {
		if parsed, errCredits := strconv.ParseInt(creditsRaw, 10, 64); errCredits == nil && parsed > 0 {
			credits = parsed
		}
	}

	metadata, _ := json.Marshal(session.Metadata)

	granted := true
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment := models.Payment{
			UserID:      userID,
			SessionID:   session.ID,
			AmountCents: session.AmountCents,
			Credits:     credits,
			Metadata:    datatypes.JSON(metadata),
			CreatedAt:   time.Now().UTC(),
		}
		if errCreate := tx.Create(&payment).Error; errCreate != nil {
			if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
				granted = false
				return nil
			}
			return errCreate
		}

		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("credits", gorm.Expr("credits + ?", credits))
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
			return 0, appErr
		}
		return 0, fmt.Errorf("credit: reconcile: %w", errTx)
	}
	if !granted {
		log.WithField("session_id", session.ID).Info("checkout session already reconciled")
	}
	return l.Balance(ctx, userID)
}
