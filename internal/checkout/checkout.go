// Package checkout bridges credit purchases to Stripe Checkout.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chatbot-api/internal/apperr"
	"chatbot-api/internal/config"
	"chatbot-api/internal/credit"
	"chatbot-api/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"gorm.io/gorm"
)

// Credit pack sold through checkout.
const (
	packCredits     = 20
	packAmountCents = 300 // $3.00 for 20 credits.
	packName        = "ChatBot Credits"
	packDescription = "20 Credits for ChatBot prompts"
)

// Bridge creates checkout sessions and retrieves them for reconciliation.
type Bridge struct {
	db          *gorm.DB
	api         *client.API
	frontendURL string
}

// New validates the Stripe key and constructs a Bridge. A malformed key is a
// deployment error and fails startup rather than surfacing per-request.
func New(db *gorm.DB, cfg config.StripeConfig) (*Bridge, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, errors.New("checkout: stripe secret key is not configured")
	}
	if !strings.HasPrefix(key, "sk_test_") && !strings.HasPrefix(key, "sk_live_") {
		return nil, errors.New("checkout: invalid stripe secret key format")
	}

	api := &client.API{}
	api.Init(key, nil)

	return &Bridge{
		db:          db,
		api:         api,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
	}, nil
}

// CreateSession creates a checkout session for the standard credit pack and
// returns the hosted payment URL.
func (b *Bridge) CreateSession(ctx context.Context, userID uint64, email string) (string, error) {
	var user models.User
	if errFind := b.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", apperr.New(apperr.KindNotFound, "user not found")
		}
		return "", fmt.Errorf("checkout: load user: %w", errFind)
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		created, errCustomer := b.createCustomer(ctx, userID, email)
		if errCustomer != nil {
			return "", errCustomer
		}
		customerID = created
		if errSave := b.db.WithContext(ctx).
			Model(&models.User{}).
			Where("id = ?", userID).
			Update("stripe_customer_id", customerID).Error; errSave != nil {
			return "", fmt.Errorf("checkout: save customer id: %w", errSave)
		}
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(packName),
						Description: stripe.String(packDescription),
					},
					UnitAmount: stripe.Int64(packAmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(b.frontendURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(b.frontendURL + "/payment/cancel"),
	}
	params.Context = ctx
	params.AddMetadata("userId", strconv.FormatUint(userID, 10))
	params.AddMetadata("credits", strconv.Itoa(packCredits))

	session, errCreate := b.api.CheckoutSessions.New(params)
	if errCreate != nil {
		log.WithError(errCreate).WithField("user_id", userID).Error("create checkout session failed")
		return "", mapStripeError(errCreate, "failed to start checkout")
	}
	return session.URL, nil
}

// RetrieveSession fetches a checkout session for reconciliation.
func (b *Bridge) RetrieveSession(ctx context.Context, sessionID string) (credit.Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, errGet := b.api.CheckoutSessions.Get(sessionID, params)
	if errGet != nil {
		log.WithError(errGet).WithField("session_id", sessionID).Error("retrieve checkout session failed")
		return credit.Session{}, mapStripeError(errGet, "failed to verify payment")
	}
	return credit.Session{
		ID:            session.ID,
		PaymentStatus: string(session.PaymentStatus),
		AmountCents:   session.AmountTotal,
		Metadata:      session.Metadata,
	}, nil
}

// createCustomer registers a Stripe customer for a first-time buyer.
func (b *Bridge) createCustomer(ctx context.Context, userID uint64, email string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	params.AddMetadata("userId", strconv.FormatUint(userID, 10))

	customer, errCreate := b.api.Customers.New(params)
	if errCreate != nil {
		log.WithError(errCreate).WithField("user_id", userID).Error("create stripe customer failed")
		return "", mapStripeError(errCreate, "failed to create payment customer")
	}
	return customer.ID, nil
}

// mapStripeError converts provider errors into user-safe classified errors.
func mapStripeError(err error, fallback string) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return apperr.Wrap(apperr.KindUpstream, fallback, err)
	}
	switch stripeErr.Type {
	case stripe.ErrorTypeCard:
		return apperr.Wrap(apperr.KindValidation, "payment processing error", err)
	case stripe.ErrorTypeInvalidRequest:
		return apperr.Wrap(apperr.KindValidation, "invalid payment request", err)
	case stripe.ErrorType("authentication_error"):
		return apperr.Wrap(apperr.KindUpstreamConfig, "payment authentication failed", err)
	case stripe.ErrorTypeAPI:
		return apperr.Wrap(apperr.KindUpstream, "payment service error", err)
	default:
		return apperr.Wrap(apperr.KindUpstream, fallback, err)
	}
}
