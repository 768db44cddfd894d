package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"chatbot-api/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates a token that failed parsing or validation.
var ErrInvalidToken = errors.New("invalid token")

// userClaims carries the JWT payload for a signed-in user.
type userClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IssueUserToken signs a JWT for the given user ID and email.
func IssueUserToken(cfg config.JWTConfig, userID uint64, email string) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now().UTC()
	claims := userClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseUserToken validates a JWT and returns the user ID and email.
func ParseUserToken(cfg config.JWTConfig, raw string) (uint64, string, error) {
	if cfg.Secret == "" {
		return 0, "", errors.New("jwt secret is not configured")
	}
	claims := &userClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidToken
	}
	userID, errParse := strconv.ParseUint(claims.Subject, 10, 64)
	if errParse != nil || userID == 0 {
		return 0, "", ErrInvalidToken
	}
	return userID, claims.Email, nil
}
