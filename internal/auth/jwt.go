// Package auth issues and validates wallet session tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("invalid token")

// TokenManager signs HS256 tokens whose subject is the acting wallet id.
type TokenManager struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
}

// NewTokenManager creates a token manager. secret must be at least 32
// characters; config validation enforces that.
func NewTokenManager(secret, issuer string, accessTTL time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), issuer: issuer, accessTTL: accessTTL}
}

type walletClaims struct {
	jwt.RegisteredClaims
	WalletName string `json:"wallet_name,omitempty"`
}

// Issue signs a token acting as walletID.
func (m *TokenManager) Issue(walletID, walletName string) (string, error) {
	if _, err := uuid.Parse(walletID); err != nil {
		return "", fmt.Errorf("wallet id: %w", err)
	}
	now := time.Now()
	claims := walletClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   walletID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
		WalletName: walletName,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenString and returns the wallet id it acts as.
func (m *TokenManager) Validate(tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	token, err := jwt.ParseWithClaims(tokenString, &walletClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*walletClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: claims", ErrInvalidToken)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: subject is not a wallet id", ErrInvalidToken)
	}
	return claims.Subject, nil
}
