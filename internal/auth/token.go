package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "viormart"
	tokenAudience = "viormart-cart"
)

// ShopperClaims are the claims carried by cart API bearer tokens.
type ShopperClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 bearer tokens for cart API clients.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenIssuer accepts the same secret formats as session keys: 32+
// characters or base64 of 32+ bytes. An empty secret generates a random key,
// which invalidates tokens on restart.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	master, err := decodeSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("token secret: %w", err)
	}
	return &TokenIssuer{key: deriveKey(master, "bearer"), ttl: ttl, now: time.Now}, nil
}

func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue returns a signed token for userID.
func (i *TokenIssuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("userId is required")
	}
	now := i.now().UTC()
	claims := ShopperClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a token and returns its subject.
func (i *TokenIssuer) Verify(raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &ShopperClaims{}, func(token *jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*ShopperClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}
