package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned for malformed, unsigned or tampered tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token's exp claim has passed.
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the subset of a verified token the API relies on.
type Claims struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// JWTVerifier validates HS256 tokens whose subject is the user's UUID.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewJWTVerifier returns a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret cannot be empty")
	}
	return &JWTVerifier{secret: []byte(secret), now: time.Now}, nil
}

// Verify parses and validates token.
func (v *JWTVerifier) Verify(token string) (*Claims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	return &Claims{UserID: userID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Sign issues a token for userID valid for ttl. It exists for operators and
// tests; the API never issues tokens itself.
func (v *JWTVerifier) Sign(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := v.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
