package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that are malformed, tampered with,
// or signed with a different secret.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of an Eludris session token: who the bearer is and
// which session the token belongs to. Token validity is additionally gated
// on the (user, session) pair still existing in the session store.
type Claims struct {
	UserID    uint64
	SessionID uint64
}

type jwtClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies session tokens with HMAC-SHA256 over the
// instance secret.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a token service from the instance secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// Sign produces a compact signed token for the claims. Tokens do not expire
// on their own; they die with their session.
func (s *TokenService) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		SessionID: strconv.FormatUint(claims.SessionID, 10),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: strconv.FormatUint(claims.UserID, 10),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (s *TokenService) Verify(tokenString string) (Claims, error) {
	var parsed jwtClaims
	token, err := jwt.ParseWithClaims(tokenString, &parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(parsed.Subject, 10, 64)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	sessionID, err := strconv.ParseUint(parsed.SessionID, 10, 64)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: userID, SessionID: sessionID}, nil
}
