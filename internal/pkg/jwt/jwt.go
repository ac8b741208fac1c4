package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const defaultSecret = "healthmate-secret-change-me"

var secret = []byte(defaultSecret)

// SetSecret configures the JWT signing secret (call on startup).
func SetSecret(s string) {
	if s != "" {
		secret = []byte(s)
	}
}

// Purpose tags a token so a reset token can never be replayed as a login.
type Purpose string

const (
	PurposeAuth  Purpose = "auth"
	PurposeReset Purpose = "reset"
)

// Claims is the JWT payload.
type Claims struct {
	UserID  string  `json:"uid"`
	Purpose Purpose `json:"purpose,omitempty"`
	jwtlib.RegisteredClaims
}

// SignFor creates a signed token carrying an explicit purpose.
func SignFor(userID string, purpose Purpose, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:  userID,
		Purpose: purpose,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Parse validates a token string and returns the claims.
func Parse(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ParseFor validates a token and additionally checks its purpose.
func ParseFor(tokenStr string, purpose Purpose) (*Claims, error) {
	claims, err := Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	got := claims.Purpose
	if got == "" {
		// tokens issued before purposes existed are login tokens
		got = PurposeAuth
	}
	if got != purpose {
		return nil, fmt.Errorf("token purpose mismatch")
	}
	return claims, nil
}
