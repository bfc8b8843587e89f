// Package auth issues and verifies the session tokens that carry the
// authenticated user between requests.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"payload/internal/domain"
)

// ErrInvalidToken is returned for malformed, expired or tampered tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the session user. The subject is the username.
type Claims struct {
	jwt.RegisteredClaims
	Role domain.Role `json:"role"`
}

func IssueToken(user domain.User, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: user.Role,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the token and returns the session user.
func ParseToken(tokenString string, secret []byte) (domain.User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return domain.User{}, ErrInvalidToken
	}

	switch claims.Role {
	case domain.RoleMember, domain.RoleAdmin:
	default:
		return domain.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	// the token does not carry the account's creation time
	return domain.User{Username: claims.Subject, Role: claims.Role}, nil
}
