// Package auth mints and verifies the bearer tokens that identify the caller.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/wxcounter/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// GenerateToken signs an HS256 token whose subject is the decimal user id.
func GenerateToken(userID int64, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrTokenCreation, err)
	}

	return tokenString, nil
}

// GetUserIDFromToken verifies signature and expiry and returns the subject
// as a user id. Every failure wraps common.ErrInvalidToken.
func GetUserIDFromToken(tokenString string, secretKey []byte) (int64, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return 0, common.ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", common.ErrInvalidToken, claims.Subject)
	}

	return userID, nil
}

// ParseBearer extracts the token from an Authorization header value.
// A header without the Bearer scheme is taken as the raw token.
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", common.ErrMissingCredentials
	}

	scheme, rest, ok := strings.Cut(header, " ")
	if ok && strings.EqualFold(scheme, common.BearerScheme) {
		header = strings.TrimSpace(rest)
	}
	if header == "" || strings.EqualFold(header, common.BearerScheme) {
		return "", errors.Join(common.ErrMissingCredentials, errors.New("empty bearer token"))
	}

	return header, nil
}
