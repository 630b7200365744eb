// Package identity reads display information out of the bearer token.
//
// The token is a JWT issued by the backend's identity provider. The client
// never verifies it; the backend does that during the handshake.
package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultClaim is the claim holding the user's display name.
const DefaultClaim = "preferred_username"

var (
	// ErrNoToken is returned when no bearer token is configured.
	ErrNoToken = errors.New("no bearer token")
	// ErrClaimNotFound is returned when the claim is missing or not a string.
	ErrClaimNotFound = errors.New("claim not found")
)

// Claim returns the string claim named name from an unverified JWT.
func Claim(token, name string) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("failed to parse bearer token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrClaimNotFound, name)
	}
	value, ok := claims[name].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %q", ErrClaimNotFound, name)
	}
	return value, nil
}

// DisplayName returns the user's name from token, or fallback when the token
// is absent or carries no usable claim.
func DisplayName(token, claim, fallback string) string {
	if claim == "" {
		claim = DefaultClaim
	}
	name, err := Claim(token, claim)
	if err != nil {
		return fallback
	}
	return name
}
