// Package auth reads the identity carried in the backend's bearer token.
//
// The token is decoded without verifying its signature. The decoded role only
// chooses which screens to show; the backend authorizes every request.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tgienger/taskboard/internal/models"
)

var (
	// ErrNoToken is returned when there is no token to decode
	ErrNoToken = errors.New("no token")
	// ErrMalformedToken is returned when the token cannot be decoded
	ErrMalformedToken = errors.New("malformed token")
	// ErrExpired is returned by token sources once the token's exp has passed
	ErrExpired = errors.New("token expired")
)

// Claims is the identity decoded from a token
type Claims struct {
	Username  string
	Email     string
	Roles     []models.Role
	ExpiresAt time.Time
}

// Role returns the highest-privilege role in the claims, or "" when none is
// recognized.
func (c Claims) Role() models.Role {
	for _, want := range models.Roles {
		for _, r := range c.Roles {
			if r == want {
				return r
			}
		}
	}
	return ""
}

// Expired reports whether the token carried an expiry that has passed
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// tokenClaims is the wire form. roles may be a string or a list.
type tokenClaims struct {
	Email string    `json:"email"`
	Roles roleClaim `json:"roles"`
	jwt.RegisteredClaims
}

type roleClaim []string

func (r *roleClaim) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*r = roleClaim{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("roles claim: %w", err)
	}
	*r = many
	return nil
}

var parser = jwt.NewParser()

// Decode reads the claims of token without checking its signature
func Decode(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrNoToken
	}

	var tc tokenClaims
	if _, _, err := parser.ParseUnverified(token, &tc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	c := Claims{
		Username: tc.Subject,
		Email:    tc.Email,
	}
	for _, raw := range tc.Roles {
		if role := models.ParseRole(raw); role != "" {
			c.Roles = append(c.Roles, role)
		}
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}
