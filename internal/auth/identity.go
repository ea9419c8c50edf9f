// Package auth extracts the user identity carried by the API token.
//
// The token is verified by the server on every request; the client only
// reads the claims it needs to scope the push channel to the right user.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoIdentity is returned when the token carries no user identifier.
var ErrNoIdentity = errors.New("token carries no user identity")

// Identity is the authenticated user of the current session.
type Identity struct {
	UserID    string
	Name      string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the token's exp claim is in the past at now.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// claims covers the identifier spellings the TaskFlow backend has used.
type claims struct {
	UserID string `json:"userId"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// FromToken reads the identity out of a JWT without verifying its
// signature.
func FromToken(token string) (Identity, error) {
	var c claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &c); err != nil {
		return Identity{}, fmt.Errorf("parsing token: %w", err)
	}

	userID := c.UserID
	if userID == "" {
		userID = c.ID
	}
	if userID == "" {
		userID = c.Subject
	}
	if userID == "" {
		return Identity{}, ErrNoIdentity
	}

	id := Identity{
		UserID: userID,
		Name:   c.Name,
		Email:  c.Email,
		Token:  token,
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id, nil
}
