package auth

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload embedded in a bearer token. Only the subject,
// username and role are carried into the session.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	UserRole string `json:"role,omitempty"`
}

// UnmarshalJSON accepts string and numeric subjects, the same ids User
// accepts.
func (c *Claims) UnmarshalJSON(data []byte) error {
	type plain Claims
	var raw struct {
		plain
		Sub json.RawMessage `json:"sub"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	sub, err := decodeIdentifier(raw.Sub)
	if err != nil {
		return err
	}

	*c = Claims(raw.plain)
	c.RegisteredClaims.Subject = sub
	return nil
}

// Subject returns the subject claim
func (c *Claims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Role returns the global role
func (c *Claims) Role() string {
	return c.UserRole
}

// Expires returns the expiration time, zero when the token has no exp claim
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IsExpired reports whether exp is set and before now. The session store
// does not act on it; the backend decides.
func (c *Claims) IsExpired(now time.Time) bool {
	exp := c.Expires()
	return !exp.IsZero() && exp.Before(now)
}

// User builds the session identity from the claims
func (c *Claims) User() *User {
	return &User{
		UserID:   c.Subject(),
		Name:     c.Username,
		UserRole: c.UserRole,
	}
}

func (c *Claims) missingClaim() string {
	switch {
	case c.RegisteredClaims.Subject == "":
		return "sub"
	case c.Username == "":
		return "username"
	case c.UserRole == "":
		return "role"
	default:
		return ""
	}
}
