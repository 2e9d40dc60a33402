package auth

import (
	"bytes"
	"encoding/json"
	"strings"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleAdmin is the elevated role, it is granted every capability
	RoleAdmin UserRole = "admin"
	// RoleStaff is a regular inventory operator
	RoleStaff UserRole = "staff"
)

var _ Identity = (*User)(nil)

// User is the identity attached to an authenticated session
type User struct {
	UserID   string   `json:"id"`
	Name     string   `json:"username"`
	UserRole UserRole `json:"role"`
}

func (u *User) ID() string {
	if u == nil {
		return ""
	}
	return u.UserID
}

func (u *User) Username() string {
	if u == nil {
		return ""
	}
	return u.Name
}

func (u *User) Role() string {
	if u == nil {
		return ""
	}
	return u.UserRole
}

// Clone returns a copy safe to hand out to readers
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// UnmarshalJSON accepts numeric and string ids, backends disagree on which
// one they send.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       json.RawMessage `json:"id"`
		Username string          `json:"username"`
		Role     string          `json:"role"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := decodeIdentifier(raw.ID)
	if err != nil {
		return err
	}

	u.UserID = id
	u.Name = raw.Username
	u.UserRole = raw.Role
	return nil
}

// decodeIdentifier reads a JSON string or number as a string id. Absent
// and null values give an empty id.
func decodeIdentifier(raw json.RawMessage) (string, error) {
	id := bytes.TrimSpace(raw)
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		return "", nil
	}

	if id[0] == '"' {
		var s string
		if err := json.Unmarshal(id, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}

	var n json.Number
	if err := json.Unmarshal(id, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
