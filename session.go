package auth

import (
	"fmt"
	"strings"
)

// SessionState is the lifecycle position of the session store
type SessionState string

const (
	StateLoggedOut     SessionState = "logged_out"
	StateInitializing  SessionState = "initializing"
	StateAuthenticated SessionState = "authenticated"
	StateReady         SessionState = "ready"
)

// Session is a read only snapshot of the session store. Token is set iff
// User is set.
type Session struct {
	State             SessionState
	Token             string
	User              *User
	Permissions       Permissions
	PermissionsLoaded bool
}

// IsAuthenticated reports whether a token is present
func (s Session) IsAuthenticated() bool {
	return s.Token != ""
}

// IsAdmin reports whether the user holds the admin role
func (s Session) IsAdmin() bool {
	return s.User != nil && s.User.Role() == RoleAdmin
}

// HasPermission resolves name with the default policy
func (s Session) HasPermission(name string) bool {
	return NewPolicy().Resolve(s, name)
}

// PermissionsPending reports whether capabilities are still unknown for an
// authenticated session
func (s Session) PermissionsPending() bool {
	return s.IsAuthenticated() && !s.PermissionsLoaded
}

// Restoring reports whether a persisted session is still being restored
func (s Session) Restoring() bool {
	return s.State == StateInitializing
}

func (s Session) String() string {
	username := "<none>"
	if s.User != nil {
		username = s.User.Username()
	}
	return fmt.Sprintf(
		"state=%s user=%s token=%s permissions=[%s] loaded=%t",
		s.State,
		username,
		maskToken(s.Token),
		strings.Join(s.Permissions.List(), ","),
		s.PermissionsLoaded,
	)
}

func maskToken(token string) string {
	if token == "" {
		return "<none>"
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
