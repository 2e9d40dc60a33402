package auth

import "strings"

// Policy decides whether a session holds a capability. Elevated roles are
// granted every capability, everybody else needs an explicit grant in the
// session permission set.
type Policy struct {
	elevated map[string]struct{}
}

// NewPolicy returns a Policy that treats the given roles as elevated.
// With no roles RoleAdmin is used.
func NewPolicy(elevatedRoles ...string) Policy {
	p := Policy{elevated: map[string]struct{}{}}
	for _, role := range elevatedRoles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		p.elevated[role] = struct{}{}
	}
	if len(p.elevated) == 0 {
		p.elevated[RoleAdmin] = struct{}{}
	}
	return p
}

// PolicyFromConfig builds the policy from Config.GetElevatedRoles
func PolicyFromConfig(cfg Config) Policy {
	return NewPolicy(normalizeConfig(cfg).GetElevatedRoles()...)
}

// IsElevated reports whether role bypasses capability checks
func (p Policy) IsElevated(role string) bool {
	if role == "" {
		return false
	}
	if p.elevated == nil {
		return role == RoleAdmin
	}
	_, ok := p.elevated[role]
	return ok
}

// Resolve is the permission decision for a session snapshot. It has no
// side effects.
func (p Policy) Resolve(session Session, required string) bool {
	if session.User != nil && p.IsElevated(session.User.Role()) {
		return true
	}
	return session.Permissions.Has(required)
}

// ElevatedRoles returns the elevated roles in no particular order
func (p Policy) ElevatedRoles() []string {
	if p.elevated == nil {
		return []string{RoleAdmin}
	}
	out := make([]string, 0, len(p.elevated))
	for role := range p.elevated {
		out = append(out, role)
	}
	return out
}
