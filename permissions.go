package auth

import (
	"sort"
	"strings"
)

// Permissions is an immutable set of capability names
type Permissions struct {
	set map[string]struct{}
}

// NewPermissions builds a set, blank names are dropped
func NewPermissions(names ...string) Permissions {
	p := Permissions{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if p.set == nil {
			p.set = make(map[string]struct{}, len(names))
		}
		p.set[name] = struct{}{}
	}
	return p
}

func (p Permissions) Has(name string) bool {
	if p.set == nil {
		return false
	}
	_, ok := p.set[name]
	return ok
}

func (p Permissions) Len() int {
	return len(p.set)
}

func (p Permissions) IsEmpty() bool {
	return len(p.set) == 0
}

// List returns the names sorted
func (p Permissions) List() []string {
	out := make([]string, 0, len(p.set))
	for name := range p.set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// PermissionOutcome tells apart the ways a permission refresh can end
type PermissionOutcome string

const (
	// PermissionsSkipped no token was set, the backend was not contacted
	PermissionsSkipped PermissionOutcome = "skipped"
	// PermissionsGranted the backend returned at least one capability
	PermissionsGranted PermissionOutcome = "granted"
	// PermissionsEmpty the backend returned no capabilities
	PermissionsEmpty PermissionOutcome = "empty"
	// PermissionsFailed the fetch failed, capabilities are unknown
	PermissionsFailed PermissionOutcome = "failed"
	// PermissionsStale the session changed while the fetch was in flight
	PermissionsStale PermissionOutcome = "stale"
)

// PermissionResult is returned by Store.RefreshPermissions
type PermissionResult struct {
	Outcome     PermissionOutcome
	Permissions Permissions
	Err         error
}

// Loaded reports whether the set reflects what the backend granted
func (r PermissionResult) Loaded() bool {
	return r.Outcome == PermissionsGranted || r.Outcome == PermissionsEmpty
}
