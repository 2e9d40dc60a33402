package auth

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

var routePathPattern = regexp.MustCompile(`^/[^\s?#]*$`)

// Route describes a navigable destination. It is defined by the
// application, the guard only reads it.
type Route struct {
	Name               string `json:"name,omitempty" yaml:"name"`
	Path               string `json:"path" yaml:"path"`
	RequiresAuth       bool   `json:"requires_auth" yaml:"requires_auth"`
	RequiredPermission string `json:"required_permission,omitempty" yaml:"required_permission"`
}

// Validate will validate the route descriptor
func (r Route) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required, validation.Match(routePathPattern)),
		validation.Field(&r.RequiredPermission, validation.Length(0, 100)),
	)
}

// IsPublic reports whether anyone may visit the route
func (r Route) IsPublic() bool {
	return !r.RequiresAuth && r.RequiredPermission == ""
}

// RouteTable resolves paths to route descriptors
type RouteTable struct {
	routes map[string]Route
}

// NewRouteTable validates routes and indexes them by path
func NewRouteTable(routes ...Route) (*RouteTable, error) {
	t := &RouteTable{routes: map[string]Route{}}

	for i, r := range routes {
		r.RequiredPermission = strings.TrimSpace(r.RequiredPermission)
		if err := r.Validate(); err != nil {
			clone := withDetails(ErrInvalidRoute, map[string]any{
				"index": i,
				"path":  r.Path,
				"name":  r.Name,
			})
			clone.Source = err
			return nil, clone
		}

		key := cleanRoutePath(r.Path)
		if _, exists := t.routes[key]; exists {
			return nil, withDetails(ErrInvalidRoute, map[string]any{
				"index":  i,
				"path":   r.Path,
				"reason": "duplicate",
			})
		}
		r.Path = key
		t.routes[key] = r
	}

	return t, nil
}

// MustRouteTable is NewRouteTable that panics on invalid input
func MustRouteTable(routes ...Route) *RouteTable {
	t, err := NewRouteTable(routes...)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup finds the route for target. Query strings and fragments are
// ignored, unknown paths return a public route for the path.
func (t *RouteTable) Lookup(target string) (Route, bool) {
	path := targetPath(target)
	if t != nil {
		if r, ok := t.routes[path]; ok {
			return r, true
		}
	}
	return Route{Path: path}, false
}

// Routes returns every route sorted by path
func (t *RouteTable) Routes() []Route {
	if t == nil {
		return nil
	}
	out := make([]Route, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})
	return out
}

// DefaultRoutes is the inventory application route map
func DefaultRoutes() []Route {
	return []Route{
		{Name: "home", Path: "/"},
		{Name: "login", Path: DefaultLoginRoute},
		{Name: "dashboard", Path: DefaultFallbackRoute, RequiresAuth: true},
		{Name: "inventory", Path: "/inventory", RequiresAuth: true},
		{Name: "categories", Path: "/categories", RequiresAuth: true, RequiredPermission: "view_categories"},
		{Name: "users", Path: "/admin/users", RequiresAuth: true, RequiredPermission: "view_users"},
	}
}

func targetPath(target string) string {
	target = strings.TrimSpace(target)
	if u, err := url.Parse(target); err == nil && u.Path != "" {
		return cleanRoutePath(u.Path)
	}
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	return cleanRoutePath(target)
}

func cleanRoutePath(p string) string {
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			return "/"
		}
	}
	return p
}
