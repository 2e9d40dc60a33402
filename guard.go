package auth

import (
	"context"
	"net/url"
	"strings"
	"time"
)

const (
	MessageLoginRequired = "Please log in to access this page."
	MessageForbidden     = "You don't have permission to access this page."
)

// Action is the outcome of a navigation check
type Action string

const (
	ActionAllow    Action = "allow"
	ActionRedirect Action = "redirect"
)

// Reason explains a redirect
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonForbidden       Reason = "forbidden"
	ReasonAuthenticated   Reason = "authenticated"
)

// Decision is what the router should do with a transition
type Decision struct {
	Action   Action
	Reason   Reason
	Location string
	Session  Session
}

// Allowed reports whether the transition may proceed
func (d Decision) Allowed() bool {
	return d.Action == ActionAllow
}

// GuardOption customizes guard construction
type GuardOption func(*Guard)

// WithGuardNotifier sets the notifier used for access warnings
func WithGuardNotifier(n Notifier) GuardOption {
	return func(g *Guard) {
		g.notifier = normalizeNotifier(n)
	}
}

// WithGuardPolicy overrides the permission policy
func WithGuardPolicy(p Policy) GuardOption {
	return func(g *Guard) {
		g.policy = p
		g.policySet = true
	}
}

// WithGuardConfig sets login and fallback routes and the redirect param
func WithGuardConfig(cfg Config) GuardOption {
	return func(g *Guard) {
		g.config = normalizeConfig(cfg)
	}
}

func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithGuardActivitySink(sink ActivitySink) GuardOption {
	return func(g *Guard) {
		g.activitySink = normalizeActivitySink(sink)
	}
}

// WithRoutes sets the table used by Navigate
func WithRoutes(table *RouteTable) GuardOption {
	return func(g *Guard) {
		if table != nil {
			g.routes = table
		}
	}
}

// Guard runs before every route transition. It never mutates the session
// beyond triggering the store's own lazy initialization.
type Guard struct {
	store        SessionSource
	notifier     Notifier
	policy       Policy
	policySet    bool
	config       Config
	logger       Logger
	activitySink ActivitySink
	routes       *RouteTable
	now          func() time.Time
}

// NewGuard creates a guard reading from store
func NewGuard(store SessionSource, opts ...GuardOption) *Guard {
	g := &Guard{
		store:        store,
		notifier:     noopNotifier{},
		config:       defConfig{},
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		routes:       &RouteTable{routes: map[string]Route{}},
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	if !g.policySet {
		if src, ok := store.(interface{ Policy() Policy }); ok {
			g.policy = src.Policy()
		} else {
			g.policy = PolicyFromConfig(g.config)
		}
	}

	return g
}

// Navigate checks a transition to target using the route table
func (g *Guard) Navigate(ctx context.Context, target string) Decision {
	route, _ := g.routes.Lookup(target)
	return g.Check(ctx, route, target)
}

// Check decides a transition to route. target is the full destination as
// requested, it is kept in the login redirect.
func (g *Guard) Check(ctx context.Context, to Route, target string) Decision {
	if target == "" {
		target = to.Path
	}
	destination := to.Path
	if destination == "" {
		destination = target
	}
	destination = targetPath(destination)

	if current := g.store.Snapshot(); !current.IsAuthenticated() || current.Restoring() {
		if err := g.store.Initialize(ctx); err != nil {
			g.logger.Warn("session initialization did not complete: %v", err)
		}
	}

	if current := g.store.Snapshot(); current.PermissionsPending() {
		if err := g.store.AwaitPermissions(ctx); err != nil {
			g.logger.Warn("permission refresh did not complete: %v", err)
		}
	}

	session := g.store.Snapshot()
	authenticated := session.IsAuthenticated()

	if to.RequiresAuth && !authenticated {
		g.notifier.Warning(MessageLoginRequired)
		return g.deny(ctx, session, ReasonUnauthenticated, g.loginLocation(target), target)
	}

	if to.RequiredPermission != "" && !g.policy.Resolve(session, to.RequiredPermission) {
		g.notifier.Warning(MessageForbidden)

		if !authenticated {
			return g.deny(ctx, session, ReasonUnauthenticated, g.loginLocation(target), target)
		}

		fallback := g.config.GetFallbackRoute()
		if destination == targetPath(fallback) {
			g.logger.Debug("missing %s on fallback route %s, allowing", to.RequiredPermission, fallback)
			return Decision{Action: ActionAllow, Session: session}
		}
		return g.deny(ctx, session, ReasonForbidden, fallback, target)
	}

	if authenticated && destination == targetPath(g.config.GetLoginRoute()) {
		location := g.config.GetFallbackRoute()
		g.recordActivity(ctx, session, ActivityEventNavigationRedirect, target, map[string]any{
			"location": location,
			"reason":   string(ReasonAuthenticated),
		})
		return Decision{
			Action:   ActionRedirect,
			Reason:   ReasonAuthenticated,
			Location: location,
			Session:  session,
		}
	}

	return Decision{Action: ActionAllow, Session: session}
}

// RedirectTarget returns where to go after login: the redirect query
// parameter when it is a local path, otherwise def or the fallback route.
func (g *Guard) RedirectTarget(query url.Values, def string) string {
	if def == "" {
		def = g.config.GetFallbackRoute()
	}
	if query == nil {
		return def
	}
	if target, ok := LocalPath(query.Get(g.config.GetRedirectParam())); ok {
		return target
	}
	return def
}

// LocalPath reports whether raw is an absolute path on this application
func LocalPath(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return "", false
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "", false
	}
	return raw, true
}

func (g *Guard) loginLocation(target string) string {
	login := g.config.GetLoginRoute()
	if target == "" {
		return login
	}
	sep := "?"
	if strings.Contains(login, "?") {
		sep = "&"
	}
	return login + sep + url.QueryEscape(g.config.GetRedirectParam()) + "=" + escapeRedirect(target)
}

// escapeRedirect query escapes target but keeps path separators readable
func escapeRedirect(target string) string {
	return strings.ReplaceAll(url.QueryEscape(target), "%2F", "/")
}

func (g *Guard) deny(ctx context.Context, session Session, reason Reason, location, target string) Decision {
	g.recordActivity(ctx, session, ActivityEventNavigationDenied, target, map[string]any{
		"location": location,
		"reason":   string(reason),
	})
	return Decision{
		Action:   ActionRedirect,
		Reason:   reason,
		Location: location,
		Session:  session,
	}
}

func (g *Guard) recordActivity(ctx context.Context, session Session, eventType ActivityEventType, path string, meta map[string]any) {
	event := ActivityEvent{
		EventType: eventType,
		Path:      path,
		Metadata:  meta,
	}
	if session.User != nil {
		event.UserID = session.User.ID()
		event.Username = session.User.Username()
	}
	recordActivity(ctx, g.activitySink, g.logger, g.now, event)
}
