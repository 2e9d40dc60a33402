package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-auth-guard/storage"
)

// SessionSource is what the navigation guard needs from the session store
type SessionSource interface {
	Snapshot() Session
	Initialize(ctx context.Context) error
	AwaitPermissions(ctx context.Context) error
}

// StoreOption customizes store construction.
type StoreOption func(*Store)

// WithStoreLogger overrides the logger
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreNotifier sets the notifier used for the logout message
func WithStoreNotifier(n Notifier) StoreOption {
	return func(s *Store) {
		s.notifier = normalizeNotifier(n)
	}
}

// WithStoreActivitySink sets the ActivitySink used to publish session events.
func WithStoreActivitySink(sink ActivitySink) StoreOption {
	return func(s *Store) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithStorePolicy overrides the permission policy
func WithStorePolicy(p Policy) StoreOption {
	return func(s *Store) {
		s.policy = p
		s.policySet = true
	}
}

// WithAuthorizationHeader sets the default header capability updated on
// login, restore and logout
func WithAuthorizationHeader(h AuthorizationHeader) StoreOption {
	return func(s *Store) {
		if h != nil {
			s.header = h
		}
	}
}

// WithStoreConfig sets storage key, timeouts and elevated roles
func WithStoreConfig(cfg Config) StoreOption {
	return func(s *Store) {
		s.config = normalizeConfig(cfg)
	}
}

// WithStoreClock injects a custom clock (useful for tests).
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store owns the session. It is the only writer of session state, readers
// get Session snapshots.
type Store struct {
	backend      Backend
	storage      Storage
	header       AuthorizationHeader
	notifier     Notifier
	activitySink ActivitySink
	logger       Logger
	config       Config
	policy       Policy
	policySet    bool
	now          func() time.Time

	initGroup singleflight.Group

	// writeMu serializes storage and memory updates so both change together
	writeMu sync.Mutex

	mu          sync.RWMutex
	state       SessionState
	token       string
	user        *User
	permissions Permissions
	loaded      bool
	generation  uint64

	// refreshing counts permission fetches in flight, refreshDone is closed
	// when it drops back to zero
	refreshing  int
	refreshDone chan struct{}
}

// NewStore returns a logged out store. A nil storage keeps the token in
// memory only.
func NewStore(backend Backend, store Storage, opts ...StoreOption) *Store {
	if store == nil {
		store = storage.NewMemory()
	}

	s := &Store{
		backend:      backend,
		storage:      store,
		header:       noopHeader{},
		notifier:     noopNotifier{},
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		config:       defConfig{},
		now:          time.Now,
		state:        StateLoggedOut,
	}

	if h, ok := backend.(AuthorizationHeader); ok {
		s.header = h
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if !s.policySet {
		s.policy = PolicyFromConfig(s.config)
	}

	return s
}

// Initialize restores the session from persisted storage. Concurrent
// callers share a single restore. The restore itself is bounded by the
// configured request timeout, a caller whose ctx ends first gets ctx.Err()
// while the restore keeps going for the others.
func (s *Store) Initialize(ctx context.Context) error {
	if snapshot := s.Snapshot(); snapshot.IsAuthenticated() && !snapshot.Restoring() {
		return nil
	}

	ch := s.initGroup.DoChan("initialize", func() (any, error) {
		runCtx, cancel := s.requestContext(context.WithoutCancel(ctx))
		defer cancel()
		s.initialize(runCtx)
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (s *Store) initialize(ctx context.Context) {
	s.writeMu.Lock()

	if s.IsAuthenticated() {
		s.writeMu.Unlock()
		return
	}

	s.setState(StateInitializing)

	token, found, err := s.storage.Get(ctx, s.config.GetStorageKey())
	if err != nil {
		s.logger.Error("session restore storage read failed: %v", err)
		s.setState(StateLoggedOut)
		s.writeMu.Unlock()
		return
	}

	if !found || token == "" {
		s.setState(StateLoggedOut)
		s.writeMu.Unlock()
		return
	}

	claims, err := DecodeToken(token)
	if err != nil {
		s.logger.Warn("persisted token rejected: %v", err)
		s.writeMu.Unlock()
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSessionRejected,
			Metadata:  errorMetadata(err),
		})
		s.Logout(ctx)
		return
	}

	user := claims.User()
	s.mu.Lock()
	s.token = token
	s.user = user
	s.permissions = Permissions{}
	s.loaded = false
	s.state = StateInitializing
	s.generation++
	generation := s.generation
	s.beginRefresh()
	s.mu.Unlock()

	s.header.SetBearer(token)
	s.writeMu.Unlock()

	s.logger.Debug("session restored for %s", user.Username())
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSessionRestored,
		UserID:    user.ID(),
		Username:  user.Username(),
	})

	s.fetchPermissions(ctx, generation)
}

// Login authenticates against the backend and, on success, stores and
// persists the token and user, then loads permissions. Backend errors are
// returned untouched and leave the session as it was.
func (s *Store) Login(ctx context.Context, credentials Credentials) (*User, error) {
	credentials = credentials.Normalize()

	if err := validateCredentials(credentials); err != nil {
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Username:  credentials.Username,
			Metadata:  errorMetadata(err),
		})
		return nil, err
	}

	result, err := s.backend.Login(ctx, credentials)
	if err != nil {
		s.logger.Error("login error: %v", err)
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Username:  credentials.Username,
			Metadata:  errorMetadata(err),
		})
		return nil, err
	}

	if result == nil || result.AccessToken == "" || result.User == nil {
		err := withDetails(ErrInvalidLoginResponse, map[string]any{
			"username": credentials.Username,
		})
		s.logger.Error("login error: %v", err)
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Username:  credentials.Username,
			Metadata:  errorMetadata(err),
		})
		return nil, err
	}

	user := result.User.Clone()

	s.writeMu.Lock()
	if err := s.storage.Set(ctx, s.config.GetStorageKey(), result.AccessToken); err != nil {
		s.writeMu.Unlock()
		s.logger.Error("login could not persist token: %v", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, ErrStorageFailure.Message).
			WithTextCode(TextCodeStorageFailure)
	}

	s.mu.Lock()
	s.token = result.AccessToken
	s.user = user
	s.permissions = Permissions{}
	s.loaded = false
	s.state = StateAuthenticated
	s.generation++
	generation := s.generation
	s.beginRefresh()
	s.mu.Unlock()

	s.header.SetBearer(result.AccessToken)
	s.writeMu.Unlock()

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID(),
		Username:  user.Username(),
	})

	s.fetchPermissions(ctx, generation)

	return user.Clone(), nil
}

// Logout clears the session, the persisted token and the authorization
// header. It is safe to call in any state and never fails.
func (s *Store) Logout(ctx context.Context) {
	s.writeMu.Lock()

	if err := s.storage.Remove(context.WithoutCancel(ctx), s.config.GetStorageKey()); err != nil {
		s.logger.Error("logout could not remove persisted token: %v", err)
	}

	s.mu.Lock()
	user := s.user
	s.token = ""
	s.user = nil
	s.permissions = Permissions{}
	s.loaded = false
	s.state = StateLoggedOut
	s.generation++
	s.mu.Unlock()

	s.header.ClearBearer()
	s.writeMu.Unlock()

	if user == nil {
		return
	}

	if username := user.Username(); username != "" {
		s.notifier.Info(fmt.Sprintf("Goodbye, %s! You've been logged out.", username))
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLogout,
		UserID:    user.ID(),
		Username:  user.Username(),
	})
}

// RefreshPermissions reloads the permission set from the backend. Fetch
// errors are absorbed: the set is cleared and the loaded flag stays false.
func (s *Store) RefreshPermissions(ctx context.Context) PermissionResult {
	s.mu.Lock()
	token := s.token
	generation := s.generation
	if token == "" {
		s.mu.Unlock()
		return PermissionResult{Outcome: PermissionsSkipped}
	}
	s.beginRefresh()
	s.mu.Unlock()

	return s.fetchPermissions(ctx, generation)
}

// fetchPermissions loads permissions for the session at generation. The
// caller must have called beginRefresh for it.
func (s *Store) fetchPermissions(ctx context.Context, generation uint64) PermissionResult {
	defer s.endRefresh()

	names, err := s.backend.FetchPermissions(ctx)

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		s.logger.Debug("discarding permissions fetched for a previous session")
		return PermissionResult{Outcome: PermissionsStale, Err: err}
	}

	if err != nil {
		s.permissions = Permissions{}
		s.loaded = false
		s.state = StateAuthenticated
		user := s.user.Clone()
		s.mu.Unlock()

		s.logger.Warn("permission refresh failed: %v details=%s", err, print.MaybePrettyJSON(errorMetadata(err)))
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventPermissionsFailed,
			UserID:    user.ID(),
			Username:  user.Username(),
			Metadata:  errorMetadata(err),
		})
		return PermissionResult{Outcome: PermissionsFailed, Err: err}
	}

	perms := NewPermissions(names...)
	s.permissions = perms
	s.loaded = true
	s.state = StateReady
	s.mu.Unlock()

	outcome := PermissionsGranted
	if perms.IsEmpty() {
		outcome = PermissionsEmpty
	}
	return PermissionResult{Outcome: outcome, Permissions: perms}
}

// AwaitPermissions blocks until no permission refresh is in flight, or
// ctx ends. It returns immediately when nothing is being fetched.
func (s *Store) AwaitPermissions(ctx context.Context) error {
	s.mu.RLock()
	done := s.refreshDone
	s.mu.RUnlock()

	if done == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// beginRefresh must be called with mu held
func (s *Store) beginRefresh() {
	if s.refreshing == 0 {
		s.refreshDone = make(chan struct{})
	}
	s.refreshing++
}

func (s *Store) endRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshing--
	if s.refreshing == 0 {
		close(s.refreshDone)
		s.refreshDone = nil
	}
}

// HandleUnauthorized ends the session after the backend rejected its token
func (s *Store) HandleUnauthorized(ctx context.Context) {
	if !s.IsAuthenticated() {
		return
	}
	s.logger.Warn("backend rejected the session token, logging out")
	s.Logout(ctx)
}

// Snapshot returns a copy of the current session
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{
		State:             s.state,
		Token:             s.token,
		User:              s.user.Clone(),
		Permissions:       s.permissions,
		PermissionsLoaded: s.loaded,
	}
}

func (s *Store) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *Store) IsAdmin() bool {
	return s.Snapshot().IsAdmin()
}

// User returns a copy of the session identity, nil when logged out
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// HasPermission resolves name against the store policy
func (s *Store) HasPermission(name string) bool {
	return s.policy.Resolve(s.Snapshot(), name)
}

// Policy returns the permission policy used by the store
func (s *Store) Policy() Policy {
	return s.policy
}

func (s *Store) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Store) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := s.config.GetRequestTimeout(); timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Store) recordActivity(ctx context.Context, event ActivityEvent) {
	recordActivity(ctx, s.activitySink, s.logger, s.now, event)
}

func errorMetadata(err error) map[string]any {
	if err == nil {
		return nil
	}
	meta := map[string]any{"error": err.Error()}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.TextCode != "" {
			meta["text_code"] = richErr.TextCode
		}
		if richErr.Code != 0 {
			meta["code"] = richErr.Code
		}
		for k, v := range richErr.Metadata {
			meta[k] = v
		}
	}
	return meta
}
