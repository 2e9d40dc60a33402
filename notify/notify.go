// Package notify keeps the transient notifications shown to the user.
//
// Every notification gets a process unique, increasing id starting at 1
// and is visible as soon as it is emitted. A positive timeout schedules
// its removal; a zero timeout keeps it until dismissed. Dismissing first
// turns the scheduled removal into a no-op.
package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-auth-guard/internal/clock"
)

// Severity of a notification
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

const (
	DefaultInfoTimeout    = 3000 * time.Millisecond
	DefaultSuccessTimeout = 3000 * time.Millisecond
	DefaultWarningTimeout = 4000 * time.Millisecond
	DefaultErrorTimeout   = 4000 * time.Millisecond
)

// ParseSeverity maps a name to a Severity
func ParseSeverity(name string) (Severity, error) {
	switch s := Severity(strings.ToLower(strings.TrimSpace(name))); s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return s, nil
	default:
		return "", fmt.Errorf("unknown notification severity %q", name)
	}
}

// DefaultTimeout returns the auto-dismiss delay used by the severity helpers
func (s Severity) DefaultTimeout() time.Duration {
	switch s {
	case SeverityWarning:
		return DefaultWarningTimeout
	case SeverityError:
		return DefaultErrorTimeout
	case SeveritySuccess:
		return DefaultSuccessTimeout
	default:
		return DefaultInfoTimeout
	}
}

// Notification is a pending, visible message
type Notification struct {
	ID        uint64
	Message   string
	Severity  Severity
	CreatedAt time.Time
	Timeout   time.Duration
}

// AutoDismiss reports whether the notification expires on its own
func (n Notification) AutoDismiss() bool {
	return n.Timeout > 0
}

// ExpiresAt is the scheduled removal time, zero when it never expires
func (n Notification) ExpiresAt() time.Time {
	if !n.AutoDismiss() {
		return time.Time{}
	}
	return n.CreatedAt.Add(n.Timeout)
}

// EventKind describes a change in the visible set
type EventKind string

const (
	EventAdded     EventKind = "added"
	EventDismissed EventKind = "dismissed"
	EventCleared   EventKind = "cleared"
)

// Event is delivered to listeners after the change is applied
type Event struct {
	Kind         EventKind
	Notification Notification
}

// Listener observes changes, typically a view that renders the toasts
type Listener func(Event)

// Option configures a Center
type Option func(*Center)

// WithClock injects the time source used for timestamps and expiry
func WithClock(c clock.Clock) Option {
	return func(center *Center) {
		if c != nil {
			center.clock = c
		}
	}
}

// WithListener registers a change listener
func WithListener(l Listener) Option {
	return func(center *Center) {
		if l != nil {
			center.listeners = append(center.listeners, l)
		}
	}
}

type entry struct {
	notification Notification
	timer        *clock.Timer
}

// Center owns the visible notifications. It is safe for concurrent use.
type Center struct {
	mu        sync.Mutex
	clock     clock.Clock
	nextID    uint64
	order     []uint64
	entries   map[uint64]*entry
	listeners []Listener
}

// NewCenter creates an empty Center
func NewCenter(opts ...Option) *Center {
	c := &Center{
		clock:   clock.Real(),
		nextID:  1,
		entries: map[uint64]*entry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Emit adds a notification and returns its id
func (c *Center) Emit(message string, severity Severity, timeout time.Duration) uint64 {
	if severity == "" {
		severity = SeverityInfo
	}
	if timeout < 0 {
		timeout = 0
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	n := Notification{
		ID:        id,
		Message:   message,
		Severity:  severity,
		CreatedAt: c.clock.Now(),
		Timeout:   timeout,
	}
	e := &entry{notification: n}
	c.entries[id] = e
	c.order = append(c.order, id)
	c.mu.Unlock()

	c.publish(Event{Kind: EventAdded, Notification: n})

	if timeout > 0 {
		timer := c.clock.AfterFunc(timeout, func() {
			c.Dismiss(id)
		})

		c.mu.Lock()
		if current, ok := c.entries[id]; ok && current == e {
			e.timer = timer
			c.mu.Unlock()
		} else {
			c.mu.Unlock()
			timer.Stop()
		}
	}

	return id
}

// Dismiss removes the notification, unknown ids are ignored
func (c *Center) Dismiss(id uint64) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.entries, id)
	for i, current := range c.order {
		if current == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	timer := e.timer
	c.mu.Unlock()

	timer.Stop()
	c.publish(Event{Kind: EventDismissed, Notification: e.notification})
}

// ClearAll removes every notification and cancels pending expiries
func (c *Center) ClearAll() {
	c.mu.Lock()
	removed := make([]*entry, 0, len(c.order))
	for _, id := range c.order {
		removed = append(removed, c.entries[id])
	}
	c.entries = map[uint64]*entry{}
	c.order = nil
	c.mu.Unlock()

	for _, e := range removed {
		e.timer.Stop()
	}
	if len(removed) > 0 {
		c.publish(Event{Kind: EventCleared})
	}
}

// Info emits an informational notification, 3s unless timeout is given
func (c *Center) Info(message string, timeout ...time.Duration) uint64 {
	return c.Emit(message, SeverityInfo, pickTimeout(SeverityInfo, timeout))
}

// Success emits a success notification, 3s unless timeout is given
func (c *Center) Success(message string, timeout ...time.Duration) uint64 {
	return c.Emit(message, SeveritySuccess, pickTimeout(SeveritySuccess, timeout))
}

// Warning emits a warning notification, 4s unless timeout is given
func (c *Center) Warning(message string, timeout ...time.Duration) uint64 {
	return c.Emit(message, SeverityWarning, pickTimeout(SeverityWarning, timeout))
}

// Error emits an error notification, 4s unless timeout is given
func (c *Center) Error(message string, timeout ...time.Duration) uint64 {
	return c.Emit(message, SeverityError, pickTimeout(SeverityError, timeout))
}

// List returns the visible notifications in creation order
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notification, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id].notification)
	}
	return out
}

// Get returns the notification with id if it is still visible
func (c *Center) Get(id uint64) (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return Notification{}, false
	}
	return e.notification, true
}

// Len is the number of visible notifications
func (c *Center) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

func (c *Center) publish(evt Event) {
	c.mu.Lock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(evt)
	}
}

func pickTimeout(severity Severity, timeout []time.Duration) time.Duration {
	if len(timeout) > 0 {
		return timeout[0]
	}
	return severity.DefaultTimeout()
}
