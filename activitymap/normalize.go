// Package activitymap turns session and navigation activity into a flat
// record shape for audit logs and telemetry pipelines.
package activitymap

import (
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-guard"
)

const (
	// MetadataKeyUsername stores the username attached to the event
	MetadataKeyUsername = "username"
	// MetadataKeyPath stores the navigation target
	MetadataKeyPath = "path"
)

const (
	ChannelAuth       = "auth"
	ChannelNavigation = "nav"

	ObjectTypeSession = "session"
	ObjectTypeRoute   = "route"

	defaultActorID = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	actorFallback string
	now           func() time.Time
}

// Normalize converts an auth.ActivityEvent into the normalized shape.
// Navigation events use the route as object, everything else the session.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now()
	}

	out := Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.UserID), options.actorFallback),
		Verb:       string(event.EventType),
		Channel:    channelOf(event.EventType),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt.UTC(),
	}

	if out.Channel == ChannelNavigation {
		out.ObjectType = ObjectTypeRoute
		out.ObjectID = strings.TrimSpace(event.Path)
	} else {
		out.ObjectType = ObjectTypeSession
		out.ObjectID = strings.TrimSpace(event.UserID)
	}

	return out
}

// WithActorFallback sets the actor id used when the event has no user
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			opts.actorFallback = actorID
		}
	}
}

// WithNow sets the timestamp source for events without OccurredAt
func WithNow(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

func channelOf(eventType auth.ActivityEventType) string {
	prefix, _, _ := strings.Cut(string(eventType), ".")
	if prefix == ChannelNavigation {
		return ChannelNavigation
	}
	return ChannelAuth
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	set := func(key, value string) {
		if value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	set(MetadataKeyUsername, strings.TrimSpace(event.Username))
	set(MetadataKeyPath, strings.TrimSpace(event.Path))

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
