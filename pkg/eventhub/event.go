package eventhub

import (
	"time"

	"github.com/google/uuid"
)

// Well-known event types and sources used by the hub itself.
const (
	// EventTypeHub is the type of internal events dispatched by the hub.
	EventTypeHub = "com.adobe.eventType.hub"

	// EventSourceSharedState is the source of standard shared-state change
	// notifications.
	EventSourceSharedState = "com.adobe.eventSource.sharedState"

	// EventSourceXDMSharedState is the source of XDM shared-state change
	// notifications.
	EventSourceXDMSharedState = "com.adobe.eventSource.xdmSharedState"

	// EventSourceBooted is the source of the event dispatched when the hub
	// finishes starting.
	EventSourceBooted = "com.adobe.eventSource.booted"

	// Wildcard matches any event type or source in a listener registration.
	Wildcard = "*"
)

// StateOwnerKey is the data key carrying the owning extension's name in a
// shared-state change event.
const StateOwnerKey = "stateowner"

// Event is an immutable value dispatched through the hub.
// Events are created by producers and never mutated; transforms clone with
// new data via CloneWithData.
type Event struct {
	id         string
	eventType  string
	source     string
	responseID string
	parentID   string
	mask       []string
	data       map[string]any
	timestamp  time.Time
}

// EventOption configures event creation.
type EventOption func(*Event)

// WithEventID sets a specific unique identifier (default: auto-generated UUID).
func WithEventID(id string) EventOption {
	return func(e *Event) {
		e.id = id
	}
}

// WithResponseID marks the event as a response to the event with the given
// unique identifier.
func WithResponseID(id string) EventOption {
	return func(e *Event) {
		e.responseID = id
	}
}

// WithParentID records the unique identifier of the event that caused this one.
func WithParentID(id string) EventOption {
	return func(e *Event) {
		e.parentID = id
	}
}

// WithMask sets the ordered data-path selectors used by event history.
// An event with a non-nil mask is recorded in the history index after fan-out.
func WithMask(mask []string) EventOption {
	return func(e *Event) {
		e.mask = append([]string(nil), mask...)
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) EventOption {
	return func(e *Event) {
		e.timestamp = t
	}
}

// New creates an event with the given type, source, and data payload.
// The payload is deep-copied so later changes to the caller's map do not
// leak into the event.
func New(eventType, source string, data map[string]any, opts ...EventOption) *Event {
	e := &Event{
		id:        uuid.New().String(),
		eventType: eventType,
		source:    source,
		data:      cloneDataMap(data),
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewResponseEvent creates an event paired to a request event. The response
// inherits nothing but the correlation: its responseID is the request's
// unique identifier and its parentID points at the request.
func NewResponseEvent(request *Event, eventType, source string, data map[string]any, opts ...EventOption) *Event {
	paired := []EventOption{
		WithResponseID(request.ID()),
		WithParentID(request.ID()),
	}
	return New(eventType, source, data, append(paired, opts...)...)
}

// ID returns the unique event identifier.
func (e *Event) ID() string {
	return e.id
}

// Type returns the event type tag.
func (e *Event) Type() string {
	return e.eventType
}

// Source returns the event source tag.
func (e *Event) Source() string {
	return e.source
}

// ResponseID returns the unique identifier of the event this one responds
// to, or "" if the event is not a response.
func (e *Event) ResponseID() string {
	return e.responseID
}

// ParentID returns the unique identifier of the event that caused this one,
// or "" if unknown.
func (e *Event) ParentID() string {
	return e.parentID
}

// Mask returns the event-history data-path selectors, or nil.
func (e *Event) Mask() []string {
	if e.mask == nil {
		return nil
	}
	return append([]string(nil), e.mask...)
}

// Data returns a deep copy of the event's data payload.
func (e *Event) Data() map[string]any {
	return cloneDataMap(e.data)
}

// Timestamp returns when the event was created.
func (e *Event) Timestamp() time.Time {
	return e.timestamp
}

// CloneWithData returns a copy of the event carrying new data. Identity,
// type, source, correlation, mask, and timestamp are preserved, so the clone
// keeps the original's event number and response pairing.
func (e *Event) CloneWithData(data map[string]any) *Event {
	clone := *e
	clone.data = cloneDataMap(data)
	return &clone
}

// cloneDataMap deep-copies a JSON-like payload: nested map[string]any and
// []any values are copied, scalars are shared.
func cloneDataMap(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneDataValue(v)
	}
	return out
}

func cloneDataValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneDataMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneDataValue(item)
		}
		return out
	default:
		return v
	}
}
