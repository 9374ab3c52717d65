package eventhub

import (
	"github.com/randalmurphal/eventhub/pkg/eventhub/history"
)

// Extension is the collaborator a host registers with the hub. Name is the
// canonical shared-state name and must be non-blank; the remaining metadata
// accessors may return zero values.
//
// OnRegistered, OnUnregistered, ReadyForEvent, and every listener run on
// the extension's own container goroutine, so an extension needs no
// internal locking for state touched only from those callbacks.
type Extension interface {
	// Name returns the extension's canonical shared-state name.
	Name() string

	// FriendlyName returns a human-readable name, or "".
	FriendlyName() string

	// Version returns the extension's version string, or "".
	Version() string

	// Metadata returns additional registration metadata, or nil.
	Metadata() map[string]string

	// OnRegistered is invoked once the extension is fully registered.
	OnRegistered()

	// OnUnregistered is invoked after the extension's inbox has drained
	// during deregistration or hub shutdown.
	OnUnregistered()

	// ReadyForEvent is consulted before each event is committed. Returning
	// false leaves the event at the head of the inbox; no later event is
	// delivered until ReadyForEvent returns true for the head.
	ReadyForEvent(e *Event) bool
}

// ExtensionFactory constructs an extension. The hub calls it during
// registration, handing the extension its API surface. A nil extension or
// non-nil error fails registration with ErrExtensionInitialization.
type ExtensionFactory func(api ExtensionAPI) (Extension, error)

// EventListener handles a delivered event.
type EventListener func(e *Event)

// ResponseListener receives the outcome of a response-event registration:
// exactly one of OnResponse or OnFailure is invoked, except that a callback
// already handed to the worker pool when the hub shuts down may be dropped.
type ResponseListener interface {
	// OnResponse is invoked with the paired response event.
	OnResponse(e *Event)

	// OnFailure is invoked with ErrCallbackTimeout when the deadline
	// expires, or ErrHubShutdown when the hub shuts down first.
	OnFailure(err error)
}

// ResponseFunc adapts a pair of functions to the ResponseListener interface.
type ResponseFunc struct {
	Response func(e *Event)
	Failure  func(err error)
}

// OnResponse implements ResponseListener.
func (f ResponseFunc) OnResponse(e *Event) {
	if f.Response != nil {
		f.Response(e)
	}
}

// OnFailure implements ResponseListener.
func (f ResponseFunc) OnFailure(err error) {
	if f.Failure != nil {
		f.Failure(err)
	}
}

// PendingResolver converts a pending shared-state snapshot to set. The
// first call wins; later calls are ignored.
type PendingResolver func(data map[string]any)

// ExtensionAPI is the surface an extension uses for all interaction with
// the hub. An implementation is injected at construction; tests substitute
// a fake.
type ExtensionAPI interface {
	// RegisterEventListener adds a listener for events matching the type and
	// source, either of which may be Wildcard. Matching is case-insensitive.
	// Registering the same (type, source, listener) triple twice is a no-op.
	RegisterEventListener(eventType, eventSource string, listener EventListener)

	// Dispatch enqueues an event into the hub's global ingress.
	Dispatch(e *Event)

	// StartEvents resumes inbox delivery after StopEvents.
	StartEvents()

	// StopEvents pauses inbox delivery. Events keep accumulating in order.
	StopEvents()

	// CreateSharedState publishes a set snapshot versioned at the event, or
	// at a hub-chosen version when e is nil. Misuse is logged and ignored.
	CreateSharedState(kind StateKind, state map[string]any, e *Event)

	// CreatePendingSharedState reserves a pending snapshot and returns its
	// one-shot resolver. Returns nil if the reservation failed.
	CreatePendingSharedState(kind StateKind, e *Event) PendingResolver

	// GetSharedState reads another extension's shared state relative to an
	// event. Returns nil if the named extension is not registered. With
	// barrier set, a set result is downgraded to pending until the owner has
	// processed past all events strictly before e.
	GetSharedState(kind StateKind, extensionName string, e *Event, barrier bool, resolution SharedStateResolution) *SharedStateResult

	// UnregisterExtension requests deregistration of the calling extension.
	UnregisterExtension()

	// GetHistoricalEvents queries the event-history index. The handler
	// receives the match count, or -1 on failure, on the history writer;
	// with no history store configured it receives -1 immediately on the
	// calling goroutine.
	GetHistoricalEvents(requests []history.Request, enforceOrder bool, handler func(count int))
}
