package eventhub

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced through registration callbacks.
var (
	// ErrInvalidExtensionName indicates an extension reported an empty or
	// blank canonical name.
	ErrInvalidExtensionName = errors.New("invalid extension name")

	// ErrDuplicateExtensionName indicates an extension with the same
	// canonical name is already registered.
	ErrDuplicateExtensionName = errors.New("duplicate extension name")

	// ErrExtensionInitialization indicates the extension's constructor failed.
	ErrExtensionInitialization = errors.New("extension initialization failure")

	// ErrExtensionNotRegistered indicates the named extension is not known
	// to the hub.
	ErrExtensionNotRegistered = errors.New("extension not registered")

	// ErrUnknown covers failures with no more specific classification.
	ErrUnknown = errors.New("unknown error")
)

// Sentinel errors for response listeners.
var (
	// ErrCallbackTimeout indicates no response event arrived before the
	// listener's deadline.
	ErrCallbackTimeout = errors.New("callback timeout")

	// ErrHubShutdown indicates the hub shut down while the listener was
	// still waiting.
	ErrHubShutdown = errors.New("event hub shut down")
)

// EventError wraps a failure tied to a specific event, e.g. a preprocessor
// panic or a listener that blew up.
type EventError struct {
	Event   *Event // the event being processed
	Stage   string // "preprocess", "listener", "response", "history"
	Message string
	Err     error
}

// Error implements the error interface.
func (e *EventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("event %s: %s: %v", e.Event.ID(), e.Message, e.Err)
	}
	return fmt.Sprintf("event %s: %s", e.Event.ID(), e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EventError) Unwrap() error {
	return e.Err
}
