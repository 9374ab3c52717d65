package eventhub

import (
	"log/slog"

	"github.com/randalmurphal/eventhub/pkg/eventhub/history"
)

// extensionAPI is the concrete ExtensionAPI handed to an extension at
// construction. It forwards to the hub by container identity, never by
// holding the hub's live registry. The container field is bound after the
// extension's constructor returns, so calls that act on the container
// (listener registration, start/stop, shared-state writes, unregistration)
// made from inside the constructor are logged and dropped.
type extensionAPI struct {
	hub       *EventHub
	container *extensionContainer
}

// Compile-time interface check.
var _ ExtensionAPI = (*extensionAPI)(nil)

// initialized reports whether the owning container is bound yet.
func (a *extensionAPI) initialized(op string) bool {
	if a.container != nil {
		return true
	}
	if a.hub.logger != nil {
		a.hub.logger.Warn("extension api call before initialization ignored",
			slog.String("operation", op),
		)
	}
	return false
}

// RegisterEventListener implements ExtensionAPI.
func (a *extensionAPI) RegisterEventListener(eventType, eventSource string, listener EventListener) {
	if listener == nil || !a.initialized("registerEventListener") {
		return
	}
	a.container.registerListener(eventType, eventSource, listener)
}

// Dispatch implements ExtensionAPI.
func (a *extensionAPI) Dispatch(e *Event) {
	a.hub.Dispatch(e)
}

// StartEvents implements ExtensionAPI.
func (a *extensionAPI) StartEvents() {
	if !a.initialized("startEvents") {
		return
	}
	a.container.unpause()
}

// StopEvents implements ExtensionAPI.
func (a *extensionAPI) StopEvents() {
	if !a.initialized("stopEvents") {
		return
	}
	a.container.pause()
}

// CreateSharedState implements ExtensionAPI.
func (a *extensionAPI) CreateSharedState(kind StateKind, state map[string]any, e *Event) {
	if !a.initialized("createSharedState") {
		return
	}
	a.hub.createSharedState(a.container, kind, state, e)
}

// CreatePendingSharedState implements ExtensionAPI.
func (a *extensionAPI) CreatePendingSharedState(kind StateKind, e *Event) PendingResolver {
	if !a.initialized("createPendingSharedState") {
		return nil
	}
	return a.hub.createPendingSharedState(a.container, kind, e)
}

// GetSharedState implements ExtensionAPI.
func (a *extensionAPI) GetSharedState(kind StateKind, extensionName string, e *Event, barrier bool, resolution SharedStateResolution) *SharedStateResult {
	return a.hub.getSharedState(kind, extensionName, e, barrier, resolution)
}

// UnregisterExtension implements ExtensionAPI.
func (a *extensionAPI) UnregisterExtension() {
	if !a.initialized("unregisterExtension") {
		return
	}
	a.hub.UnregisterExtension(a.container.sharedName, nil)
}

// GetHistoricalEvents implements ExtensionAPI.
func (a *extensionAPI) GetHistoricalEvents(requests []history.Request, enforceOrder bool, handler func(count int)) {
	a.hub.getHistoricalEvents(requests, enforceOrder, handler)
}
