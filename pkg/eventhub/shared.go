package eventhub

import "sync"

// The process-wide hub used by the legacy API surface. New code should
// construct hubs explicitly with NewEventHub; hub tests construct fresh
// instances, and only the accessor's own test touches this.
var (
	sharedMu  sync.Mutex
	sharedHub *EventHub
)

// Shared returns the process-wide hub, constructing it with defaults on
// first use.
func Shared() *EventHub {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedHub == nil {
		sharedHub = NewEventHub()
	}
	return sharedHub
}

// SetShared replaces the process-wide hub. The previous hub, if any, is
// not shut down; the caller owns both lifecycles.
func SetShared(h *EventHub) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	sharedHub = h
}
