package eventhub

import (
	"log/slog"
	"sync"
	"time"
)

// responseEntry tracks one registered response listener and its deadline.
type responseEntry struct {
	listener ResponseListener
	timer    *time.Timer
}

// completionHandler correlates response events to their triggers. Arrival
// of an event whose responseID matches a registered trigger cancels the
// deadline and hands the listener to the worker pool; expiry of the
// deadline fails the listener exactly once. The table guarantees that for
// any entry at most one of OnResponse or OnFailure runs, and exactly one
// unless the hub shuts down while that callback is still waiting for the
// worker pool, in which case it is dropped.
type completionHandler struct {
	mu      sync.Mutex
	entries map[string]*responseEntry
	pool    *workerPool
	logger  *slog.Logger
	closed  bool

	// outcome, when set, observes each completed listener.
	outcome func(timedOut bool)
}

func newCompletionHandler(workers int, logger *slog.Logger) *completionHandler {
	return &completionHandler{
		entries: make(map[string]*responseEntry),
		pool:    newWorkerPool(workers),
		logger:  logger,
	}
}

// register adds a listener keyed by the trigger event's unique identifier,
// with a deadline after which the listener fails with ErrCallbackTimeout.
func (c *completionHandler) register(triggerID string, timeout time.Duration, listener ResponseListener) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.invoke(func() { listener.OnFailure(ErrHubShutdown) })
		return
	}
	entry := &responseEntry{listener: listener}
	entry.timer = time.AfterFunc(timeout, func() {
		c.expire(triggerID)
	})
	c.entries[triggerID] = entry
	c.mu.Unlock()
}

// respond routes a response event to its listener, cancelling the deadline.
// Returns true if a listener was registered for the event's responseID.
func (c *completionHandler) respond(e *Event) bool {
	c.mu.Lock()
	entry, ok := c.entries[e.ResponseID()]
	if ok {
		delete(c.entries, e.ResponseID())
		entry.timer.Stop()
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.pool.submit(func() {
		c.invoke(func() { entry.listener.OnResponse(e) })
	})
	if c.outcome != nil {
		c.outcome(false)
	}
	return true
}

// expire fails the listener for triggerID unless a response won the race.
func (c *completionHandler) expire(triggerID string) {
	c.mu.Lock()
	entry, ok := c.entries[triggerID]
	if ok {
		delete(c.entries, triggerID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	c.pool.submit(func() {
		c.invoke(func() { entry.listener.OnFailure(ErrCallbackTimeout) })
	})
	if c.outcome != nil {
		c.outcome(true)
	}
}

// shutdown cancels all outstanding deadlines and fails their listeners
// with ErrHubShutdown, then stops the worker pool.
func (c *completionHandler) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := make([]*responseEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		entry.timer.Stop()
		pending = append(pending, entry)
	}
	c.entries = nil
	c.mu.Unlock()

	for _, entry := range pending {
		listener := entry.listener
		c.invoke(func() { listener.OnFailure(ErrHubShutdown) })
	}
	c.pool.shutdown()
}

// invoke runs a listener callback, recovering and logging a panic so it
// never reaches a writer loop.
func (c *completionHandler) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil && c.logger != nil {
			c.logger.Error("response listener panicked",
				slog.Any("panic", r),
			)
		}
	}()
	fn()
}
