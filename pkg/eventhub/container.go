package eventhub

import (
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
)

// runState is an extension container's lifecycle state.
type runState int32

const (
	stateInitializing runState = iota
	stateRunning
	statePaused
	stateShutdown
)

// queuedEvent pairs an event with the number the hub assigned at dispatch.
type queuedEvent struct {
	event  *Event
	number int64
}

// listenerEntry is one registered listener with its match tags.
type listenerEntry struct {
	eventType   string
	eventSource string
	listener    EventListener
}

// matches applies the listener match rule: type and source each match by
// case-insensitive equality, or by the literal wildcard.
func (l listenerEntry) matches(e *Event) bool {
	return (l.eventType == Wildcard || strings.EqualFold(l.eventType, e.Type())) &&
		(l.eventSource == Wildcard || strings.EqualFold(l.eventSource, e.Source()))
}

// extensionContainer owns the single-writer queue for one extension and
// enforces its delivery contract: events are consumed strictly in hub
// order, one at a time, gated by the extension's readiness. All extension
// callbacks run on the container's goroutine.
type extensionContainer struct {
	hub *EventHub
	ext Extension

	sharedName string

	inbox *fifo[queuedEvent]

	mu        sync.Mutex
	listeners []listenerEntry

	state         atomic.Int32
	lastProcessed atomic.Int64

	standard *SharedStateManager
	xdm      *SharedStateManager

	// resume is signaled by StartEvents so a paused drain loop re-attempts
	// without waiting for new stimulus.
	resume chan struct{}
	stop   chan struct{}
	done   chan struct{}

	retryInterval time.Duration
	logger        *slog.Logger
	once          sync.Once
}

func newExtensionContainer(hub *EventHub, ext Extension, retryInterval time.Duration) *extensionContainer {
	name := ext.Name()
	c := &extensionContainer{
		hub:           hub,
		ext:           ext,
		sharedName:    name,
		inbox:         newFIFO[queuedEvent](),
		standard:      NewSharedStateManager(name),
		xdm:           NewSharedStateManager(name),
		resume:        make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		retryInterval: retryInterval,
		logger:        observability.EnrichLogger(hub.logger, name),
	}
	c.state.Store(int32(stateInitializing))
	return c
}

// manager returns the shared-state manager for the kind.
func (c *extensionContainer) manager(kind StateKind) *SharedStateManager {
	if kind == StateKindXDM {
		return c.xdm
	}
	return c.standard
}

// start transitions to RUNNING and begins draining on a new goroutine.
// OnRegistered runs on that goroutine before the first delivery.
func (c *extensionContainer) start() {
	c.state.Store(int32(stateRunning))
	go c.run()
}

func (c *extensionContainer) run() {
	defer close(c.done)

	c.invoke("registered", func() { c.ext.OnRegistered() })
	observability.LogExtensionRegistered(c.logger)

	// A not-ready head is re-attempted on any new stimulus and, as a
	// backstop, on the retry ticker.
	ticker := time.NewTicker(c.retryInterval)
	defer ticker.Stop()

	for {
		c.drain()
		select {
		case <-c.inbox.wakeCh():
		case <-c.resume:
		case <-ticker.C:
		case <-c.stop:
			c.drain()
			c.state.Store(int32(stateShutdown))
			c.invoke("unregistered", func() { c.ext.OnUnregistered() })
			observability.LogExtensionUnregistered(c.logger)
			return
		}
	}
}

// drain delivers queued events in order until the inbox empties, the head
// is deferred by readiness, or delivery pauses. The head is never dropped
// or reordered.
func (c *extensionContainer) drain() {
	for {
		if runState(c.state.Load()) == statePaused {
			return
		}
		head, ok := c.inbox.peek()
		if !ok {
			return
		}
		if !c.invokeReady(head.event) {
			return
		}
		c.inbox.pop()
		c.deliver(head)
	}
}

// deliver runs every matching listener for the event, then commits it.
func (c *extensionContainer) deliver(qe queuedEvent) {
	c.mu.Lock()
	entries := make([]listenerEntry, len(c.listeners))
	copy(entries, c.listeners)
	c.mu.Unlock()

	start := time.Now()
	for _, entry := range entries {
		if !entry.matches(qe.event) {
			continue
		}
		c.invoke("listener", func() { entry.listener(qe.event) })
	}
	c.lastProcessed.Store(qe.number)
	c.hub.metrics.RecordDelivery(c.hub.ctx, c.sharedName, time.Since(start))
}

// invokeReady consults ReadyForEvent, treating a panic as not-ready.
func (c *extensionContainer) invokeReady(e *Event) bool {
	ready := false
	c.invoke("readyForEvent", func() { ready = c.ext.ReadyForEvent(e) })
	return ready
}

// invoke runs an extension callback, recovering and logging a panic so it
// never escapes the container's writer loop.
func (c *extensionContainer) invoke(stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			observability.LogCallbackPanic(c.logger, stage, r)
		}
	}()
	fn()
}

// enqueue appends a numbered event to the inbox.
func (c *extensionContainer) enqueue(qe queuedEvent) {
	c.inbox.put(qe)
	c.hub.metrics.RecordInboxDepth(c.hub.ctx, c.sharedName, int64(c.inbox.len()))
}

// registerListener adds a listener, ignoring an exact duplicate triple.
func (c *extensionContainer) registerListener(eventType, eventSource string, listener EventListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn := reflect.ValueOf(listener).Pointer()
	for _, entry := range c.listeners {
		if entry.eventType == eventType && entry.eventSource == eventSource &&
			reflect.ValueOf(entry.listener).Pointer() == fn {
			return
		}
	}
	c.listeners = append(c.listeners, listenerEntry{
		eventType:   eventType,
		eventSource: eventSource,
		listener:    listener,
	})
}

// pause stops delivery. Events continue to accumulate in the inbox.
func (c *extensionContainer) pause() {
	c.state.CompareAndSwap(int32(stateRunning), int32(statePaused))
}

// unpause resumes delivery and wakes the drain loop.
func (c *extensionContainer) unpause() {
	if c.state.CompareAndSwap(int32(statePaused), int32(stateRunning)) {
		select {
		case c.resume <- struct{}{}:
		default:
		}
	}
}

// shutdown asks the drain loop to finish: it delivers whatever is queued
// and ready, invokes OnUnregistered, and exits. Safe to call repeatedly.
func (c *extensionContainer) shutdown() {
	c.once.Do(func() {
		// A paused container would never drain; lift the pause first.
		c.state.Store(int32(stateRunning))
		close(c.stop)
	})
}

// awaitShutdown blocks until the drain loop has exited.
func (c *extensionContainer) awaitShutdown() {
	<-c.done
}
