package eventhub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/eventhub/pkg/eventhub/config"
	"github.com/randalmurphal/eventhub/pkg/eventhub/history"
	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
)

// Version is the hub's own version, published in its shared state.
const Version = "1.0.0"

// HubSharedStateName is the canonical name of the hub's own shared state,
// carrying the registered-extension inventory and the wrapper tag.
const HubSharedStateName = "com.adobe.module.eventhub"

// Preprocessor is a pure transformation applied to every event before
// fan-out, in registration order. Returning nil discards the event for
// downstream delivery; its number is still consumed.
type Preprocessor func(e *Event) *Event

// EventHub is the event-dispatch and shared-state coordination core.
// Construct with NewEventHub, register extensions, then Start. All methods
// are safe for concurrent use.
type EventHub struct {
	ctx     context.Context
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	// Event numbering. The id -> number mapping is authoritative for
	// ordering all shared-state reads and writes.
	numMu           sync.Mutex
	lastEventNumber int64
	eventNumbers    map[string]int64

	// hub writer: registry mutation, shared-state access, lifecycle.
	hubQueue *serialExecutor

	// dispatcher writer: preprocessor pipeline and fan-out.
	dispatchQueue  *fifo[queuedEvent]
	dispatcherStop chan struct{}
	dispatcherDone chan struct{}

	preMu         sync.Mutex
	preprocessors []Preprocessor

	regMu    sync.RWMutex
	registry map[string]*extensionContainer

	// placeholder hosts hub-wide listeners and the hub's own shared state.
	placeholder *extensionContainer

	completion *completionHandler

	historyStore history.Store
	historyQueue *serialExecutor
	ownsHistory  bool

	wrapper WrapperType
	started atomic.Bool
	stopped atomic.Bool

	retryInterval     time.Duration
	completionWorkers int
}

// Option configures hub construction.
type Option func(*EventHub)

// WithLogger sets the structured logger. Default: silent.
func WithLogger(logger *slog.Logger) Option {
	return func(h *EventHub) {
		h.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(h *EventHub) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithSpanManager sets the tracing span manager. Default: no-op.
func WithSpanManager(s observability.SpanManager) Option {
	return func(h *EventHub) {
		if s != nil {
			h.spans = s
		}
	}
}

// WithHistoryStore attaches an event-history index. The caller retains
// ownership and closes the store after hub shutdown.
func WithHistoryStore(store history.Store) Option {
	return func(h *EventHub) {
		h.historyStore = store
	}
}

// WithCompletionWorkers sets the response-listener worker pool size.
// Default: 4.
func WithCompletionWorkers(n int) Option {
	return func(h *EventHub) {
		if n > 0 {
			h.completionWorkers = n
		}
	}
}

// WithReadinessRetryInterval sets how often a not-ready inbox head is
// re-attempted absent other stimulus. Default: 100ms.
func WithReadinessRetryInterval(d time.Duration) Option {
	return func(h *EventHub) {
		if d > 0 {
			h.retryInterval = d
		}
	}
}

// WithWrapperType sets the wrapper tag at construction.
func WithWrapperType(w WrapperType) Option {
	return func(h *EventHub) {
		h.wrapper = w
	}
}

// NewEventHub creates a hub. The hub accepts Dispatch immediately, but
// events are not preprocessed or fanned out until Start.
func NewEventHub(opts ...Option) *EventHub {
	h := &EventHub{
		ctx:               context.Background(),
		metrics:           observability.NoopMetrics{},
		spans:             observability.NoopSpanManager{},
		eventNumbers:      make(map[string]int64),
		dispatchQueue:     newFIFO[queuedEvent](),
		dispatcherStop:    make(chan struct{}),
		dispatcherDone:    make(chan struct{}),
		registry:          make(map[string]*extensionContainer),
		wrapper:           WrapperNone,
		retryInterval:     100 * time.Millisecond,
		completionWorkers: 4,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.hubQueue = newSerialExecutor()
	h.completion = newCompletionHandler(h.completionWorkers, h.logger)
	h.completion.outcome = func(timedOut bool) {
		h.metrics.RecordResponseOutcome(h.ctx, timedOut)
	}
	if h.historyStore != nil {
		h.historyQueue = newSerialExecutor()
	}

	h.placeholder = newExtensionContainer(h, placeholderExtension{}, h.retryInterval)
	h.registry[HubSharedStateName] = h.placeholder
	h.placeholder.start()

	return h
}

// NewEventHubFromConfig builds a hub from a decoded configuration,
// opening the SQLite history index when a path is configured. The hub owns
// a store it opened and closes it at Shutdown.
func NewEventHubFromConfig(cfg config.Hub, opts ...Option) (*EventHub, error) {
	base := []Option{
		WithWrapperType(ParseWrapperType(cfg.Wrapper)),
		WithCompletionWorkers(cfg.CompletionWorkers),
		WithReadinessRetryInterval(cfg.ReadinessRetryInterval),
	}
	ownsHistory := false
	if cfg.HistoryPath != "" {
		store, err := history.NewSQLiteStore(cfg.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		base = append(base, WithHistoryStore(store))
		ownsHistory = true
	}
	h := NewEventHub(append(base, opts...)...)
	h.ownsHistory = ownsHistory
	return h, nil
}

// Dispatch enqueues an event into the hub's global ingress: the event is
// assigned the next event number and queued for preprocessing and fan-out.
// Fire-and-forget; a nil event or a shut-down hub drops the call with a log.
func (h *EventHub) Dispatch(e *Event) {
	if e == nil {
		if h.logger != nil {
			h.logger.Warn("dispatch of nil event ignored")
		}
		return
	}
	if h.stopped.Load() {
		if h.logger != nil {
			h.logger.Warn("dispatch after shutdown ignored", slog.String("event_id", e.ID()))
		}
		return
	}

	h.numMu.Lock()
	n, ok := h.eventNumbers[e.ID()]
	if !ok {
		h.lastEventNumber++
		n = h.lastEventNumber
		h.eventNumbers[e.ID()] = n
	}
	h.numMu.Unlock()

	h.dispatchQueue.put(queuedEvent{event: e, number: n})
	h.metrics.RecordDispatch(h.ctx, e.Type())
	observability.LogEventDispatched(h.logger, e.ID(), e.Type(), e.Source(), n)
}

// eventNumber returns the number assigned to the event at dispatch.
func (h *EventHub) eventNumber(e *Event) (int64, bool) {
	h.numMu.Lock()
	defer h.numMu.Unlock()
	n, ok := h.eventNumbers[e.ID()]
	return n, ok
}

// nextEventNumber consumes a fresh logical tick, used to version shared
// states published without a reference event.
func (h *EventHub) nextEventNumber() int64 {
	h.numMu.Lock()
	defer h.numMu.Unlock()
	h.lastEventNumber++
	return h.lastEventNumber
}

// LastEventNumber returns the most recently assigned event number.
func (h *EventHub) LastEventNumber() int64 {
	h.numMu.Lock()
	defer h.numMu.Unlock()
	return h.lastEventNumber
}

// RegisterPreprocessor appends a transformation to the preprocessor
// pipeline. Preprocessors run in registration order on the dispatcher.
func (h *EventHub) RegisterPreprocessor(p Preprocessor) {
	if p == nil {
		return
	}
	h.preMu.Lock()
	h.preprocessors = append(h.preprocessors, p)
	h.preMu.Unlock()
}

// RegisterListener adds a hub-wide listener, hosted on the hub's
// placeholder container. Either tag may be Wildcard.
func (h *EventHub) RegisterListener(eventType, eventSource string, listener EventListener) {
	if listener == nil {
		return
	}
	h.placeholder.registerListener(eventType, eventSource, listener)
}

// RegisterResponseListener pairs a listener with a trigger event: the
// listener receives the first event whose responseID matches the trigger's
// unique identifier, or fails with ErrCallbackTimeout after the timeout.
// Register before dispatching the trigger to avoid racing the response.
func (h *EventHub) RegisterResponseListener(trigger *Event, timeout time.Duration, listener ResponseListener) {
	if trigger == nil || listener == nil {
		return
	}
	h.completion.register(trigger.ID(), timeout, listener)
}

// RegisterExtension constructs and registers an extension. The callback
// receives nil on success or one of the registration errors; it runs on
// the hub writer, except for a nil factory or a shut-down hub, where it
// runs on the calling goroutine.
func (h *EventHub) RegisterExtension(factory ExtensionFactory, cb func(error)) {
	if cb == nil {
		cb = func(error) {}
	}
	if factory == nil {
		cb(ErrExtensionInitialization)
		return
	}
	if !h.hubQueue.submit(func() { h.doRegister(factory, cb) }) {
		cb(ErrUnknown)
	}
}

// doRegister runs on the hub writer.
func (h *EventHub) doRegister(factory ExtensionFactory, cb func(error)) {
	api := &extensionAPI{hub: h}
	ext, err := constructExtension(factory, api)
	if err != nil || ext == nil {
		cb(ErrExtensionInitialization)
		return
	}

	name := strings.TrimSpace(ext.Name())
	if name == "" {
		cb(ErrInvalidExtensionName)
		return
	}
	if _, dup := h.registry[name]; dup {
		cb(ErrDuplicateExtensionName)
		return
	}

	c := newExtensionContainer(h, ext, h.retryInterval)
	api.container = c

	h.regMu.Lock()
	h.registry[name] = c
	h.regMu.Unlock()

	c.start()
	h.shareHubState()
	cb(nil)
}

// constructExtension invokes the factory, converting a panic into an error.
func constructExtension(factory ExtensionFactory, api ExtensionAPI) (ext Extension, err error) {
	defer func() {
		if r := recover(); r != nil {
			ext, err = nil, fmt.Errorf("extension constructor panicked: %v", r)
		}
	}()
	return factory(api)
}

// RegisterExtensions registers a set of extensions, starts the hub once
// the last registration completes, then invokes cb with the first
// registration error, or nil.
func (h *EventHub) RegisterExtensions(factories []ExtensionFactory, cb func(error)) {
	if len(factories) == 0 {
		h.Start()
		if cb != nil {
			cb(nil)
		}
		return
	}

	var mu sync.Mutex
	var firstErr error
	remaining := len(factories)

	for _, factory := range factories {
		h.RegisterExtension(factory, func(err error) {
			mu.Lock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			remaining--
			last := remaining == 0
			mu.Unlock()

			if last {
				h.Start()
				if cb != nil {
					cb(firstErr)
				}
			}
		})
	}
}

// UnregisterExtension deregisters the named extension: its container
// drains gracefully and its shared states are dropped from the registry.
// The callback receives ErrExtensionNotRegistered if the name is unknown.
func (h *EventHub) UnregisterExtension(name string, cb func(error)) {
	if cb == nil {
		cb = func(error) {}
	}
	if !h.hubQueue.submit(func() {
		c, ok := h.registry[name]
		if !ok || name == HubSharedStateName {
			cb(ErrExtensionNotRegistered)
			return
		}
		h.regMu.Lock()
		delete(h.registry, name)
		h.regMu.Unlock()
		c.shutdown()
		h.shareHubState()
		cb(nil)
	}) {
		cb(ErrUnknown)
	}
}

// Start begins draining the preprocessor queue and publishes the hub's
// shared state. Events dispatched before Start are preserved in order.
func (h *EventHub) Start() {
	if !h.started.CompareAndSwap(false, true) {
		return
	}
	go h.runDispatcher()
	h.hubQueue.submit(func() { h.shareHubState() })
	h.Dispatch(New(EventTypeHub, EventSourceBooted, nil))
}

// SetWrapperType tags the wrapper framework. Settable only before Start;
// later attempts are logged and ignored.
func (h *EventHub) SetWrapperType(w WrapperType) {
	h.hubQueue.submitAndWait(func() {
		if h.started.Load() {
			if h.logger != nil {
				h.logger.Warn("wrapper type change after start ignored",
					slog.String("wrapper", string(w)),
				)
			}
			return
		}
		h.wrapper = w
	})
}

// Wrapper returns the current wrapper tag.
func (h *EventHub) Wrapper() WrapperType {
	var w WrapperType
	h.hubQueue.submitAndWait(func() { w = h.wrapper })
	return w
}

// Shutdown stops accepting events, shuts down every container, and fails
// outstanding response listeners with ErrHubShutdown. Blocks until all
// writer domains have exited.
func (h *EventHub) Shutdown() {
	if !h.stopped.CompareAndSwap(false, true) {
		return
	}

	if h.started.Load() {
		close(h.dispatcherStop)
		<-h.dispatcherDone
	}
	h.dispatchQueue.close()

	h.regMu.Lock()
	containers := make([]*extensionContainer, 0, len(h.registry))
	for _, c := range h.registry {
		containers = append(containers, c)
	}
	h.registry = make(map[string]*extensionContainer)
	h.regMu.Unlock()

	for _, c := range containers {
		c.shutdown()
	}
	// Containers may still issue shared-state reads while draining; the hub
	// writer must outlive them.
	for _, c := range containers {
		c.awaitShutdown()
	}

	h.completion.shutdown()

	if h.historyQueue != nil {
		h.historyQueue.shutdown()
	}
	if h.ownsHistory && h.historyStore != nil {
		h.historyStore.Close()
	}

	h.hubQueue.shutdown()
}

// runDispatcher is the dispatcher writer: it drains the preprocessor
// queue, applies the pipeline, routes responses, fans out, and records
// event history.
func (h *EventHub) runDispatcher() {
	defer close(h.dispatcherDone)
	for {
		for {
			qe, ok := h.dispatchQueue.pop()
			if !ok {
				break
			}
			h.processEvent(qe)
		}
		select {
		case <-h.dispatchQueue.wakeCh():
		case <-h.dispatcherStop:
			return
		}
	}
}

func (h *EventHub) processEvent(qe queuedEvent) {
	ctx, span := h.spans.StartDispatchSpan(h.ctx, qe.event.Type(), qe.event.ID())

	e, err := h.preprocess(qe.event)
	if err != nil {
		// The event keeps its number; only fan-out is skipped.
		observability.LogEventDiscarded(h.logger, qe.event.ID(), err)
		h.spans.EndSpanWithError(span, err)
		return
	}

	if e.ResponseID() != "" {
		h.completion.respond(e)
	}

	h.regMu.RLock()
	targets := make([]*extensionContainer, 0, len(h.registry))
	for _, c := range h.registry {
		targets = append(targets, c)
	}
	h.regMu.RUnlock()
	for _, c := range targets {
		c.enqueue(queuedEvent{event: e, number: qe.number})
	}
	h.spans.AddSpanEvent(ctx, "fan-out complete")

	if e.Mask() != nil && h.historyQueue != nil {
		h.recordHistory(e)
	}

	h.spans.EndSpanWithError(span, nil)
}

// preprocess runs the pipeline in registration order, converting a panic
// or a nil result into an error that discards the event.
func (h *EventHub) preprocess(e *Event) (out *Event, err error) {
	h.preMu.Lock()
	pipeline := make([]Preprocessor, len(h.preprocessors))
	copy(pipeline, h.preprocessors)
	h.preMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &EventError{Event: e, Stage: "preprocess", Message: "preprocessor panicked", Err: fmt.Errorf("%v", r)}
		}
	}()

	out = e
	for _, p := range pipeline {
		out = p(out)
		if out == nil {
			return nil, &EventError{Event: e, Stage: "preprocess", Message: "preprocessor returned nil"}
		}
	}
	return out, nil
}

// recordHistory submits a fingerprint insert to the history writer.
// Fire-and-forget; failure is logged.
func (h *EventHub) recordHistory(e *Event) {
	hash := history.Fingerprint(e.Data(), e.Mask())
	ts := e.Timestamp()
	h.historyQueue.submit(func() {
		if err := h.historyStore.Record(hash, ts); err != nil {
			observability.LogHistoryError(h.logger, "record", err)
		}
	})
}

// getHistoricalEvents queries the history index on the history writer. The
// handler receives the match count, or -1 on failure.
func (h *EventHub) getHistoricalEvents(requests []history.Request, enforceOrder bool, handler func(int)) {
	if handler == nil {
		return
	}
	if h.historyQueue == nil {
		observability.LogHistoryError(h.logger, "query", fmt.Errorf("no history store configured"))
		handler(-1)
		return
	}
	h.historyQueue.submit(func() {
		n, err := h.historyStore.Query(requests, enforceOrder)
		if err != nil {
			observability.LogHistoryError(h.logger, "query", err)
			n = -1
		}
		handler(n)
	})
}

// versionForWrite picks the version for a shared-state write: the
// referenced event's number; otherwise a fresh tick when the manager
// already has snapshots; otherwise 0, the bootstrap version published
// before any event.
func (h *EventHub) versionForWrite(m *SharedStateManager, e *Event) int64 {
	if e != nil {
		if n, ok := h.eventNumber(e); ok {
			return n
		}
	}
	if !m.IsEmpty() {
		return h.nextEventNumber()
	}
	return 0
}

// createSharedState runs the write on the hub writer and, on success,
// dispatches the state-change notification.
func (h *EventHub) createSharedState(c *extensionContainer, kind StateKind, data map[string]any, e *Event) {
	h.hubQueue.submit(func() {
		m := c.manager(kind)
		version := h.versionForWrite(m, e)
		if !m.SetState(version, data) {
			observability.LogSharedStateRejected(h.logger, c.sharedName, kind.String(), version)
			return
		}
		observability.LogSharedStateCreated(h.logger, c.sharedName, kind.String(), version, false)
		h.metrics.RecordSharedStateWrite(h.ctx, c.sharedName, kind.String())
		h.dispatchStateChange(c.sharedName, kind)
	})
}

// createPendingSharedState reserves a pending snapshot and returns its
// one-shot resolver, or nil if the reservation was rejected.
func (h *EventHub) createPendingSharedState(c *extensionContainer, kind StateKind, e *Event) PendingResolver {
	var resolver PendingResolver
	h.hubQueue.submitAndWait(func() {
		m := c.manager(kind)
		version := h.versionForWrite(m, e)
		if !m.SetPendingState(version) {
			observability.LogSharedStateRejected(h.logger, c.sharedName, kind.String(), version)
			return
		}
		observability.LogSharedStateCreated(h.logger, c.sharedName, kind.String(), version, true)

		var once sync.Once
		resolver = func(data map[string]any) {
			once.Do(func() {
				h.hubQueue.submit(func() {
					if !m.UpdatePendingState(version, data) {
						observability.LogSharedStateRejected(h.logger, c.sharedName, kind.String(), version)
						return
					}
					h.metrics.RecordSharedStateWrite(h.ctx, c.sharedName, kind.String())
					h.dispatchStateChange(c.sharedName, kind)
				})
			})
		}
	})
	return resolver
}

// getSharedState resolves a read on the hub writer. Returns nil when the
// named extension is not registered, which is distinct from StateNone.
func (h *EventHub) getSharedState(kind StateKind, name string, e *Event, barrier bool, resolution SharedStateResolution) *SharedStateResult {
	var res *SharedStateResult
	h.hubQueue.submitAndWait(func() {
		owner, ok := h.registry[name]
		if !ok {
			return
		}

		v := VersionLatest
		if e != nil {
			if n, known := h.eventNumber(e); known {
				v = n
			}
		}

		m := owner.manager(kind)
		var r SharedStateResult
		if resolution == ResolutionLastSet {
			r = m.ResolveLastSet(v)
		} else {
			r = m.Resolve(v)
		}

		// Barrier rule: a set result only counts once the owner has
		// processed everything strictly before the reference event.
		if barrier && e != nil && r.Status == StateSet && owner.lastProcessed.Load() < v-1 {
			r = SharedStateResult{Status: StatePending, Value: r.Value}
		}
		res = &r
	})
	return res
}

// dispatchStateChange notifies extensions that a dependency's state has
// advanced, enabling re-evaluation of a previously deferred inbox head.
func (h *EventHub) dispatchStateChange(owner string, kind StateKind) {
	source := EventSourceSharedState
	if kind == StateKindXDM {
		source = EventSourceXDMSharedState
	}
	h.Dispatch(New(EventTypeHub, source, map[string]any{StateOwnerKey: owner}))
}

// shareHubState publishes the hub's own shared state: its version, the
// wrapper tag, and the registered-extension inventory. Runs on the hub
// writer; a no-op until the hub has started.
func (h *EventHub) shareHubState() {
	if !h.started.Load() {
		return
	}

	extensions := make(map[string]any)
	for name, c := range h.registry {
		if name == HubSharedStateName {
			continue
		}
		info := map[string]any{
			"friendlyName": friendlyNameOf(c.ext),
			"version":      c.ext.Version(),
		}
		if md := c.ext.Metadata(); len(md) > 0 {
			metadata := make(map[string]any, len(md))
			for k, v := range md {
				metadata[k] = v
			}
			info["metadata"] = metadata
		}
		extensions[name] = info
	}

	payload := map[string]any{
		"version": Version,
		"wrapper": map[string]any{
			"type":         string(h.wrapper),
			"friendlyName": h.wrapper.FriendlyName(),
		},
		"extensions": extensions,
	}

	m := h.placeholder.manager(StateKindStandard)
	version := int64(0)
	if !m.IsEmpty() {
		version = h.nextEventNumber()
	}
	if m.SetState(version, payload) {
		h.dispatchStateChange(HubSharedStateName, StateKindStandard)
	}
}

func friendlyNameOf(ext Extension) string {
	if fn := ext.FriendlyName(); fn != "" {
		return fn
	}
	return ext.Name()
}

// ParseWrapperType converts a configuration string to a WrapperType,
// accepting either the single-letter code or the friendly name.
// Unrecognized values map to WrapperNone.
func ParseWrapperType(s string) WrapperType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "react native", "react_native", "reactnative":
		return WrapperReactNative
	case "f", "flutter":
		return WrapperFlutter
	case "c", "cordova":
		return WrapperCordova
	case "u", "unity":
		return WrapperUnity
	case "x", "xamarin":
		return WrapperXamarin
	default:
		return WrapperNone
	}
}

// placeholderExtension backs the hub's placeholder container: it hosts
// hub-wide listeners and owns the hub's shared state.
type placeholderExtension struct{}

func (placeholderExtension) Name() string                { return HubSharedStateName }
func (placeholderExtension) FriendlyName() string        { return "EventHub" }
func (placeholderExtension) Version() string             { return Version }
func (placeholderExtension) Metadata() map[string]string { return nil }
func (placeholderExtension) OnRegistered()               {}
func (placeholderExtension) OnUnregistered()             {}
func (placeholderExtension) ReadyForEvent(*Event) bool   { return true }
