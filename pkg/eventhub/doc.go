/*
Package eventhub provides an in-process event-dispatch and shared-state
coordination core for a modular SDK.

# Overview

eventhub accepts events from public APIs and from registered extensions,
assigns each a monotonically increasing event number, runs a preprocessing
pipeline, and fans events out to each extension's private serial inbox. It
also mediates shared state: versioned snapshots that extensions publish and
that other extensions query against a specific event.

The core guarantees:
  - Global event ordering across concurrent producers
  - Per-extension serial delivery with independent pause/resume
  - Versioned shared-state semantics tied to event numbers, including
    pending snapshots resolved asynchronously and barrier reads
  - Response-event correlation with per-request timeouts
  - A readiness protocol that lets an extension defer an event without
    losing ordering

# Basic Usage

Construct a hub, register extensions, and start it:

	hub := eventhub.NewEventHub()
	hub.RegisterExtensions([]eventhub.ExtensionFactory{newMyExtension}, func(err error) {
	    if err != nil {
	        log.Fatal(err)
	    }
	})

	hub.Dispatch(eventhub.New("com.example.eventType.demo", "com.example.eventSource.request", map[string]any{
	    "greeting": "hello",
	}))

An extension receives an ExtensionAPI at construction and uses it for all
interaction with the hub: listener registration, dispatch, shared state,
and deregistration.

# Concurrency Model

The hub is organized as cooperating single-writer domains. Registry
mutation, shared-state writes, and lifecycle run on the hub writer; the
preprocessor pipeline and fan-out run on the dispatcher writer; each
extension drains its own inbox on its own goroutine; response handlers run
on a bounded worker pool. Cross-domain communication is via ordered
unbounded queues, so dispatch never blocks and inboxes never drop or
reorder events.
*/
package eventhub
