// Package events implements the in-process domain event bus.
//
// Events are published by the scanning and metadata services whenever an
// entity changes and are consumed by the search index lifecycle (and by
// anything else that registers a handler). Delivery runs on a single
// dispatcher goroutine, so every handler observes events in publish order;
// consumers may rely on per-entity causal ordering of Added/Updated/Deleted.
package events
