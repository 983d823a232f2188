// Package store defines the persistence interfaces for the library domain
// and the shared error taxonomy used by all implementations.
//
// Implementations live in internal/platform/postgres (durable) and in
// internal/store/memory (in-process, used by tests and by the memory
// storage mode).
package store
