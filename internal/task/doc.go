// Package task implements the background work engine: the task data model,
// the durable priority queue contract, the emitter that turns domain
// intents into tasks, the bounded-pool processor, and the handler that
// executes tasks and chains follow-up work.
package task
