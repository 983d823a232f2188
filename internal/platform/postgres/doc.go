// Package postgres provides PostgreSQL implementations of the store
// interfaces and the durable task queue. All stores accept a store.DBTX
// so they work over a plain connection or a transaction.
package postgres
