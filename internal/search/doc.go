// Package search maintains the full-text index as an eventually-consistent
// projection of the relational store.
//
// One bleve index holds four document types (book, series, collection,
// readlist). The relational store is the source of truth: the index can
// always be rebuilt from it, and converges to it by consuming the domain
// event stream in publish order.
package search
