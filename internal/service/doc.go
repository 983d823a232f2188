// Package service implements the domain operations the task pipeline
// drives: scanning library roots, analyzing book archives, refreshing
// metadata and watching the filesystem for changes.
package service
