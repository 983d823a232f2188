// Package memory provides in-process implementations of the repository
// interfaces in internal/store. They back the "memory" storage mode and
// the test suites that need repositories without a database.
package memory
