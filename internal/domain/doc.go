// Package domain defines the core library entities: libraries, series,
// books with their media and metadata, collections and read lists.
package domain
