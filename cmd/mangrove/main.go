// Package main implements the entry point for the mangrove media server
// which scans comic and ebook libraries, runs the background task engine
// and serves the search index.
package main

import (
	"context"
	"log"
)

// main is the entry point for the mangrove server.
// It initializes configuration, sets up logging, opens the storage
// backend and the search index, wires the task engine, and starts the
// HTTP server.
func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.run(context.Background()); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}
