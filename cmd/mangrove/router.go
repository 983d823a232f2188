package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/events"
	"github.com/avellar/mangrove/internal/search"
	"github.com/avellar/mangrove/internal/task"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/libraries", app.handleCreateLibrary)
		r.Delete("/libraries/{id}", app.handleDeleteLibrary)
		r.Post("/libraries/{id}/scan", app.handleScanLibrary)

		r.Get("/search", app.handleSearch)
		r.Post("/index/rebuild", app.handleRebuildIndex)
		r.Get("/index/stats", app.handleIndexStats)

		r.Get("/tasks", app.handleTaskQueue)
		r.Get("/tasks/stats", app.handleTaskStats)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}

// writeJSON writes v as a JSON response body.
func (app *application) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.logger.Error("Failed to write response", "error", err)
	}
}

func (app *application) writeError(w http.ResponseWriter, status int, message string) {
	app.writeJSON(w, status, map[string]string{"error": message})
}

// handleCreateLibrary registers a library and schedules its first scan.
func (app *application) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
		Root string `json:"root"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		app.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	library, err := domain.NewLibrary(body.Name, body.Root)
	if err != nil {
		app.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := app.libraries.Save(r.Context(), library); err != nil {
		app.writeError(w, http.StatusInternalServerError, "failed to save library")
		return
	}
	app.bus.Publish(events.LibraryAdded{LibraryID: library.ID})

	if app.watcher != nil {
		if err := app.watcher.WatchLibrary(library.ID, library.Root); err != nil {
			app.logger.Warn("cannot watch new library root", "root", library.Root, "error", err)
		}
	}

	if err := app.emitter.ScanLibrary(r.Context(), library.ID, false, task.PriorityHighest); err != nil {
		app.writeError(w, http.StatusInternalServerError, "failed to schedule scan")
		return
	}
	app.writeJSON(w, http.StatusCreated, library)
}

// handleDeleteLibrary removes a library and everything under it.
func (app *application) handleDeleteLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, http.StatusBadRequest, "invalid library id")
		return
	}

	library, err := app.libraries.FindByID(r.Context(), id)
	if err != nil {
		app.writeError(w, http.StatusNotFound, "library not found")
		return
	}

	// Schedule deletes for the contents so the index converges, then
	// drop the library row itself.
	books, err := app.books.FindByLibraryID(r.Context(), id)
	if err != nil {
		app.writeError(w, http.StatusInternalServerError, "failed to load library books")
		return
	}
	for _, book := range books {
		if err := app.emitter.DeleteBook(r.Context(), book.ID, task.PriorityHigh); err != nil {
			app.writeError(w, http.StatusInternalServerError, "failed to schedule book deletes")
			return
		}
	}
	series, err := app.series.FindByLibraryID(r.Context(), id)
	if err != nil {
		app.writeError(w, http.StatusInternalServerError, "failed to load library series")
		return
	}
	for _, s := range series {
		if err := app.emitter.DeleteSeries(r.Context(), s.ID, task.PriorityHigh); err != nil {
			app.writeError(w, http.StatusInternalServerError, "failed to schedule series deletes")
			return
		}
	}

	if err := app.libraries.Delete(r.Context(), id); err != nil {
		app.writeError(w, http.StatusInternalServerError, "failed to delete library")
		return
	}
	app.bus.Publish(events.LibraryDeleted{LibraryID: id})

	if app.watcher != nil {
		app.watcher.UnwatchLibrary(library.Root)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleScanLibrary schedules a scan. The deep query parameter forces
// re-analysis of every book.
func (app *application) handleScanLibrary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, http.StatusBadRequest, "invalid library id")
		return
	}
	if _, err := app.libraries.FindByID(r.Context(), id); err != nil {
		app.writeError(w, http.StatusNotFound, "library not found")
		return
	}

	deep := r.URL.Query().Get("deep") == "true"
	if err := app.emitter.ScanLibrary(r.Context(), id, deep, task.PriorityHigh); err != nil {
		app.writeError(w, http.StatusInternalServerError, "failed to schedule scan")
		return
	}
	app.writeJSON(w, http.StatusAccepted, map[string]any{"library_id": id, "deep": deep})
}

// handleSearch runs a query against the index.
func (app *application) handleSearch(w http.ResponseWriter, r *http.Request) {
	req := search.Request{
		Query: r.URL.Query().Get("q"),
	}
	if types := r.URL.Query().Get("types"); types != "" {
		req.EntityTypes = strings.Split(types, ",")
	}

	results, err := app.index.Search(r.Context(), req)
	if err != nil {
		app.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	app.writeJSON(w, http.StatusOK, results)
}

// handleRebuildIndex schedules a full or per-type index rebuild.
func (app *application) handleRebuildIndex(w http.ResponseWriter, r *http.Request) {
	var entityTypes []string
	if types := r.URL.Query().Get("types"); types != "" {
		entityTypes = strings.Split(types, ",")
	}

	if err := app.emitter.RebuildIndex(r.Context(), entityTypes, task.PriorityLowest); err != nil {
		app.writeError(w, http.StatusInternalServerError, "failed to schedule rebuild")
		return
	}
	app.writeJSON(w, http.StatusAccepted, map[string]any{"types": entityTypes})
}

// handleIndexStats reports per-type document counts.
func (app *application) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]uint64)
	for _, entityType := range search.AllEntityTypes() {
		count, err := app.index.DocCountByType(entityType)
		if err != nil {
			app.writeError(w, http.StatusInternalServerError, "failed to count documents")
			return
		}
		stats[entityType] = count
	}
	app.writeJSON(w, http.StatusOK, stats)
}

// handleTaskQueue reports how many tasks are queued per kind.
func (app *application) handleTaskQueue(w http.ResponseWriter, r *http.Request) {
	counts, err := app.taskStore.CountByKind(r.Context())
	if err != nil {
		app.writeError(w, http.StatusInternalServerError, "failed to count tasks")
		return
	}
	app.writeJSON(w, http.StatusOK, counts)
}

// handleTaskStats reports execution metrics per task kind.
func (app *application) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, http.StatusOK, app.registry.TaskSnapshot())
}
