package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx database/sql driver

	"github.com/avellar/mangrove/internal/config"
	"github.com/avellar/mangrove/internal/events"
	"github.com/avellar/mangrove/internal/metrics"
	"github.com/avellar/mangrove/internal/platform/logger"
	"github.com/avellar/mangrove/internal/platform/postgres"
	"github.com/avellar/mangrove/internal/search"
	"github.com/avellar/mangrove/internal/service"
	"github.com/avellar/mangrove/internal/store"
	"github.com/avellar/mangrove/internal/store/memory"
	"github.com/avellar/mangrove/internal/task"
)

// application holds all wired components of the server.
type application struct {
	config *config.Config
	logger *slog.Logger

	db  *sql.DB // nil in memory storage mode
	bus *events.Bus

	registry *metrics.Registry

	libraries   store.LibraryRepository
	series      store.SeriesRepository
	books       store.BookRepository
	collections store.CollectionRepository
	readLists   store.ReadListRepository

	taskStore task.Store
	emitter   *task.Emitter
	processor *task.Processor

	index     *search.Index
	committer search.Committer
	lifecycle *search.Lifecycle

	watcher *service.Watcher
}

// initializeApp loads configuration and wires every application component.
// Returns the application or any initialization error.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"storage_mode", cfg.Storage.Mode,
		"committer", cfg.Search.Committer)

	app := &application{
		config:   cfg,
		logger:   appLogger,
		bus:      events.NewBus(events.DefaultBusBuffer, appLogger),
		registry: metrics.NewRegistry(),
	}

	if err := app.setupStorage(); err != nil {
		return nil, err
	}
	if err := app.setupSearch(); err != nil {
		return nil, err
	}
	app.setupTaskEngine()

	if cfg.Watcher.Enabled {
		app.watcher = service.NewWatcher(app.libraries, app.emitter, cfg.Watcher.Debounce, appLogger)
	}

	return app, nil
}

// setupStorage opens the configured storage backend and creates the
// repositories and the durable task store over it.
func (app *application) setupStorage() error {
	switch app.config.Storage.Mode {
	case "postgres":
		db, err := sql.Open("pgx", app.config.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := postgres.RunMigrations(db); err != nil {
			return err
		}

		app.db = db
		app.libraries = postgres.NewPostgresLibraryStore(db)
		app.series = postgres.NewPostgresSeriesStore(db)
		app.books = postgres.NewPostgresBookStore(db)
		app.collections = postgres.NewPostgresCollectionStore(db)
		app.readLists = postgres.NewPostgresReadListStore(db)
		app.taskStore = postgres.NewPostgresTaskStore(db)

	case "memory":
		app.libraries = memory.NewLibraryRepository()
		app.series = memory.NewSeriesRepository()
		app.books = memory.NewBookRepository()
		app.collections = memory.NewCollectionRepository()
		app.readLists = memory.NewReadListRepository()
		app.taskStore = task.NewMemStore()

	default:
		return fmt.Errorf("unknown storage mode %q", app.config.Storage.Mode)
	}
	return nil
}

// setupSearch opens the search index, picks the committer strategy and
// subscribes the index lifecycle to domain events.
func (app *application) setupSearch() error {
	var err error
	if app.config.Search.IndexDir != "" {
		app.index, err = search.Open(app.config.Search.IndexDir, app.logger)
	} else {
		app.index, err = search.OpenInMemory(app.logger)
	}
	if err != nil {
		return fmt.Errorf("failed to open search index: %w", err)
	}

	switch app.config.Search.Committer {
	case "sync":
		app.committer = search.NewSyncCommitter(app.index)
	case "async":
		app.committer = search.NewAsyncCommitter(app.index, app.config.Search.CommitDelay, app.logger)
	default:
		return fmt.Errorf("unknown committer %q", app.config.Search.Committer)
	}

	app.lifecycle = search.NewLifecycle(
		app.index,
		app.committer,
		app.books,
		app.series,
		app.collections,
		app.readLists,
		app.registry,
		app.logger,
	)
	app.bus.Subscribe(app.lifecycle)
	return nil
}

// setupTaskEngine wires the emitter, the task handler with its services,
// and the processor pool.
func (app *application) setupTaskEngine() {
	app.emitter = task.NewEmitter(app.taskStore, app.logger)

	scanner := service.NewScanner(app.series, app.books, app.bus, app.logger)
	analyzer := service.NewAnalyzer(app.books, app.bus, app.logger)
	metadata := service.NewMetadataService(app.series, app.books, app.bus, app.logger)

	handler := task.NewHandler(
		app.libraries,
		app.series,
		app.books,
		scanner,
		analyzer,
		metadata,
		app.lifecycle,
		app.emitter,
		app.bus,
		app.logger,
	)

	app.processor = task.NewProcessor(
		app.taskStore,
		handler,
		app.bus,
		app.registry,
		task.ProcessorConfig{PoolSize: app.config.Tasks.PoolSize},
		app.logger,
	)

	// New tasks wake the processor without polling.
	app.emitter.SetNotifier(app.processor)
}

// run starts the background components and serves HTTP until shutdown.
func (app *application) run(ctx context.Context) error {
	if err := app.lifecycle.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("failed to prepare search index: %w", err)
	}

	if err := app.processor.Start(); err != nil {
		return fmt.Errorf("failed to start task processor: %w", err)
	}

	if app.watcher != nil {
		if err := app.watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start filesystem watcher: %w", err)
		}
	}

	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup releases application resources in dependency order: stop
// producing work, drain workers, flush the index, then close storage.
func (app *application) cleanup() {
	if app.watcher != nil {
		if err := app.watcher.Stop(); err != nil {
			app.logger.Warn("failed to stop filesystem watcher", "error", err)
		}
	}

	app.processor.Stop()
	app.bus.Close()

	if err := app.committer.Close(); err != nil {
		app.logger.Warn("failed to flush search index", "error", err)
	}
	if err := app.index.Close(); err != nil {
		app.logger.Warn("failed to close search index", "error", err)
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn("failed to close database", "error", err)
		}
	}
}
