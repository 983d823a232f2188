package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/avellar/mangrove/internal/events"
	"github.com/avellar/mangrove/internal/metrics"
	"github.com/avellar/mangrove/internal/store"
)

// rebuildPageSize is how many entities one rebuild page fetches from the
// relational store.
const rebuildPageSize = 5000

// rebuildBatchSize is how many documents one bleve batch carries during a
// rebuild.
const rebuildBatchSize = 1000

// fingerprintCacheSize bounds the recently-indexed fingerprint cache.
const fingerprintCacheSize = 8192

// Lifecycle keeps the index consistent with the relational store.
//
// It consumes domain events for incremental updates and offers a full
// per-type rebuild. Incremental failures are logged and survived (the
// rebuild is always the recovery path); rebuild failures propagate to the
// caller, since a silent partial rebuild would corrupt the projection.
type Lifecycle struct {
	index     *Index
	committer Committer

	books       store.BookRepository
	series      store.SeriesRepository
	collections store.CollectionRepository
	readLists   store.ReadListRepository

	metrics *metrics.Registry
	logger  *slog.Logger

	// fingerprints remembers the last indexed content per doc id so that
	// event storms re-projecting identical documents (a scan touching a
	// thousand unchanged books) skip the index write entirely.
	fingerprints *lru.Cache[string, string]
}

// NewLifecycle creates the index lifecycle over the given repositories.
func NewLifecycle(
	index *Index,
	committer Committer,
	books store.BookRepository,
	series store.SeriesRepository,
	collections store.CollectionRepository,
	readLists store.ReadListRepository,
	registry *metrics.Registry,
	logger *slog.Logger,
) *Lifecycle {
	cache, _ := lru.New[string, string](fingerprintCacheSize)
	return &Lifecycle{
		index:        index,
		committer:    committer,
		books:        books,
		series:       series,
		collections:  collections,
		readLists:    readLists,
		metrics:      registry,
		logger:       logger.With("component", "search_lifecycle"),
		fingerprints: cache,
	}
}

// EnsureIndex forces a full rebuild when the stored index version is older
// than the current schema version. Called once at startup.
func (l *Lifecycle) EnsureIndex(ctx context.Context) error {
	version, err := l.index.Version()
	if err != nil {
		return err
	}
	if version >= IndexVersion {
		return nil
	}

	l.logger.Info("index version outdated, rebuilding",
		"stored_version", version,
		"current_version", IndexVersion)
	return l.RebuildIndex(ctx)
}

// RebuildIndex wipes and re-populates the index for the given entity
// types, or for every type when none are named, then stamps the current
// index version. Old documents of other types stay queryable throughout.
func (l *Lifecycle) RebuildIndex(ctx context.Context, entityTypes ...string) error {
	if len(entityTypes) == 0 {
		entityTypes = AllEntityTypes()
	}

	// Buffered incremental writes must land before the wipe. A batch
	// flushed after the rebuild would overwrite rebuilt documents with
	// stale projections, and the fingerprint cache would then suppress
	// the update events that could heal them.
	if err := l.committer.Flush(); err != nil {
		return fmt.Errorf("failed to flush pending index writes: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, entityType := range entityTypes {
		entityType := entityType
		g.Go(func() error {
			count, err := l.rebuildType(ctx, entityType)
			if err != nil {
				return fmt.Errorf("failed to rebuild %s index: %w", entityType, err)
			}
			l.logger.Info("rebuilt index", "entity_type", entityType, "documents", count)
			if l.metrics != nil {
				l.metrics.SetIndexDocCount(entityType, int64(count))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return l.index.SetVersion(IndexVersion)
}

// rebuildType deletes every document of one type and re-adds the current
// projections, paging through the relational store.
func (l *Lifecycle) rebuildType(ctx context.Context, entityType string) (int, error) {
	if _, err := l.index.DeleteByType(entityType); err != nil {
		return 0, err
	}

	total := 0
	for offset := 0; ; offset += rebuildPageSize {
		docs, err := l.projectPage(ctx, entityType, offset, rebuildPageSize)
		if err != nil {
			return total, err
		}
		if len(docs) == 0 {
			return total, nil
		}

		batch := l.index.Bleve().NewBatch()
		for docID, doc := range docs {
			if err := batch.Index(docID, doc); err != nil {
				return total, err
			}
			l.fingerprints.Add(docID, fingerprint(doc))
			if batch.Size() >= rebuildBatchSize {
				if err := l.index.Bleve().Batch(batch); err != nil {
					return total, err
				}
				batch = l.index.Bleve().NewBatch()
			}
		}
		if batch.Size() > 0 {
			if err := l.index.Bleve().Batch(batch); err != nil {
				return total, err
			}
		}
		total += len(docs)

		if len(docs) < rebuildPageSize {
			return total, nil
		}
	}
}

// projectPage fetches one page of entities of the given type and projects
// them to documents keyed by doc id.
func (l *Lifecycle) projectPage(ctx context.Context, entityType string, offset, limit int) (map[string]map[string]any, error) {
	docs := make(map[string]map[string]any)

	switch entityType {
	case EntityBook:
		books, err := l.books.FindAll(ctx, offset, limit)
		if err != nil {
			return nil, err
		}
		for _, book := range books {
			docs[DocID(EntityBook, book.ID.String())] = BookDocument(book)
		}
	case EntitySeries:
		series, err := l.series.FindAll(ctx, offset, limit)
		if err != nil {
			return nil, err
		}
		for _, s := range series {
			docs[DocID(EntitySeries, s.ID.String())] = SeriesDocument(s)
		}
	case EntityCollection:
		collections, err := l.collections.FindAll(ctx, offset, limit)
		if err != nil {
			return nil, err
		}
		for _, collection := range collections {
			docs[DocID(EntityCollection, collection.ID.String())] = CollectionDocument(collection)
		}
	case EntityReadList:
		readLists, err := l.readLists.FindAll(ctx, offset, limit)
		if err != nil {
			return nil, err
		}
		for _, readList := range readLists {
			docs[DocID(EntityReadList, readList.ID.String())] = ReadListDocument(readList)
		}
	default:
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}

	return docs, nil
}

// HandleEvent applies one domain event to the index. Add and update both
// re-fetch the current projection and upsert it; delete removes by key.
// Events for entities that vanished between publication and delivery
// degrade to deletes.
func (l *Lifecycle) HandleEvent(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.BookAdded:
		return l.upsertBook(ctx, e.BookID)
	case events.BookUpdated:
		return l.upsertBook(ctx, e.BookID)
	case events.BookDeleted:
		return l.delete(DocID(EntityBook, e.BookID.String()))
	case events.SeriesAdded:
		return l.upsertSeries(ctx, e.SeriesID)
	case events.SeriesUpdated:
		return l.upsertSeries(ctx, e.SeriesID)
	case events.SeriesDeleted:
		return l.delete(DocID(EntitySeries, e.SeriesID.String()))
	case events.CollectionAdded:
		return l.upsertCollection(ctx, e.CollectionID)
	case events.CollectionUpdated:
		return l.upsertCollection(ctx, e.CollectionID)
	case events.CollectionDeleted:
		return l.delete(DocID(EntityCollection, e.CollectionID.String()))
	case events.ReadListAdded:
		return l.upsertReadList(ctx, e.ReadListID)
	case events.ReadListUpdated:
		return l.upsertReadList(ctx, e.ReadListID)
	case events.ReadListDeleted:
		return l.delete(DocID(EntityReadList, e.ReadListID.String()))
	default:
		// Not an indexing concern (LibraryScanned, TaskFinished, ...).
		return nil
	}
}

func (l *Lifecycle) upsertBook(ctx context.Context, id uuid.UUID) error {
	book, err := l.books.FindByID(ctx, id)
	if store.IsNotFoundError(err) {
		return l.delete(DocID(EntityBook, id.String()))
	}
	if err != nil {
		return err
	}
	return l.upsert(DocID(EntityBook, id.String()), BookDocument(*book))
}

func (l *Lifecycle) upsertSeries(ctx context.Context, id uuid.UUID) error {
	series, err := l.series.FindByID(ctx, id)
	if store.IsNotFoundError(err) {
		return l.delete(DocID(EntitySeries, id.String()))
	}
	if err != nil {
		return err
	}
	return l.upsert(DocID(EntitySeries, id.String()), SeriesDocument(*series))
}

func (l *Lifecycle) upsertCollection(ctx context.Context, id uuid.UUID) error {
	collection, err := l.collections.FindByID(ctx, id)
	if store.IsNotFoundError(err) {
		return l.delete(DocID(EntityCollection, id.String()))
	}
	if err != nil {
		return err
	}
	return l.upsert(DocID(EntityCollection, id.String()), CollectionDocument(*collection))
}

func (l *Lifecycle) upsertReadList(ctx context.Context, id uuid.UUID) error {
	readList, err := l.readLists.FindByID(ctx, id)
	if store.IsNotFoundError(err) {
		return l.delete(DocID(EntityReadList, id.String()))
	}
	if err != nil {
		return err
	}
	return l.upsert(DocID(EntityReadList, id.String()), ReadListDocument(*readList))
}

func (l *Lifecycle) upsert(docID string, doc map[string]any) error {
	fp := fingerprint(doc)
	if cached, ok := l.fingerprints.Get(docID); ok && cached == fp {
		return nil
	}
	if err := l.committer.Index(docID, doc); err != nil {
		return err
	}
	l.fingerprints.Add(docID, fp)
	return nil
}

func (l *Lifecycle) delete(docID string) error {
	l.fingerprints.Remove(docID)
	return l.committer.Delete(docID)
}

// fingerprint derives a stable digest of a document's content. JSON
// marshaling sorts map keys, so equal documents produce equal strings.
func fingerprint(doc map[string]any) string {
	raw, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	return string(raw)
}

var _ events.Handler = (*Lifecycle)(nil)
