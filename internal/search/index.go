package search

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
)

// IndexVersion is the current schema version of the index. Bump it
// whenever document projections or the mapping change; a stored version
// older than this forces a full rebuild at startup.
const IndexVersion = 1

// versionKey is the internal-storage key holding the stamped version.
var versionKey = []byte("index_version")

// deletePageSize bounds how many doc ids one delete-by-type query pages at
// a time.
const deletePageSize = 1000

// Index wraps the bleve index with open-or-create semantics, version
// stamping and type-scoped bulk operations.
//
// Mutations go through short-lived batches (see Committer); the bleve
// index itself handles reader refresh internally, so readers never need to
// reopen it.
type Index struct {
	idx    bleve.Index
	logger *slog.Logger
}

// Open opens the index at path, creating it with the current mapping if it
// does not exist yet.
func Open(path string, logger *slog.Logger) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &Index{idx: idx, logger: logger}, nil
	}

	idx, err = bleve.New(path, BuildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index at %s: %w", path, err)
	}
	return &Index{idx: idx, logger: logger}, nil
}

// OpenInMemory creates an in-memory index, used by tests and the memory
// storage mode.
func OpenInMemory(logger *slog.Logger) (*Index, error) {
	idx, err := bleve.NewMemOnly(BuildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	return &Index{idx: idx, logger: logger}, nil
}

// Exists reports whether an index already exists at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Bleve exposes the wrapped index for query execution.
func (ix *Index) Bleve() bleve.Index {
	return ix.idx
}

// Close releases the index.
func (ix *Index) Close() error {
	return ix.idx.Close()
}

// Version returns the stamped index version, or 0 when the index has
// never been stamped (fresh or pre-versioning index).
func (ix *Index) Version() (int, error) {
	raw, err := ix.idx.GetInternal(versionKey)
	if err != nil {
		return 0, fmt.Errorf("failed to read index version: %w", err)
	}
	if len(raw) == 0 {
		return 0, nil
	}

	version, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("malformed index version %q: %w", raw, err)
	}
	return version, nil
}

// SetVersion stamps the index with the given schema version.
func (ix *Index) SetVersion(version int) error {
	if err := ix.idx.SetInternal(versionKey, []byte(strconv.Itoa(version))); err != nil {
		return fmt.Errorf("failed to stamp index version: %w", err)
	}
	return nil
}

// DocCountByType returns the number of documents of one entity type.
func (ix *Index) DocCountByType(entityType string) (uint64, error) {
	query := bleve.NewTermQuery(entityType)
	query.SetField(fieldType)

	req := bleve.NewSearchRequest(query)
	req.Size = 0

	result, err := ix.idx.Search(req)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s documents: %w", entityType, err)
	}
	return result.Total, nil
}

// DeleteByType removes every document of one entity type, paging through
// matching doc ids and deleting them in batches. Returns the number of
// documents removed.
func (ix *Index) DeleteByType(entityType string) (int, error) {
	deleted := 0
	for {
		query := bleve.NewTermQuery(entityType)
		query.SetField(fieldType)

		req := bleve.NewSearchRequest(query)
		req.Size = deletePageSize

		result, err := ix.idx.Search(req)
		if err != nil {
			return deleted, fmt.Errorf("failed to find %s documents: %w", entityType, err)
		}
		if len(result.Hits) == 0 {
			return deleted, nil
		}

		batch := ix.idx.NewBatch()
		for _, hit := range result.Hits {
			batch.Delete(hit.ID)
		}
		if err := ix.idx.Batch(batch); err != nil {
			return deleted, fmt.Errorf("failed to delete %s documents: %w", entityType, err)
		}
		deleted += len(result.Hits)
	}
}
