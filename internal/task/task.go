package task

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Priority levels for tasks. Any caller-supplied priority is clamped into
// [PriorityMin, PriorityMax]; these constants are the documented points on
// that scale.
const (
	PriorityHighest = 8
	PriorityHigh    = 6
	PriorityDefault = 4
	PriorityLowest  = 0

	PriorityMin = 0
	PriorityMax = 9
)

// ClampPriority forces p into the valid [PriorityMin, PriorityMax] range.
func ClampPriority(p int) int {
	if p < PriorityMin {
		return PriorityMin
	}
	if p > PriorityMax {
		return PriorityMax
	}
	return p
}

// Task kind identifiers. The kind plus the primary payload key form the
// task's unique id, which the queue dedupes on.
const (
	KindScanLibrary             = "SCAN_LIBRARY"
	KindAnalyzeBook             = "ANALYZE_BOOK"
	KindRefreshBookMetadata     = "REFRESH_BOOK_METADATA"
	KindRefreshSeriesMetadata   = "REFRESH_SERIES_METADATA"
	KindAggregateSeriesMetadata = "AGGREGATE_SERIES_METADATA"
	KindRebuildIndex            = "REBUILD_INDEX"
	KindDeleteBook              = "DELETE_BOOK"
	KindDeleteSeries            = "DELETE_SERIES"
)

// Task is a uniquely-identified unit of background work with a priority.
//
// Two tasks with the same UniqueID are the same logical unit of work:
// saving both leaves a single queue entry. The concrete types below form a
// closed set; the handler dispatches on them with a type switch.
// Version: 1.0
type Task interface {
	// Kind returns the task kind identifier.
	Kind() string

	// UniqueID returns the deterministic dedupe key, derived from the kind
	// and the primary payload key (e.g. "ANALYZE_BOOK_<bookID>").
	UniqueID() string

	// Priority returns the task priority within [PriorityMin, PriorityMax].
	Priority() int

	// GroupID returns an optional grouping key (usually a series id) used
	// for ordering and progress reporting. May be empty.
	GroupID() string
}

// base carries the fields shared by every task kind. It is embedded
// unexported so kind payloads serialize without it; priority and group id
// are stored in their own queue columns.
type base struct {
	priority int
	groupID  string
}

func (b base) Priority() int   { return b.priority }
func (b base) GroupID() string { return b.groupID }

// ScanLibrary requests a filesystem scan of one library. Deep forces
// re-analysis of books whose files look unchanged.
type ScanLibrary struct {
	LibraryID uuid.UUID `json:"library_id"`
	Deep      bool      `json:"deep"`
	base
}

// NewScanLibrary creates a ScanLibrary task.
func NewScanLibrary(libraryID uuid.UUID, deep bool, priority int) ScanLibrary {
	return ScanLibrary{LibraryID: libraryID, Deep: deep, base: base{priority: ClampPriority(priority)}}
}

func (t ScanLibrary) Kind() string     { return KindScanLibrary }
func (t ScanLibrary) UniqueID() string { return KindScanLibrary + "_" + t.LibraryID.String() }

// AnalyzeBook requests media analysis of one book's archive file.
type AnalyzeBook struct {
	BookID   uuid.UUID `json:"book_id"`
	SeriesID uuid.UUID `json:"series_id"`
	base
}

// NewAnalyzeBook creates an AnalyzeBook task grouped by its series.
func NewAnalyzeBook(bookID, seriesID uuid.UUID, priority int) AnalyzeBook {
	return AnalyzeBook{
		BookID:   bookID,
		SeriesID: seriesID,
		base:     base{priority: ClampPriority(priority), groupID: seriesID.String()},
	}
}

func (t AnalyzeBook) Kind() string     { return KindAnalyzeBook }
func (t AnalyzeBook) UniqueID() string { return KindAnalyzeBook + "_" + t.BookID.String() }

// RefreshBookMetadata requests a metadata refresh for one book.
// Capabilities restricts which metadata fields may be patched; empty means
// all fields.
type RefreshBookMetadata struct {
	BookID       uuid.UUID `json:"book_id"`
	SeriesID     uuid.UUID `json:"series_id"`
	Capabilities []string  `json:"capabilities,omitempty"`
	base
}

// NewRefreshBookMetadata creates a RefreshBookMetadata task.
func NewRefreshBookMetadata(bookID, seriesID uuid.UUID, capabilities []string, priority int) RefreshBookMetadata {
	return RefreshBookMetadata{
		BookID:       bookID,
		SeriesID:     seriesID,
		Capabilities: capabilities,
		base:         base{priority: ClampPriority(priority), groupID: seriesID.String()},
	}
}

func (t RefreshBookMetadata) Kind() string { return KindRefreshBookMetadata }
func (t RefreshBookMetadata) UniqueID() string {
	return KindRefreshBookMetadata + "_" + t.BookID.String()
}

// RefreshSeriesMetadata requests a metadata refresh for one series.
type RefreshSeriesMetadata struct {
	SeriesID uuid.UUID `json:"series_id"`
	base
}

// NewRefreshSeriesMetadata creates a RefreshSeriesMetadata task.
func NewRefreshSeriesMetadata(seriesID uuid.UUID, priority int) RefreshSeriesMetadata {
	return RefreshSeriesMetadata{
		SeriesID: seriesID,
		base:     base{priority: ClampPriority(priority), groupID: seriesID.String()},
	}
}

func (t RefreshSeriesMetadata) Kind() string { return KindRefreshSeriesMetadata }
func (t RefreshSeriesMetadata) UniqueID() string {
	return KindRefreshSeriesMetadata + "_" + t.SeriesID.String()
}

// AggregateSeriesMetadata requests re-aggregation of a series' metadata
// from the metadata of its books.
type AggregateSeriesMetadata struct {
	SeriesID uuid.UUID `json:"series_id"`
	base
}

// NewAggregateSeriesMetadata creates an AggregateSeriesMetadata task.
func NewAggregateSeriesMetadata(seriesID uuid.UUID, priority int) AggregateSeriesMetadata {
	return AggregateSeriesMetadata{
		SeriesID: seriesID,
		base:     base{priority: ClampPriority(priority), groupID: seriesID.String()},
	}
}

func (t AggregateSeriesMetadata) Kind() string { return KindAggregateSeriesMetadata }
func (t AggregateSeriesMetadata) UniqueID() string {
	return KindAggregateSeriesMetadata + "_" + t.SeriesID.String()
}

// RebuildIndex requests a full rebuild of the search index. EntityTypes
// restricts the rebuild to the named document types; empty means all.
// Only one rebuild can ever be queued at a time.
type RebuildIndex struct {
	EntityTypes []string `json:"entity_types,omitempty"`
	base
}

// NewRebuildIndex creates a RebuildIndex task.
func NewRebuildIndex(entityTypes []string, priority int) RebuildIndex {
	return RebuildIndex{EntityTypes: entityTypes, base: base{priority: ClampPriority(priority)}}
}

func (t RebuildIndex) Kind() string     { return KindRebuildIndex }
func (t RebuildIndex) UniqueID() string { return KindRebuildIndex }

// DeleteBook requests removal of one book from the store and the index.
type DeleteBook struct {
	BookID uuid.UUID `json:"book_id"`
	base
}

// NewDeleteBook creates a DeleteBook task.
func NewDeleteBook(bookID uuid.UUID, priority int) DeleteBook {
	return DeleteBook{BookID: bookID, base: base{priority: ClampPriority(priority)}}
}

func (t DeleteBook) Kind() string     { return KindDeleteBook }
func (t DeleteBook) UniqueID() string { return KindDeleteBook + "_" + t.BookID.String() }

// DeleteSeries requests removal of a series and all of its books.
type DeleteSeries struct {
	SeriesID uuid.UUID `json:"series_id"`
	base
}

// NewDeleteSeries creates a DeleteSeries task.
func NewDeleteSeries(seriesID uuid.UUID, priority int) DeleteSeries {
	return DeleteSeries{SeriesID: seriesID, base: base{priority: ClampPriority(priority)}}
}

func (t DeleteSeries) Kind() string     { return KindDeleteSeries }
func (t DeleteSeries) UniqueID() string { return KindDeleteSeries + "_" + t.SeriesID.String() }

// EncodePayload serializes the kind-specific payload of a task to JSON.
// The kind, priority and group id travel next to the payload in the queue,
// not inside it.
func EncodePayload(t Task) ([]byte, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task payload for %s: %w", t.UniqueID(), err)
	}
	return payload, nil
}

// DecodeTask reconstructs a task from its stored kind, payload, priority
// and group id. Unknown kinds are an error: rows written by a newer
// version must not be silently mangled.
func DecodeTask(kind string, payload []byte, priority int, groupID string) (Task, error) {
	b := base{priority: ClampPriority(priority), groupID: groupID}

	var t Task
	var err error
	switch kind {
	case KindScanLibrary:
		var v ScanLibrary
		err = json.Unmarshal(payload, &v)
		v.base = b
		t = v
	case KindAnalyzeBook:
		var v AnalyzeBook
		err = json.Unmarshal(payload, &v)
		v.base = b
		t = v
	case KindRefreshBookMetadata:
		var v RefreshBookMetadata
		err = json.Unmarshal(payload, &v)
		v.base = b
		t = v
	case KindRefreshSeriesMetadata:
		var v RefreshSeriesMetadata
		err = json.Unmarshal(payload, &v)
		v.base = b
		t = v
	case KindAggregateSeriesMetadata:
		var v AggregateSeriesMetadata
		err = json.Unmarshal(payload, &v)
		v.base = b
		t = v
	case KindRebuildIndex:
		var v RebuildIndex
		err = json.Unmarshal(payload, &v)
		v.base = b
		t = v
	case KindDeleteBook:
		var v DeleteBook
		err = json.Unmarshal(payload, &v)
		v.base = b
		t = v
	case KindDeleteSeries:
		var v DeleteSeries
		err = json.Unmarshal(payload, &v)
		v.base = b
		t = v
	default:
		return nil, fmt.Errorf("unknown task kind %q", kind)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
	}
	return t, nil
}
