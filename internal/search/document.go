package search

import (
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/avellar/mangrove/internal/domain"
)

// Document type discriminators. Each indexed document carries one of these
// in its "type" field and uses "<type>_<entityID>" as its document id.
const (
	EntityBook       = "book"
	EntitySeries     = "series"
	EntityCollection = "collection"
	EntityReadList   = "readlist"
)

// AllEntityTypes returns every indexable document type.
func AllEntityTypes() []string {
	return []string{EntityBook, EntitySeries, EntityCollection, EntityReadList}
}

// DocID builds the index document id for an entity.
func DocID(entityType, entityID string) string {
	return entityType + "_" + entityID
}

// splitDocID resolves a document id back to its entity type and entity
// id. The third return is false for ids that do not follow the
// type_entityID form.
func splitDocID(docID string) (entityType, entityID string, ok bool) {
	entityType, entityID, ok = strings.Cut(docID, "_")
	if !ok || entityID == "" {
		return "", "", false
	}
	return entityType, entityID, true
}

// Field names shared by all document types.
const (
	fieldType     = "type"
	fieldEntityID = "entity_id"
)

// BookDocument projects a book into its searchable fields.
func BookDocument(book domain.Book) map[string]any {
	title := book.Metadata.Title
	if title == "" {
		title = book.Name
	}

	doc := map[string]any{
		fieldType:      EntityBook,
		fieldEntityID:  book.ID.String(),
		"title":        title,
		"name":         book.Name,
		"number":       book.Metadata.Number,
		"series_id":    book.SeriesID.String(),
		"library_id":   book.LibraryID.String(),
		"media_status": string(book.Media.Status),
	}

	if book.Metadata.Summary != "" {
		doc["summary"] = book.Metadata.Summary
	}
	if book.Metadata.ISBN != "" {
		doc["isbn"] = book.Metadata.ISBN
	}
	if len(book.Metadata.Tags) > 0 {
		doc["tag"] = book.Metadata.Tags
	}
	if book.Metadata.ReleaseDate != nil {
		doc["release_date"] = strconv.Itoa(book.Metadata.ReleaseDate.Year())
	}

	// Authors are searchable both together and per role, e.g.
	// author.writer:moore.
	var names []string
	for _, author := range book.Metadata.Authors {
		names = append(names, author.Name)
		role := strings.ToLower(author.Role)
		if role == "" {
			continue
		}
		key := "author." + role
		existing, _ := doc[key].([]string)
		doc[key] = append(existing, author.Name)
	}
	if len(names) > 0 {
		doc["author"] = names
	}

	return doc
}

// SeriesDocument projects a series into its searchable fields.
func SeriesDocument(series domain.Series) map[string]any {
	title := series.Metadata.Title
	if title == "" {
		title = series.Name
	}

	doc := map[string]any{
		fieldType:     EntitySeries,
		fieldEntityID: series.ID.String(),
		"title":       title,
		"title_sort":  series.Metadata.TitleSort,
		"library_id":  series.LibraryID.String(),
		"status":      string(series.Metadata.Status),
		"book_count":  strconv.Itoa(series.BookCount),
	}

	if series.Metadata.Summary != "" {
		doc["summary"] = series.Metadata.Summary
	}
	if series.Metadata.Publisher != "" {
		doc["publisher"] = series.Metadata.Publisher
	}
	if series.Metadata.Language != "" {
		doc["language"] = series.Metadata.Language
	}
	if len(series.Metadata.Tags) > 0 {
		doc["tag"] = series.Metadata.Tags
	}
	if len(series.Metadata.Genres) > 0 {
		doc["genre"] = series.Metadata.Genres
	}
	if series.Metadata.ReleaseYear > 0 {
		doc["release_date"] = strconv.Itoa(series.Metadata.ReleaseYear)
	}

	return doc
}

// CollectionDocument projects a collection into its searchable fields.
func CollectionDocument(collection domain.Collection) map[string]any {
	return map[string]any{
		fieldType:     EntityCollection,
		fieldEntityID: collection.ID.String(),
		"name":        collection.Name,
	}
}

// ReadListDocument projects a read list into its searchable fields.
func ReadListDocument(readList domain.ReadList) map[string]any {
	doc := map[string]any{
		fieldType:     EntityReadList,
		fieldEntityID: readList.ID.String(),
		"name":        readList.Name,
	}
	if readList.Summary != "" {
		doc["summary"] = readList.Summary
	}
	return doc
}

// BuildIndexMapping builds the bleve mapping shared by all document types.
// Discriminator and id fields are keyword-analyzed for exact matching;
// everything else uses the default text analyzer.
func BuildIndexMapping() mapping.IndexMapping {
	m := mapping.NewIndexMapping()

	keywordField := mapping.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	docMapping := mapping.NewDocumentMapping()
	for _, field := range []string{
		fieldType, fieldEntityID,
		"series_id", "library_id",
		"media_status", "status", "language", "release_date", "isbn",
	} {
		docMapping.AddFieldMappingsAt(field, keywordField)
	}

	m.DefaultMapping = docMapping
	return m
}
