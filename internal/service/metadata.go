package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/events"
	"github.com/avellar/mangrove/internal/store"
)

// Metadata capabilities a refresh can apply. An empty capability list
// means all of them.
const (
	CapabilityTitle  = "title"
	CapabilityNumber = "number"
)

// bookNumberPattern matches an issue or volume number in a filename, like
// "#12", "012", "v3" or "ch 4.5", anchored near the end of the name.
var bookNumberPattern = regexp.MustCompile(`(?i)(?:#|\bv(?:ol(?:ume)?)?\.?\s*|\bch(?:apter)?\.?\s*|\s)(\d+(?:\.\d+)?)\s*$`)

// leadingArticles are stripped from titles to build sort titles.
var leadingArticles = []string{"the ", "a ", "an "}

// MetadataService derives book and series metadata from filenames and
// aggregates book metadata up to the owning series.
type MetadataService struct {
	series store.SeriesRepository
	books  store.BookRepository
	bus    *events.Bus
	logger *slog.Logger
}

// NewMetadataService creates a MetadataService over the given repositories.
func NewMetadataService(
	series store.SeriesRepository,
	books store.BookRepository,
	bus *events.Bus,
	logger *slog.Logger,
) *MetadataService {
	return &MetadataService{
		series: series,
		books:  books,
		bus:    bus,
		logger: logger.With("component", "metadata"),
	}
}

// RefreshBookMetadata derives the book's title and number from its file
// name. Capabilities restrict which fields are touched so a later
// provider can own a field without filename parsing overwriting it.
func (m *MetadataService) RefreshBookMetadata(ctx context.Context, book domain.Book, capabilities []string) error {
	title, number, numberSort := ParseBookName(book.Name)

	changed := false
	if hasCapability(capabilities, CapabilityTitle) && book.Metadata.Title != title {
		book.Metadata.Title = title
		changed = true
	}
	if hasCapability(capabilities, CapabilityNumber) &&
		(book.Metadata.Number != number || book.Metadata.NumberSort != numberSort) {
		book.Metadata.Number = number
		book.Metadata.NumberSort = numberSort
		changed = true
	}
	if !changed {
		return nil
	}

	book.UpdatedAt = time.Now().UTC()
	if err := m.books.Save(ctx, &book); err != nil {
		return fmt.Errorf("failed to save book metadata: %w", err)
	}
	m.bus.Publish(events.BookUpdated{BookID: book.ID, SeriesID: book.SeriesID, LibraryID: book.LibraryID})
	return nil
}

// RefreshSeriesMetadata derives the series title and sort title from its
// directory name.
func (m *MetadataService) RefreshSeriesMetadata(ctx context.Context, series domain.Series) error {
	title := strings.TrimSpace(series.Name)
	titleSort := SortTitle(title)

	if series.Metadata.Title == title && series.Metadata.TitleSort == titleSort {
		return nil
	}

	series.Metadata.Title = title
	series.Metadata.TitleSort = titleSort
	series.UpdatedAt = time.Now().UTC()
	if err := m.series.Save(ctx, &series); err != nil {
		return fmt.Errorf("failed to save series metadata: %w", err)
	}
	m.bus.Publish(events.SeriesUpdated{SeriesID: series.ID, LibraryID: series.LibraryID})
	return nil
}

// AggregateSeriesMetadata rolls the books' metadata up to the series:
// the tag union, the earliest release year and the total book count.
func (m *MetadataService) AggregateSeriesMetadata(ctx context.Context, series domain.Series) error {
	books, err := m.books.FindBySeriesID(ctx, series.ID)
	if err != nil {
		return fmt.Errorf("failed to load series books: %w", err)
	}

	tagSet := make(map[string]struct{})
	releaseYear := 0
	for _, book := range books {
		for _, tag := range book.Metadata.Tags {
			tagSet[tag] = struct{}{}
		}
		if book.Metadata.ReleaseDate != nil {
			year := book.Metadata.ReleaseDate.Year()
			if releaseYear == 0 || year < releaseYear {
				releaseYear = year
			}
		}
	}

	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	series.Metadata.Tags = tags
	series.Metadata.ReleaseYear = releaseYear
	series.Metadata.TotalBookCount = len(books)
	series.BookCount = len(books)
	series.UpdatedAt = time.Now().UTC()

	if err := m.series.Save(ctx, &series); err != nil {
		return fmt.Errorf("failed to save aggregated series metadata: %w", err)
	}
	m.bus.Publish(events.SeriesUpdated{SeriesID: series.ID, LibraryID: series.LibraryID})
	return nil
}

// ParseBookName splits a book file name into a title and an issue number.
// "Saga v3" yields ("Saga", "3", 3); a name without a trailing number
// keeps the whole name as title with number sort 0.
func ParseBookName(name string) (title, number string, numberSort float64) {
	match := bookNumberPattern.FindStringSubmatchIndex(name)
	if match == nil {
		return strings.TrimSpace(name), "", 0
	}

	number = name[match[2]:match[3]]
	title = strings.TrimSpace(strings.Trim(name[:match[0]], " -_"))
	if title == "" {
		title = strings.TrimSpace(name)
	}

	numberSort, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return title, "", 0
	}
	return title, number, numberSort
}

// SortTitle strips a leading article from a title for sorting, so
// "The Walking Dead" sorts under W.
func SortTitle(title string) string {
	lower := strings.ToLower(title)
	for _, article := range leadingArticles {
		if strings.HasPrefix(lower, article) {
			return strings.TrimSpace(title[len(article):])
		}
	}
	return title
}

// hasCapability reports whether the capability list allows a field.
// An empty list allows everything.
func hasCapability(capabilities []string, capability string) bool {
	if len(capabilities) == 0 {
		return true
	}
	for _, c := range capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
