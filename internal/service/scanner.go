package service

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/events"
	"github.com/avellar/mangrove/internal/store"
)

// supportedExtensions lists the archive extensions a scan picks up.
// Everything else in a library root is ignored.
var supportedExtensions = map[string]bool{
	".cbz":  true,
	".cbr":  true,
	".zip":  true,
	".epub": true,
	".pdf":  true,
}

// IsSupportedFile reports whether path has a recognized book extension.
func IsSupportedFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// scannedFile is one book file discovered on disk.
type scannedFile struct {
	path      string
	seriesDir string
	size      int64
	modTime   time.Time
}

// Scanner reconciles the filesystem state of a library root with the
// relational store. Each book file's immediate parent directory becomes
// its series; files sitting directly in the root fall into a series named
// after the root itself.
type Scanner struct {
	series store.SeriesRepository
	books  store.BookRepository
	bus    *events.Bus
	logger *slog.Logger
}

// NewScanner creates a Scanner over the given repositories.
func NewScanner(
	series store.SeriesRepository,
	books store.BookRepository,
	bus *events.Bus,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		series: series,
		books:  books,
		bus:    bus,
		logger: logger.With("component", "scanner"),
	}
}

// ScanLibrary walks the library root and brings the store in line with
// what is on disk. New files become books with UNKNOWN media status,
// changed files are flagged OUTDATED, vanished files delete their books.
// A deep scan flags every file found as OUTDATED regardless of change
// detection, forcing re-analysis of the whole library.
func (s *Scanner) ScanLibrary(ctx context.Context, library domain.Library, deep bool) error {
	start := time.Now()
	s.logger.Info("scanning library",
		"library_id", library.ID,
		"root", library.Root,
		"deep", deep)

	found, err := s.walk(library.Root)
	if err != nil {
		return fmt.Errorf("failed to walk library root %s: %w", library.Root, err)
	}

	existing, err := s.books.FindByLibraryID(ctx, library.ID)
	if err != nil {
		return fmt.Errorf("failed to load library books: %w", err)
	}
	existingByURL := make(map[string]domain.Book, len(existing))
	for _, book := range existing {
		existingByURL[book.URL] = book
	}

	var added, updated, removed int

	for _, file := range found {
		if err := ctx.Err(); err != nil {
			return err
		}

		book, known := existingByURL[file.path]
		if !known {
			if err := s.addBook(ctx, library, file); err != nil {
				return err
			}
			added++
			continue
		}
		delete(existingByURL, file.path)

		changed := book.FileSize != file.size || !book.FileLastModified.Equal(file.modTime)
		if !changed && !deep {
			continue
		}

		book.FileSize = file.size
		book.FileLastModified = file.modTime
		book.Media.Status = domain.MediaStatusOutdated
		book.UpdatedAt = time.Now().UTC()
		if err := s.books.Save(ctx, &book); err != nil {
			return fmt.Errorf("failed to update book %s: %w", book.URL, err)
		}
		s.bus.Publish(events.BookUpdated{BookID: book.ID, SeriesID: book.SeriesID, LibraryID: library.ID})
		updated++
	}

	// Whatever is left in existingByURL no longer exists on disk.
	for _, book := range existingByURL {
		if err := s.books.Delete(ctx, book.ID); err != nil {
			return fmt.Errorf("failed to delete book %s: %w", book.URL, err)
		}
		s.bus.Publish(events.BookDeleted{BookID: book.ID, SeriesID: book.SeriesID})
		removed++
	}

	if err := s.reconcileSeries(ctx, library); err != nil {
		return err
	}

	s.bus.Publish(events.LibraryScanned{
		LibraryID:    library.ID,
		BooksAdded:   added,
		BooksUpdated: updated,
		BooksRemoved: removed,
	})
	s.logger.Info("library scan finished",
		"library_id", library.ID,
		"added", added,
		"updated", updated,
		"removed", removed,
		"duration", time.Since(start))
	return nil
}

// walk collects every supported file under root.
func (s *Scanner) walk(root string) ([]scannedFile, error) {
	var found []scannedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Directories whose name starts with a dot are hidden from
			// the scan (recycle bins, sync caches).
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsSupportedFile(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		found = append(found, scannedFile{
			path:      path,
			seriesDir: filepath.Dir(path),
			size:      info.Size(),
			modTime:   info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// addBook creates the book for a newly discovered file, creating its
// series first when the directory is new.
func (s *Scanner) addBook(ctx context.Context, library domain.Library, file scannedFile) error {
	series, err := s.ensureSeries(ctx, library, file.seriesDir)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(file.path), filepath.Ext(file.path))
	book, err := domain.NewBook(series.ID, library.ID, name, file.path)
	if err != nil {
		return fmt.Errorf("failed to create book for %s: %w", file.path, err)
	}
	book.FileSize = file.size
	book.FileLastModified = file.modTime

	if err := s.books.Save(ctx, book); err != nil {
		return fmt.Errorf("failed to save book %s: %w", file.path, err)
	}
	s.bus.Publish(events.BookAdded{BookID: book.ID, SeriesID: series.ID, LibraryID: library.ID})
	return nil
}

// ensureSeries returns the series rooted at dir, creating it when the
// directory has never been seen.
func (s *Scanner) ensureSeries(ctx context.Context, library domain.Library, dir string) (*domain.Series, error) {
	series, err := s.series.FindByURL(ctx, dir)
	if err == nil {
		return series, nil
	}
	if !store.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up series at %s: %w", dir, err)
	}

	series, err = domain.NewSeries(library.ID, filepath.Base(dir), dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create series for %s: %w", dir, err)
	}
	if err := s.series.Save(ctx, series); err != nil {
		return nil, fmt.Errorf("failed to save series %s: %w", dir, err)
	}
	s.bus.Publish(events.SeriesAdded{SeriesID: series.ID, LibraryID: library.ID})
	return series, nil
}

// reconcileSeries refreshes per-series book counts and removes series
// whose last book vanished.
func (s *Scanner) reconcileSeries(ctx context.Context, library domain.Library) error {
	allSeries, err := s.series.FindByLibraryID(ctx, library.ID)
	if err != nil {
		return fmt.Errorf("failed to load library series: %w", err)
	}

	for _, series := range allSeries {
		books, err := s.books.FindBySeriesID(ctx, series.ID)
		if err != nil {
			return fmt.Errorf("failed to count books of series %s: %w", series.Name, err)
		}

		if len(books) == 0 {
			if err := s.series.Delete(ctx, series.ID); err != nil {
				return fmt.Errorf("failed to delete empty series %s: %w", series.Name, err)
			}
			s.bus.Publish(events.SeriesDeleted{SeriesID: series.ID})
			continue
		}

		if series.BookCount != len(books) {
			series.BookCount = len(books)
			series.UpdatedAt = time.Now().UTC()
			if err := s.series.Save(ctx, &series); err != nil {
				return fmt.Errorf("failed to update series %s: %w", series.Name, err)
			}
			s.bus.Publish(events.SeriesUpdated{SeriesID: series.ID, LibraryID: library.ID})
		}
	}
	return nil
}
