package service

import (
	"archive/zip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avellar/mangrove/internal/domain"
	"github.com/avellar/mangrove/internal/events"
	"github.com/avellar/mangrove/internal/store"
)

// Media types assigned by analysis.
const (
	MediaTypeCBZ  = "application/vnd.comicbook+zip"
	MediaTypeEPUB = "application/epub+zip"
	MediaTypePDF  = "application/pdf"
)

// imageExtensions are the page formats counted inside comic archives.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Analyzer inspects book archive files and records the result on the
// book's media. Analysis failures are recorded as ERROR status, not
// returned as errors; a corrupt archive is a property of the book, not a
// failure of the pipeline.
type Analyzer struct {
	books  store.BookRepository
	bus    *events.Bus
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer over the book repository.
func NewAnalyzer(books store.BookRepository, bus *events.Bus, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		books:  books,
		bus:    bus,
		logger: logger.With("component", "analyzer"),
	}
}

// Analyze inspects the book's file, fills in its media (type, page count,
// status) and file hash, and persists the book.
func (a *Analyzer) Analyze(ctx context.Context, book domain.Book) error {
	a.logger.Info("analyzing book", "book_id", book.ID, "url", book.URL)

	media := analyzeFile(book.URL)
	book.Media = media

	if media.Status == domain.MediaStatusReady {
		hash, err := hashFile(book.URL)
		if err != nil {
			book.Media = domain.Media{
				Status:  domain.MediaStatusError,
				Comment: err.Error(),
			}
		} else {
			book.FileHash = hash
		}
	}

	if info, err := os.Stat(book.URL); err == nil {
		book.FileSize = info.Size()
		book.FileLastModified = info.ModTime()
	}

	book.UpdatedAt = time.Now().UTC()
	if err := a.books.Save(ctx, &book); err != nil {
		return fmt.Errorf("failed to save analyzed book: %w", err)
	}

	if book.Media.Status != domain.MediaStatusReady {
		a.logger.Warn("book analysis did not succeed",
			"book_id", book.ID,
			"url", book.URL,
			"status", book.Media.Status,
			"comment", book.Media.Comment)
	}

	a.bus.Publish(events.BookUpdated{BookID: book.ID, SeriesID: book.SeriesID, LibraryID: book.LibraryID})
	return nil
}

// analyzeFile derives the media of one file from its extension and
// content.
func analyzeFile(path string) domain.Media {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbz", ".zip":
		return analyzeZip(path, MediaTypeCBZ)
	case ".epub":
		return analyzeEPUB(path)
	case ".pdf":
		return domain.Media{Status: domain.MediaStatusReady, MediaType: MediaTypePDF}
	default:
		return domain.Media{
			Status:  domain.MediaStatusUnsupported,
			Comment: fmt.Sprintf("unsupported format %s", filepath.Ext(path)),
		}
	}
}

// analyzeZip opens a zip-based comic archive and counts its image pages.
func analyzeZip(path, mediaType string) domain.Media {
	r, err := zip.OpenReader(path)
	if err != nil {
		return domain.Media{
			Status:  domain.MediaStatusError,
			Comment: fmt.Sprintf("cannot open archive: %v", err),
		}
	}
	defer r.Close()

	pages := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(f.Name))] {
			pages++
		}
	}

	if pages == 0 {
		return domain.Media{
			Status:    domain.MediaStatusError,
			MediaType: mediaType,
			Comment:   "archive contains no images",
		}
	}
	return domain.Media{
		Status:    domain.MediaStatusReady,
		MediaType: mediaType,
		PageCount: pages,
	}
}

// analyzeEPUB validates the epub container. Rendered page counts depend
// on the reader, so PageCount stays zero.
func analyzeEPUB(path string) domain.Media {
	r, err := zip.OpenReader(path)
	if err != nil {
		return domain.Media{
			Status:  domain.MediaStatusError,
			Comment: fmt.Sprintf("cannot open epub: %v", err),
		}
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name == "META-INF/container.xml" {
			return domain.Media{Status: domain.MediaStatusReady, MediaType: MediaTypeEPUB}
		}
	}
	return domain.Media{
		Status:    domain.MediaStatusError,
		MediaType: MediaTypeEPUB,
		Comment:   "missing META-INF/container.xml",
	}
}

// hashFile computes the SHA-1 of the file's content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot hash file: %w", err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("cannot hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
