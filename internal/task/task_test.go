package task

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampPriority(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PriorityMin, ClampPriority(-5))
	assert.Equal(t, PriorityMax, ClampPriority(42))
	assert.Equal(t, PriorityDefault, ClampPriority(PriorityDefault))
	assert.Equal(t, PriorityMin, ClampPriority(PriorityMin))
	assert.Equal(t, PriorityMax, ClampPriority(PriorityMax))
}

func TestTaskUniqueIDs(t *testing.T) {
	t.Parallel()

	bookID := uuid.New()
	seriesID := uuid.New()
	libraryID := uuid.New()

	t.Run("derived from kind and primary key", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "SCAN_LIBRARY_"+libraryID.String(),
			NewScanLibrary(libraryID, false, PriorityDefault).UniqueID())
		assert.Equal(t, "ANALYZE_BOOK_"+bookID.String(),
			NewAnalyzeBook(bookID, seriesID, PriorityDefault).UniqueID())
		assert.Equal(t, "REFRESH_SERIES_METADATA_"+seriesID.String(),
			NewRefreshSeriesMetadata(seriesID, PriorityDefault).UniqueID())
	})

	t.Run("same entity yields same id regardless of flags", func(t *testing.T) {
		t.Parallel()

		shallow := NewScanLibrary(libraryID, false, PriorityDefault)
		deep := NewScanLibrary(libraryID, true, PriorityHighest)
		assert.Equal(t, shallow.UniqueID(), deep.UniqueID())
	})

	t.Run("rebuild index is a singleton", func(t *testing.T) {
		t.Parallel()

		all := NewRebuildIndex(nil, PriorityLowest)
		books := NewRebuildIndex([]string{"book"}, PriorityLowest)
		assert.Equal(t, all.UniqueID(), books.UniqueID())
	})
}

func TestTaskGrouping(t *testing.T) {
	t.Parallel()

	seriesID := uuid.New()

	task := NewAnalyzeBook(uuid.New(), seriesID, PriorityDefault)
	assert.Equal(t, seriesID.String(), task.GroupID())

	scan := NewScanLibrary(uuid.New(), false, PriorityDefault)
	assert.Empty(t, scan.GroupID())
}

func TestDecodeTask(t *testing.T) {
	t.Parallel()

	t.Run("round trip preserves payload and queue columns", func(t *testing.T) {
		t.Parallel()

		original := NewRefreshBookMetadata(uuid.New(), uuid.New(), []string{"title"}, PriorityHigh)
		payload, err := EncodePayload(original)
		require.NoError(t, err)

		decoded, err := DecodeTask(original.Kind(), payload, original.Priority(), original.GroupID())
		require.NoError(t, err)
		assert.Equal(t, original, decoded)
	})

	t.Run("priority is clamped on decode", func(t *testing.T) {
		t.Parallel()

		original := NewScanLibrary(uuid.New(), true, PriorityDefault)
		payload, err := EncodePayload(original)
		require.NoError(t, err)

		decoded, err := DecodeTask(KindScanLibrary, payload, 99, "")
		require.NoError(t, err)
		assert.Equal(t, PriorityMax, decoded.Priority())
	})

	t.Run("unknown kind fails", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeTask("DEFRAGMENT_MOON", []byte(`{}`), PriorityDefault, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "DEFRAGMENT_MOON")
	})

	t.Run("malformed payload fails", func(t *testing.T) {
		t.Parallel()

		_, err := DecodeTask(KindAnalyzeBook, []byte(`{not json`), PriorityDefault, "")
		assert.Error(t, err)
	})
}
