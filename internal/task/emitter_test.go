package task

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avellar/mangrove/internal/domain"
)

type countingNotifier struct {
	n atomic.Int32
}

func (c *countingNotifier) Notify() { c.n.Add(1) }

func TestEmitter_NotifiesOncePerSubmit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore()
	emitter := NewEmitter(store, testLogger())

	notifier := &countingNotifier{}
	emitter.SetNotifier(notifier)

	require.NoError(t, emitter.ScanLibrary(ctx, uuid.New(), false, PriorityDefault))
	require.NoError(t, emitter.RebuildIndex(ctx, nil, PriorityLowest))

	assert.Equal(t, int32(2), notifier.n.Load())

	counts, err := store.CountByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[KindScanLibrary])
	assert.Equal(t, 1, counts[KindRebuildIndex])
}

func TestEmitter_WorksWithoutNotifier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	emitter := NewEmitter(NewMemStore(), testLogger())

	// Before the processor is wired in, submissions must still land.
	assert.NoError(t, emitter.AnalyzeBook(ctx, domain.Book{ID: uuid.New(), SeriesID: uuid.New()}, PriorityDefault))
}

func TestEmitter_AnalyzeBooksOrdersBySeriesAndNumber(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore()
	emitter := NewEmitter(store, testLogger())

	seriesA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	seriesB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	book := func(series uuid.UUID, name string, number float64) domain.Book {
		return domain.Book{
			ID:       uuid.New(),
			SeriesID: series,
			Name:     name,
			Metadata: domain.BookMetadata{NumberSort: number},
		}
	}

	b3 := book(seriesA, "Saga v3", 3)
	b1 := book(seriesA, "Saga v1", 1)
	other := book(seriesB, "Paper Girls v1", 1)

	require.NoError(t, emitter.AnalyzeBooks(ctx, []domain.Book{other, b3, b1}, PriorityDefault))

	// Enqueue order follows series id, then number within a series.
	var got []uuid.UUID
	for {
		claimed, err := store.TakeFirst(ctx, "worker")
		require.NoError(t, err)
		if claimed == nil {
			break
		}
		got = append(got, claimed.(AnalyzeBook).BookID)
	}
	assert.Equal(t, []uuid.UUID{b1.ID, b3.ID, other.ID}, got)
}

func TestEmitter_AnalyzeBooksEmptyIsNoOp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemStore()
	emitter := NewEmitter(store, testLogger())

	notifier := &countingNotifier{}
	emitter.SetNotifier(notifier)

	require.NoError(t, emitter.AnalyzeBooks(ctx, nil, PriorityDefault))
	assert.Equal(t, int32(0), notifier.n.Load())
}
