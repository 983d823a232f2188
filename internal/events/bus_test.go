package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBus_DeliversInPublishOrder(t *testing.T) {
	t.Parallel()

	bus := NewBus(16, testLogger())

	var mu sync.Mutex
	var seen []string
	bus.Subscribe(HandlerFunc(func(ctx context.Context, event Event) error {
		mu.Lock()
		seen = append(seen, event.EventType())
		mu.Unlock()
		return nil
	}))

	bookID := uuid.New()
	bus.Publish(BookAdded{BookID: bookID})
	bus.Publish(BookUpdated{BookID: bookID})
	bus.Publish(BookDeleted{BookID: bookID})
	bus.Close()

	assert.Equal(t, []string{"book_added", "book_updated", "book_deleted"}, seen)
}

func TestBus_DeliversToAllHandlers(t *testing.T) {
	t.Parallel()

	bus := NewBus(16, testLogger())

	var first, second sync.Map
	bus.Subscribe(HandlerFunc(func(ctx context.Context, event Event) error {
		first.Store(event.EventType(), true)
		return nil
	}))
	bus.Subscribe(HandlerFunc(func(ctx context.Context, event Event) error {
		second.Store(event.EventType(), true)
		return nil
	}))

	bus.Publish(LibraryAdded{LibraryID: uuid.New()})
	bus.Close()

	_, ok := first.Load("library_added")
	assert.True(t, ok)
	_, ok = second.Load("library_added")
	assert.True(t, ok)
}

func TestBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	t.Parallel()

	bus := NewBus(16, testLogger())

	bus.Subscribe(HandlerFunc(func(ctx context.Context, event Event) error {
		return errors.New("flaky handler")
	}))

	var mu sync.Mutex
	var count int
	bus.Subscribe(HandlerFunc(func(ctx context.Context, event Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	bus.Publish(SeriesAdded{SeriesID: uuid.New()})
	bus.Publish(SeriesUpdated{SeriesID: uuid.New()})
	bus.Close()

	assert.Equal(t, 2, count)
}

func TestBus_CloseDrainsPendingEvents(t *testing.T) {
	t.Parallel()

	bus := NewBus(64, testLogger())

	var mu sync.Mutex
	var count int
	bus.Subscribe(HandlerFunc(func(ctx context.Context, event Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 50; i++ {
		bus.Publish(BookUpdated{BookID: uuid.New()})
	}
	bus.Close()

	assert.Equal(t, 50, count)
}

func TestBus_PublishAfterCloseIsDropped(t *testing.T) {
	t.Parallel()

	bus := NewBus(16, testLogger())
	bus.Close()

	// Must not panic or block.
	done := make(chan struct{})
	go func() {
		bus.Publish(BookAdded{BookID: uuid.New()})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish after close blocked")
	}
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	bus := NewBus(16, testLogger())
	bus.Close()
	require.NotPanics(t, bus.Close)
}

func TestBus_ConcurrentPublishers(t *testing.T) {
	t.Parallel()

	bus := NewBus(8, testLogger())

	var mu sync.Mutex
	var count int
	bus.Subscribe(HandlerFunc(func(ctx context.Context, event Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				bus.Publish(TaskFinished{Kind: "SCAN_LIBRARY", Success: true})
			}
		}()
	}
	wg.Wait()
	bus.Close()

	assert.Equal(t, 200, count)
}
