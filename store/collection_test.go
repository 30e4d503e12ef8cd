package store_test

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ugly/api"
	"ugly/dispatch"
	"ugly/models"
	"ugly/store"
)

type fakeSource struct {
	mu        sync.Mutex
	callbacks []api.FeedsCallback
}

func (s *fakeSource) ListFeeds(callback api.FeedsCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

func (s *fakeSource) respond(t *testing.T, feeds []*models.Feed, err error) {
	t.Helper()
	s.mu.Lock()
	require.NotEmpty(t, s.callbacks)
	callback := s.callbacks[0]
	s.callbacks = s.callbacks[1:]
	s.mu.Unlock()
	callback.Result(feeds, err)
}

func setup(t *testing.T) (*store.Collection, *fakeSource, *dispatch.Loop) {
	t.Helper()
	loop := dispatch.NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})

	source := &fakeSource{}
	return store.NewCollection(source, loop), source, loop
}

func feed(id int64, title string) models.Feed {
	return models.Feed{Id: id, Url: "http://example.com/" + title, Title: title}
}

func titles(feeds []models.Feed) []string {
	return lo.Map(feeds, func(f models.Feed, _ int) string { return f.Title })
}

func ids(feeds []models.Feed) []int64 {
	return lo.Map(feeds, func(f models.Feed, _ int) int64 { return f.Id })
}

func TestAddKeepsTitleOrder(t *testing.T) {
	collection, _, loop := setup(t)

	loop.Do(func() {
		collection.Add(feed(1, "Charlie"))
		collection.Add(feed(2, "Alpha"))
		collection.Add(feed(3, "Bravo"))
		collection.Add(feed(4, "Alpha"))
	})

	feeds := collection.Feeds()
	assert.Equal(t, []string{"Alpha", "Alpha", "Bravo", "Charlie"}, titles(feeds))
	// Equal titles keep insertion order
	assert.Equal(t, []int64{2, 4, 3, 1}, ids(feeds))
}

func TestOrderHoldsForRandomSequences(t *testing.T) {
	collection, _, loop := setup(t)
	rng := rand.New(rand.NewSource(42))
	letters := []string{"a", "b", "c", "d", "e"}

	loop.Do(func() {
		for i := 0; i < 500; i++ {
			id := int64(rng.Intn(30) + 1)
			if rng.Intn(3) == 0 {
				collection.Remove(id)
			} else {
				collection.Add(feed(id, letters[rng.Intn(len(letters))]))
			}

			feeds := collection.Feeds()
			sorted := sort.SliceIsSorted(feeds, func(i, j int) bool {
				return feeds[i].Title < feeds[j].Title
			})
			unique := len(lo.UniqBy(feeds, func(f models.Feed) int64 { return f.Id })) == len(feeds)
			if !assert.True(t, sorted, "step %d", i) || !assert.True(t, unique, "step %d", i) {
				return
			}
		}
	})
}

func TestAddIsIdempotent(t *testing.T) {
	collection, _, loop := setup(t)

	var events []models.CollectionEvent
	loop.Do(func() {
		collection.Subscribe(func(event models.CollectionEvent) {
			events = append(events, event)
		})
		assert.True(t, collection.Add(feed(1, "A")))
		assert.False(t, collection.Add(models.Feed{Id: 1, Title: "Renamed"}))
	})

	require.Len(t, events, 1)
	assert.Equal(t, models.FeedAdded, events[0].Type)
	assert.Equal(t, []string{"A"}, titles(collection.Feeds()))
}

func TestRemove(t *testing.T) {
	collection, _, loop := setup(t)

	var events []models.CollectionEvent
	loop.Do(func() {
		collection.Add(feed(1, "A"))
		collection.Add(feed(2, "B"))
		collection.Subscribe(func(event models.CollectionEvent) {
			events = append(events, event)
		})

		assert.False(t, collection.Remove(3))
		assert.True(t, collection.Remove(2))
		assert.False(t, collection.Remove(2))
	})

	require.Len(t, events, 1)
	assert.Equal(t, models.FeedRemoved, events[0].Type)
	assert.Equal(t, int64(2), events[0].Feed.Id)
	assert.Equal(t, []int64{1}, ids(collection.Feeds()))
}

func TestNotificationsAreSynchronous(t *testing.T) {
	collection, _, loop := setup(t)

	loop.Do(func() {
		var seen []int
		collection.Subscribe(func(event models.CollectionEvent) {
			seen = append(seen, collection.Len())
		})
		collection.Add(feed(1, "A"))
		// Listener has already run and saw the new state
		assert.Equal(t, []int{1}, seen)
		collection.Remove(1)
		assert.Equal(t, []int{1, 0}, seen)
	})
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	collection, _, loop := setup(t)

	count := 0
	loop.Do(func() {
		release := collection.Subscribe(func(models.CollectionEvent) { count++ })
		collection.Add(feed(1, "A"))
		release()
		collection.Add(feed(2, "B"))
	})
	assert.Equal(t, 1, count)
}

func fetch(t *testing.T, collection *store.Collection, loop *dispatch.Loop) chan error {
	t.Helper()
	done := make(chan error, 1)
	loop.Do(func() {
		collection.FetchAll(func(err error) { done <- err })
	})
	return done
}

func wait(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("fetch never completed")
		return nil
	}
}

func TestFetchAllReplacesSet(t *testing.T) {
	collection, source, loop := setup(t)

	var events []models.CollectionEvent
	loop.Do(func() {
		collection.Add(feed(9, "Old"))
		collection.Subscribe(func(event models.CollectionEvent) {
			events = append(events, event)
		})
	})

	done := fetch(t, collection, loop)
	source.respond(t, []*models.Feed{
		{Id: 2, Title: "B"},
		{Id: 1, Title: "A"},
	}, nil)
	require.NoError(t, wait(t, done))

	assert.Equal(t, []int64{1, 2}, ids(collection.Feeds()))
	var fetching bool
	loop.Do(func() {
		fetching = collection.Fetching()
	})
	assert.False(t, fetching)
	require.Len(t, events, 1)
	assert.Equal(t, models.FeedsReset, events[0].Type)
}

func TestFetchAllFailureKeepsState(t *testing.T) {
	collection, source, loop := setup(t)
	loop.Do(func() {
		collection.Add(feed(1, "A"))
	})

	done := fetch(t, collection, loop)
	failure := &api.ProtocolError{Err: errors.New("bad envelope")}
	source.respond(t, nil, failure)

	err := wait(t, done)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, []int64{1}, ids(collection.Feeds()))
}

func TestFetchAllWhileFetching(t *testing.T) {
	collection, source, loop := setup(t)

	first := fetch(t, collection, loop)
	second := fetch(t, collection, loop)
	assert.ErrorIs(t, wait(t, second), store.ErrFetchInProgress)

	source.respond(t, []*models.Feed{}, nil)
	assert.NoError(t, wait(t, first))
}

func TestFetchAllKeepsMutationsMadeWhileInFlight(t *testing.T) {
	collection, source, loop := setup(t)

	done := fetch(t, collection, loop)
	loop.Do(func() {
		// Confirmed while the fetch was still running
		collection.Add(feed(3, "C"))
		collection.Remove(1)
	})

	// The response was produced before those mutations happened
	source.respond(t, []*models.Feed{
		{Id: 1, Title: "A"},
		{Id: 2, Title: "B"},
	}, nil)
	require.NoError(t, wait(t, done))

	assert.Equal(t, []int64{2, 3}, ids(collection.Feeds()))
}

func TestGet(t *testing.T) {
	collection, _, loop := setup(t)
	loop.Do(func() {
		collection.Add(feed(1, "A"))
	})

	got, ok := collection.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "A", got.Title)

	_, ok = collection.Get(2)
	assert.False(t, ok)
}
