package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"ugly/api"
	"ugly/dispatch"
	"ugly/models"
)

var ErrFetchInProgress = errors.New("feed fetch already in progress")

// Source is where the collection loads the full feed set from.
type Source interface {
	ListFeeds(callback api.FeedsCallback)
}

type Listener func(event models.CollectionEvent)

type mutation struct {
	add    bool
	feed   models.Feed
	feedId int64
}

// Collection is the ordered, deduplicated set of subscribed feeds. Feeds are
// kept sorted by title, ties keep insertion order. All methods except the
// read-only snapshots must be called on the loop.
type Collection struct {
	source Source
	loop   *dispatch.Loop

	mu    sync.RWMutex
	feeds []models.Feed

	listeners  map[int]Listener
	nextListen int

	fetching bool
	journal  []mutation
}

func NewCollection(source Source, loop *dispatch.Loop) *Collection {
	return &Collection{
		source:    source,
		loop:      loop,
		feeds:     []models.Feed{},
		listeners: map[int]Listener{},
	}
}

// Subscribe registers listener for every mutation. The returned function
// removes it again.
func (c *Collection) Subscribe(listener Listener) func() {
	key := c.nextListen
	c.nextListen++
	c.listeners[key] = listener

	return func() {
		delete(c.listeners, key)
	}
}

func (c *Collection) notify(event models.CollectionEvent) {
	keys := lo.Keys(c.listeners)
	sort.Ints(keys)
	for _, key := range keys {
		if listener, ok := c.listeners[key]; ok {
			listener(event)
		}
	}
}

// FetchAll replaces the whole set with what the service returns. On failure
// the current set is left alone and done gets the error. done may be nil.
func (c *Collection) FetchAll(done func(err error)) {
	if done == nil {
		done = func(error) {}
	}
	if c.fetching {
		done(ErrFetchInProgress)
		return
	}
	c.fetching = true
	c.journal = nil

	c.source.ListFeeds(api.NewCallback(func(feeds []*models.Feed, err error) {
		c.loop.Post(func() {
			c.fetching = false
			journal := c.journal
			c.journal = nil

			if err != nil {
				log.WithFields(log.Fields{
					"error": err,
				}).Warn("Fetching feeds failed")
				done(err)
				return
			}

			c.replace(feeds, journal)
			log.WithFields(log.Fields{
				"count":    c.Len(),
				"replayed": len(journal),
			}).Info("Fetched feeds")
			c.notify(models.CollectionEvent{Type: models.FeedsReset})
			done(nil)
		})
	}))
}

func (c *Collection) replace(feeds []*models.Feed, journal []mutation) {
	next := make([]models.Feed, 0, len(feeds))
	for _, feed := range feeds {
		next = append(next, *feed)
	}

	// Mutations confirmed while the fetch was in flight win over the fetched set
	for _, m := range journal {
		if m.add {
			if !lo.ContainsBy(next, func(f models.Feed) bool { return f.Id == m.feed.Id }) {
				next = append(next, m.feed)
			}
		} else {
			next = lo.Reject(next, func(f models.Feed, _ int) bool { return f.Id == m.feedId })
		}
	}

	sort.SliceStable(next, func(i, j int) bool {
		return next[i].Title < next[j].Title
	})

	c.mu.Lock()
	c.feeds = next
	c.mu.Unlock()
}

// Add inserts feed in title order. It reports false and emits nothing when a
// feed with the same id is already present.
func (c *Collection) Add(feed models.Feed) bool {
	if c.fetching {
		c.journal = append(c.journal, mutation{add: true, feed: feed})
	}

	c.mu.Lock()
	if lo.ContainsBy(c.feeds, func(f models.Feed) bool { return f.Id == feed.Id }) {
		c.mu.Unlock()
		return false
	}
	// Insert after every feed with a title <= the new one to keep ties stable
	at := sort.Search(len(c.feeds), func(i int) bool {
		return c.feeds[i].Title > feed.Title
	})
	c.feeds = append(c.feeds, models.Feed{})
	copy(c.feeds[at+1:], c.feeds[at:])
	c.feeds[at] = feed
	c.mu.Unlock()

	c.notify(models.CollectionEvent{Type: models.FeedAdded, Feed: feed})
	return true
}

// Remove deletes the feed with the given id. Removing an unknown id is not an
// error, it just reports false and emits nothing.
func (c *Collection) Remove(feedId int64) bool {
	if c.fetching {
		c.journal = append(c.journal, mutation{feedId: feedId})
	}

	c.mu.Lock()
	_, at, ok := lo.FindIndexOf(c.feeds, func(f models.Feed) bool { return f.Id == feedId })
	if !ok {
		c.mu.Unlock()
		return false
	}
	removed := c.feeds[at]
	c.feeds = append(c.feeds[:at], c.feeds[at+1:]...)
	c.mu.Unlock()

	c.notify(models.CollectionEvent{Type: models.FeedRemoved, Feed: removed})
	return true
}

// Feeds returns a snapshot in display order.
func (c *Collection) Feeds() []models.Feed {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Feed(nil), c.feeds...)
}

func (c *Collection) Get(feedId int64) (models.Feed, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Find(c.feeds, func(f models.Feed) bool { return f.Id == feedId })
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.feeds)
}

// Fetching reports whether a FetchAll is waiting for the service.
func (c *Collection) Fetching() bool {
	return c.fetching
}
