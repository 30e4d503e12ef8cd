package app_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ugly/app"
	"ugly/config"
	"ugly/db"
	"ugly/feeds"
	"ugly/form"
	"ugly/models"
	"ugly/server"
	"ugly/status"
)

// fakeService answers with canned bodies keyed by path
type fakeService struct {
	mu        sync.Mutex
	responses map[string]response
}

type response struct {
	status int
	body   string
}

func (s *fakeService) set(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = response{status: status, body: body}
}

func (s *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp, ok := s.responses[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		resp = response{status: http.StatusNotFound, body: `{"message":"Not found"}`}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	io.WriteString(w, resp.body)
}

func start(t *testing.T, handler http.Handler) *app.Session {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Client.ServerUrl = srv.URL
	cfg.Client.Timeout = config.TomlDuration{Duration: 5 * time.Second}

	session := app.NewSession(cfg, io.Discard)
	t.Cleanup(session.Close)

	fetched := make(chan error, 1)
	session.Start(context.Background(), func(err error) { fetched <- err })
	select {
	case err := <-fetched:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("initial fetch never completed")
	}
	return session
}

func await(t *testing.T, done chan bool) bool {
	t.Helper()
	select {
	case ok := <-done:
		return ok
	case <-time.After(5 * time.Second):
		t.Fatal("request never completed")
		return false
	}
}

func submit(t *testing.T, session *app.Session, feedUrl string) bool {
	t.Helper()
	done := make(chan bool, 1)
	var accepted bool
	session.Loop.Do(func() {
		session.Terminal.SetInput(feedUrl)
		accepted = session.Form.SubmitThen(feedUrl, func(ok bool) { done <- ok })
	})
	require.True(t, accepted)
	return await(t, done)
}

func snapshot(session *app.Session) (titles []string, message status.Message, state form.State, input string) {
	session.Loop.Do(func() {
		titles = lo.Map(session.Collection.Feeds(), func(f models.Feed, _ int) string { return f.Title })
		message = session.Status.Current()
		state = session.Form.State()
		input = session.Terminal.Input()
	})
	return
}

func TestSubscribeSucceeds(t *testing.T) {
	service := &fakeService{responses: map[string]response{}}
	service.set("/api/feeds", 200, `{"count":0,"feeds":[]}`)
	service.set("/api/subscribe", 200, `{"feed":{"id":1,"url":"http://a.example/feed","title":"A"},"message":"Subscribed"}`)
	session := start(t, service)

	assert.True(t, submit(t, session, "http://a.example/feed"))

	titles, message, state, input := snapshot(session)
	assert.Equal(t, []string{"A"}, titles)
	assert.Equal(t, status.Message{Kind: status.KindStatus, Text: "Subscribed"}, message)
	assert.Equal(t, form.Idle, state)
	assert.Equal(t, "", input)
	assert.True(t, session.Terminal.Enabled())
	assert.Len(t, session.Terminal.Rows(), 1)
}

func TestSubscribeFails(t *testing.T) {
	service := &fakeService{responses: map[string]response{}}
	service.set("/api/feeds", 200, `{"count":1,"feeds":[{"id":1,"url":"http://a.example/feed","title":"A"}]}`)
	service.set("/api/subscribe", 400, `{"message":"Invalid URL"}`)
	session := start(t, service)

	assert.False(t, submit(t, session, "not a feed"))

	titles, message, state, input := snapshot(session)
	assert.Equal(t, []string{"A"}, titles)
	assert.Equal(t, status.Message{Kind: status.KindError, Text: "Invalid URL"}, message)
	assert.Equal(t, form.Idle, state)
	assert.Equal(t, "not a feed", input)
	assert.True(t, session.Terminal.Enabled())
}

func TestUnsubscribeRow(t *testing.T) {
	service := &fakeService{responses: map[string]response{}}
	service.set("/api/feeds", 200, `{"count":2,"feeds":[
		{"id":2,"url":"http://b.example/feed","title":"B"},
		{"id":1,"url":"http://a.example/feed","title":"A"}]}`)
	service.set("/api/unsubscribe/2", 200, `{"message":"Successfully unsubscribed."}`)
	session := start(t, service)

	require.Len(t, session.Terminal.Rows(), 2)
	row, ok := session.Terminal.Row(2)
	require.True(t, ok)
	require.Equal(t, int64(2), row.Feed.Id)

	done := make(chan bool, 1)
	var first, second bool
	session.Loop.Do(func() {
		first = session.Controller.UnsubscribeThen(row.Feed, func(ok bool) { done <- ok })
		// Second click on the same row while in flight does nothing
		second = row.Unsubscribe()
	})
	assert.True(t, first)
	assert.False(t, second)
	assert.True(t, await(t, done))

	titles, message, _, _ := snapshot(session)
	assert.Equal(t, []string{"A"}, titles)
	assert.Equal(t, "Successfully unsubscribed.", message.Text)
	assert.Len(t, session.Terminal.Rows(), 1)
}

func TestInitialFetchFailure(t *testing.T) {
	service := &fakeService{responses: map[string]response{}}
	service.set("/api/feeds", 200, `{"count":1}`)

	srv := httptest.NewServer(service)
	defer srv.Close()

	cfg := config.Default()
	cfg.Client.ServerUrl = srv.URL
	session := app.NewSession(cfg, io.Discard)
	defer session.Close()

	fetched := make(chan error, 1)
	session.Start(context.Background(), func(err error) { fetched <- err })
	select {
	case err := <-fetched:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("initial fetch never completed")
	}
	assert.Equal(t, 0, session.Collection.Len())
}

func TestCloseWithoutStart(t *testing.T) {
	session := app.NewSession(config.Default(), io.Discard)
	session.Close()
}

type pageResolver struct{}

func (pageResolver) Resolve(ctx context.Context, rawUrl string) (*models.Feed, error) {
	if !strings.HasPrefix(rawUrl, "http://") {
		return nil, feeds.ErrNotAFeed
	}
	name := strings.TrimPrefix(rawUrl, "http://")
	return &models.Feed{Url: rawUrl, Title: strings.ToUpper(name[:1]) + name[1:]}, nil
}

func TestAgainstReferenceServer(t *testing.T) {
	database := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, db.Migrate(database))
	store, err := db.NewDB(database)
	require.NoError(t, err)
	defer store.Close()

	fiberApp := server.Server(&server.ServerConfig{
		Store:    store,
		Resolver: pageResolver{},
	})
	session := start(t, adaptor.FiberApp(fiberApp))

	assert.True(t, submit(t, session, "http://zulu"))
	assert.True(t, submit(t, session, "http://alpha"))
	assert.False(t, submit(t, session, "ftp://nope"))

	titles, message, _, input := snapshot(session)
	assert.Equal(t, []string{"Alpha", "Zulu"}, titles)
	assert.Equal(t, status.Message{Kind: status.KindError, Text: server.MessageInvalidFeedUrl}, message)
	assert.Equal(t, "ftp://nope", input)

	// Subscribing again keeps a single row
	assert.True(t, submit(t, session, "http://alpha"))
	titles, message, _, _ = snapshot(session)
	assert.Equal(t, []string{"Alpha", "Zulu"}, titles)
	assert.Equal(t, server.MessageAlreadySubscribed, message.Text)

	feed, ok := session.Collection.Get(idOf(t, session, "Zulu"))
	require.True(t, ok)
	done := make(chan bool, 1)
	session.Loop.Do(func() {
		session.Controller.UnsubscribeThen(feed, func(ok bool) { done <- ok })
	})
	assert.True(t, await(t, done))

	// A fresh fetch agrees with what the session shows
	fetched := make(chan error, 1)
	session.Loop.Do(func() {
		session.Collection.FetchAll(func(err error) { fetched <- err })
	})
	require.NoError(t, <-fetched)
	titles, _, _, _ = snapshot(session)
	assert.Equal(t, []string{"Alpha"}, titles)
}

func idOf(t *testing.T, session *app.Session, title string) int64 {
	t.Helper()
	feed, ok := lo.Find(session.Collection.Feeds(), func(f models.Feed) bool { return f.Title == title })
	require.True(t, ok)
	return feed.Id
}
