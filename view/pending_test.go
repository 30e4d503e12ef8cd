package view_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ugly/api"
	"ugly/controller"
	"ugly/dispatch"
	"ugly/models"
	"ugly/status"
	"ugly/store"
	"ugly/view"
)

// heldService keeps unsubscribe callbacks until the test answers them
type heldService struct {
	mu        sync.Mutex
	callbacks []api.UnsubscribeCallback
}

func (s *heldService) Subscribe(string, api.SubscribeCallback) {}

func (s *heldService) Unsubscribe(feedId int64, callback api.UnsubscribeCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

func (s *heldService) answer(t *testing.T, response *models.MessageResponse, err error) {
	t.Helper()
	s.mu.Lock()
	require.NotEmpty(t, s.callbacks)
	callback := s.callbacks[0]
	s.callbacks = s.callbacks[1:]
	s.mu.Unlock()
	callback.Result(response, err)
}

type pendingFixture struct {
	loop      *dispatch.Loop
	service   *heldService
	container *recordingContainer
}

func newPendingFixture(t *testing.T) *pendingFixture {
	t.Helper()
	loop := dispatch.NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})

	f := &pendingFixture{
		loop:      loop,
		service:   &heldService{},
		container: &recordingContainer{},
	}
	collection := store.NewCollection(noSource{}, loop)
	ctrl := controller.New(f.service, loop, collection, status.NewChannel(), controller.Config{})
	list := view.NewListView(collection, ctrl, f.container)
	t.Cleanup(func() { loop.Do(list.Close) })

	loop.Do(func() {
		collection.Add(models.Feed{Id: 1, Title: "A"})
		collection.Add(models.Feed{Id: 2, Title: "B"})
	})
	return f
}

// rows returns the last rendered rows, read on the loop
func (f *pendingFixture) rows() []view.Row {
	var rows []view.Row
	f.loop.Do(func() { rows = f.container.last() })
	return rows
}

func (f *pendingFixture) clickUnsubscribe(number int) bool {
	var ok bool
	f.loop.Do(func() { ok = f.container.last()[number-1].Unsubscribe() })
	return ok
}

func TestRowShowsPendingWhileUnsubscribing(t *testing.T) {
	f := newPendingFixture(t)

	require.True(t, f.clickUnsubscribe(2))
	rows := f.rows()
	require.Len(t, rows, 2)
	assert.False(t, rows[0].Pending)
	assert.True(t, rows[1].Pending)

	f.service.answer(t, &models.MessageResponse{Message: "Successfully unsubscribed."}, nil)

	rows = f.rows()
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Feed.Id)
	assert.False(t, rows[0].Pending)
}

func TestRowPendingClearedAfterFailure(t *testing.T) {
	f := newPendingFixture(t)

	require.True(t, f.clickUnsubscribe(1))
	assert.True(t, f.rows()[0].Pending)

	f.service.answer(t, nil, &api.NetworkError{Err: errors.New("connection reset")})

	rows := f.rows()
	require.Len(t, rows, 2)
	assert.False(t, rows[0].Pending)

	// The row can be used again
	assert.True(t, f.clickUnsubscribe(1))
}
