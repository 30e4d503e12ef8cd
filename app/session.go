// Package app wires one subscription session: every component is built once
// here and handed the collaborators it needs.
package app

import (
	"context"
	"io"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ugly/api"
	"ugly/config"
	"ugly/controller"
	"ugly/dispatch"
	"ugly/form"
	"ugly/status"
	"ugly/store"
	"ugly/view"
)

type Session struct {
	Id string

	Loop       *dispatch.Loop
	Client     *api.Client
	Collection *store.Collection
	Status     *status.Channel
	Controller *controller.Controller
	Form       *form.Form
	Terminal   *view.Terminal
	List       *view.ListView
	Banner     *view.Banner

	cancel context.CancelFunc
}

// NewSession builds a session rendering to out. Start must be called to run
// the loop and load the feeds.
func NewSession(cfg *config.TomlConfig, out io.Writer) *Session {
	loop := dispatch.NewLoop()
	client := api.NewClient(cfg.Client.ServerUrl, cfg.Client.Timeout.Duration)
	collection := store.NewCollection(client, loop)
	channel := status.NewChannel()
	ctrl := controller.New(client, loop, collection, channel, controller.Config{
		WorkingMessage: cfg.Client.WorkingMessage,
		GenericError:   cfg.Client.GenericError,
	})
	terminal := view.NewTerminal(out)

	return &Session{
		Id:         uuid.New().String(),
		Loop:       loop,
		Client:     client,
		Collection: collection,
		Status:     channel,
		Controller: ctrl,
		Form:       form.New(ctrl, terminal),
		Terminal:   terminal,
		List:       view.NewListView(collection, ctrl, terminal),
		Banner:     view.NewBanner(channel, terminal),
	}
}

// Start runs the loop in the background and issues the initial fetch. done,
// if not nil, runs on the loop when the fetch has finished.
func (s *Session) Start(ctx context.Context, done func(err error)) {
	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		if err := s.Loop.Run(ctx); err != nil && err != context.Canceled {
			log.WithFields(log.Fields{
				"session": s.Id,
				"error":   err,
			}).Warn("Loop stopped")
		}
	}()

	log.WithFields(log.Fields{
		"session": s.Id,
	}).Info("Starting session")

	s.Loop.Post(func() {
		s.Collection.FetchAll(done)
	})
}

// Close tears down views, aborts in-flight requests and stops the loop.
func (s *Session) Close() {
	if s.cancel == nil {
		s.List.Close()
		s.Banner.Close()
		s.Client.Close()
		return
	}

	s.Loop.Do(func() {
		s.List.Close()
		s.Banner.Close()
	})
	s.Client.Close()
	if s.cancel != nil {
		s.cancel()
	}
	<-s.Loop.Done()
}
