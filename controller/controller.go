package controller

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	log "github.com/sirupsen/logrus"

	"ugly/api"
	"ugly/dispatch"
	"ugly/models"
	"ugly/status"
	"ugly/store"
)

const (
	DefaultWorkingMessage      = "Working..."
	DefaultGenericError        = "Something went wrong."
	DefaultSubscribedMessage   = "Successfully subscribed."
	DefaultUnsubscribedMessage = "Successfully unsubscribed."
)

// Service is the part of the remote API the controller drives.
type Service interface {
	Subscribe(feedUrl string, callback api.SubscribeCallback)
	Unsubscribe(feedId int64, callback api.UnsubscribeCallback)
}

type Config struct {
	WorkingMessage string
	GenericError   string
}

// Controller runs subscribe and unsubscribe requests and applies their
// outcome, first to the status channel, then to the collection.
// Every method must be called on the loop.
type Controller struct {
	service    Service
	loop       *dispatch.Loop
	collection *store.Collection
	status     *status.Channel
	config     Config

	pending map[int64]bool

	pendingListeners map[int]func(feedId int64, pending bool)
	nextListen       int
}

func New(service Service, loop *dispatch.Loop, collection *store.Collection, channel *status.Channel, config Config) *Controller {
	if config.WorkingMessage == "" {
		config.WorkingMessage = DefaultWorkingMessage
	}
	if config.GenericError == "" {
		config.GenericError = DefaultGenericError
	}

	return &Controller{
		service:    service,
		loop:       loop,
		collection: collection,
		status:     channel,
		config:     config,
		pending:    map[int64]bool{},

		pendingListeners: map[int]func(feedId int64, pending bool){},
	}
}

// Subscribe asks the service to subscribe to feedUrl. completed runs exactly
// once on the loop after the outcome has been applied; ok is true on success.
func (c *Controller) Subscribe(feedUrl string, completed func(ok bool)) {
	if completed == nil {
		completed = func(bool) {}
	}

	feedUrl = strings.TrimSpace(feedUrl)
	if feedUrl == "" {
		// The form never lets an empty url through, nothing to send
		c.status.ShowError(c.config.GenericError)
		completed(false)
		return
	}

	c.status.ShowStatus(c.config.WorkingMessage)

	c.service.Subscribe(feedUrl, api.NewCallback(func(response *models.SubscribeResponse, err error) {
		c.loop.Post(func() {
			ok := c.subscribed(feedUrl, response, err)
			completed(ok)
		})
	}))
}

func (c *Controller) subscribed(feedUrl string, response *models.SubscribeResponse, err error) bool {
	if err != nil {
		log.WithFields(log.Fields{
			"url":   feedUrl,
			"error": err,
		}).Warn("Subscribe failed")
		c.status.ShowError(api.UserMessage(err, c.config.GenericError))
		return false
	}

	message := response.Message
	if message == "" {
		message = DefaultSubscribedMessage
	}
	c.status.ShowStatus(message)
	added := c.collection.Add(*response.Feed)

	log.WithFields(log.Fields{
		"url":   feedUrl,
		"id":    response.Feed.Id,
		"title": response.Feed.Title,
		"added": added,
	}).Info("Subscribed")
	return true
}

// Unsubscribe asks the service to drop feed. It reports false without
// sending anything when a request for the same feed is still in flight.
func (c *Controller) Unsubscribe(feed models.Feed) bool {
	return c.UnsubscribeThen(feed, nil)
}

// UnsubscribeThen is Unsubscribe with a callback that runs on the loop after
// the outcome has been applied.
func (c *Controller) UnsubscribeThen(feed models.Feed, completed func(ok bool)) bool {
	if c.pending[feed.Id] {
		log.WithFields(log.Fields{
			"id": feed.Id,
		}).Debug("Unsubscribe already in flight")
		return false
	}
	if completed == nil {
		completed = func(bool) {}
	}
	c.setPending(feed.Id, true)

	c.status.ShowStatus(c.config.WorkingMessage)

	c.service.Unsubscribe(feed.Id, api.NewCallback(func(response *models.MessageResponse, err error) {
		c.loop.Post(func() {
			c.setPending(feed.Id, false)
			ok := c.unsubscribed(feed, response, err)
			completed(ok)
		})
	}))
	return true
}

func (c *Controller) unsubscribed(feed models.Feed, response *models.MessageResponse, err error) bool {
	if err != nil {
		log.WithFields(log.Fields{
			"id":    feed.Id,
			"error": err,
		}).Warn("Unsubscribe failed")
		c.status.ShowError(api.UserMessage(err, c.config.GenericError))
		return false
	}

	message := response.Message
	if message == "" {
		message = DefaultUnsubscribedMessage
	}
	c.status.ShowStatus(message)
	c.collection.Remove(feed.Id)

	log.WithFields(log.Fields{
		"id":    feed.Id,
		"title": feed.Title,
	}).Info("Unsubscribed")
	return true
}

// Pending reports whether an unsubscribe for feedId is in flight.
func (c *Controller) Pending(feedId int64) bool {
	return c.pending[feedId]
}

// SubscribePending registers listener for every change of Pending. The
// returned function removes it again.
func (c *Controller) SubscribePending(listener func(feedId int64, pending bool)) func() {
	key := c.nextListen
	c.nextListen++
	c.pendingListeners[key] = listener

	return func() {
		delete(c.pendingListeners, key)
	}
}

func (c *Controller) setPending(feedId int64, pending bool) {
	if pending {
		c.pending[feedId] = true
	} else {
		delete(c.pending, feedId)
	}

	keys := lo.Keys(c.pendingListeners)
	sort.Ints(keys)
	for _, key := range keys {
		if listener, ok := c.pendingListeners[key]; ok {
			listener(feedId, pending)
		}
	}
}
