package server

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"ugly/feeds"
	"ugly/models"
)

const (
	MessageMissingUrl        = "You must provide a URL."
	MessageInvalidFeedUrl    = "Invalid feed URL."
	MessageAlreadySubscribed = "You've already subscribed to that feed."
	MessageSubscribed        = "Successfully subscribed."
	MessageInvalidFeedId     = "Invalid feed ID."
	MessageUnsubscribed      = "Successfully unsubscribed."
	MessageInternalError     = "Something went wrong on our end."
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ugly_http_request_duration_seconds",
		Help:    "Latency of subscription service requests",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // Start at 1ms, double each bucket
	}, []string{"method", "route", "status"})

	subscribeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ugly_subscribe_requests_total",
		Help: "Subscribe requests by outcome",
	}, []string{"outcome"})

	unsubscribeOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ugly_unsubscribe_requests_total",
		Help: "Unsubscribe requests by outcome",
	}, []string{"outcome"})
)

// Store is the persistence the service needs
type Store interface {
	ListSubscribed(ctx context.Context) ([]models.Feed, error)
	FindFeedByUrl(ctx context.Context, url string) (*models.Feed, error)
	IsSubscribed(ctx context.Context, feedId int64) (bool, error)
	CreateFeed(ctx context.Context, feed models.Feed) (*models.Feed, error)
	Subscribe(ctx context.Context, feedId int64) error
	Unsubscribe(ctx context.Context, feedId int64) (bool, error)
}

type ServerConfig struct {
	// Where subscriptions are kept
	Store Store

	// Turns a submitted URL into a feed with a title
	Resolver feeds.Resolver

	// Upper bound for resolving one submitted URL
	ResolveTimeout time.Duration
}

// Returns a fiber.App serving the subscription API
func Server(config *ServerConfig) *fiber.App {
	if config.ResolveTimeout <= 0 {
		config.ResolveTimeout = 30 * time.Second
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		// Values from the context outlive the request as metric labels
		Immutable: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		latency := time.Since(start)
		requestDuration.WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(c.Response().StatusCode())).
			Observe(latency.Seconds())

		log.WithFields(log.Fields{
			"method":    c.Method(),
			"route":     c.Route().Path,
			"status":    c.Response().StatusCode(),
			"latency":   latency,
			"requestId": c.Locals("requestid"),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	api.Get("/feeds", func(c *fiber.Ctx) error {
		subscribed, err := config.Store.ListSubscribed(c.UserContext())
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error listing feeds")
			return internalError(c)
		}

		return c.JSON(models.FeedsResponse{
			Count: len(subscribed),
			Feeds: lo.ToSlicePtr(subscribed),
		})
	})

	subscribe := func(c *fiber.Ctx) error {
		return handleSubscribe(c, config)
	}
	api.Get("/subscribe", subscribe)
	api.Post("/subscribe", subscribe)

	unsubscribe := func(c *fiber.Ctx) error {
		return handleUnsubscribe(c, config)
	}
	api.Get("/unsubscribe/:id", unsubscribe)
	api.Post("/unsubscribe/:id", unsubscribe)

	return app
}

func handleSubscribe(c *fiber.Ctx, config *ServerConfig) error {
	feedUrl := strings.TrimSpace(c.FormValue("url"))
	if feedUrl == "" {
		feedUrl = strings.TrimSpace(c.Query("url"))
	}
	if feedUrl == "" {
		subscribeOutcomes.WithLabelValues("missing_url").Inc()
		return fail(c, fiber.StatusBadRequest, MessageMissingUrl)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), config.ResolveTimeout)
	defer cancel()

	// Find the feed below the requested resource
	resolved, err := config.Resolver.Resolve(ctx, feedUrl)
	if err != nil {
		log.WithFields(log.Fields{
			"url":   feedUrl,
			"error": err,
		}).Info("Could not resolve feed")
		subscribeOutcomes.WithLabelValues("invalid_url").Inc()
		return fail(c, fiber.StatusBadRequest, MessageInvalidFeedUrl)
	}

	feed, err := config.Store.FindFeedByUrl(ctx, resolved.Url)
	if err != nil {
		return storeError(c, err)
	}

	if feed != nil {
		subscribed, err := config.Store.IsSubscribed(ctx, feed.Id)
		if err != nil {
			return storeError(c, err)
		}
		if subscribed {
			subscribeOutcomes.WithLabelValues("already_subscribed").Inc()
			return c.JSON(models.SubscribeResponse{
				Feed:    feed,
				Message: MessageAlreadySubscribed,
			})
		}
	} else {
		feed, err = config.Store.CreateFeed(ctx, *resolved)
		if err != nil {
			return storeError(c, err)
		}
	}

	if err := config.Store.Subscribe(ctx, feed.Id); err != nil {
		return storeError(c, err)
	}

	log.WithFields(log.Fields{
		"id":    feed.Id,
		"url":   feed.Url,
		"title": feed.Title,
	}).Info("Subscribed to feed")
	subscribeOutcomes.WithLabelValues("subscribed").Inc()

	return c.JSON(models.SubscribeResponse{
		Feed:    feed,
		Message: MessageSubscribed,
	})
}

func handleUnsubscribe(c *fiber.Ctx, config *ServerConfig) error {
	feedId, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		unsubscribeOutcomes.WithLabelValues("invalid_id").Inc()
		return fail(c, fiber.StatusBadRequest, MessageInvalidFeedId)
	}

	removed, err := config.Store.Unsubscribe(c.UserContext(), feedId)
	if err != nil {
		return storeError(c, err)
	}
	if !removed {
		unsubscribeOutcomes.WithLabelValues("invalid_id").Inc()
		return fail(c, fiber.StatusBadRequest, MessageInvalidFeedId)
	}

	log.WithFields(log.Fields{
		"id": feedId,
	}).Info("Unsubscribed from feed")
	unsubscribeOutcomes.WithLabelValues("unsubscribed").Inc()

	return c.JSON(models.MessageResponse{Message: MessageUnsubscribed})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(models.MessageResponse{Message: message})
}

func storeError(c *fiber.Ctx, err error) error {
	log.WithFields(log.Fields{
		"path":  c.Path(),
		"error": err,
	}).Error("Storage error")
	return internalError(c)
}

func internalError(c *fiber.Ctx) error {
	return fail(c, fiber.StatusInternalServerError, MessageInternalError)
}
