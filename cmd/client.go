/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"ugly/api"
	"ugly/app"
	"ugly/config"
	"ugly/dispatch"
)

func clientFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Base URL of the subscription service",
			EnvVars: []string{"UGLY_SERVER"},
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "Timeout for a single request",
			EnvVars: []string{"UGLY_TIMEOUT"},
		},
	}
}

func clientConfig(ctx *cli.Context) *config.TomlConfig {
	cfg := loadedConfig(ctx)
	if ctx.IsSet("server") {
		cfg.Client.ServerUrl = ctx.String("server")
	}
	if ctx.IsSet("timeout") {
		cfg.Client.Timeout.Duration = ctx.Duration("timeout")
	}
	return cfg
}

// withSession starts a session, waits for the initial fetch and runs fn.
func withSession(ctx *cli.Context, fn func(session *app.Session) error) error {
	cfg := clientConfig(ctx)
	session := app.NewSession(cfg, os.Stdout)

	fetched := make(chan error, 1)
	session.Start(ctx.Context, func(err error) {
		if err != nil {
			session.Status.ShowError(api.UserMessage(err, cfg.Client.GenericError))
		}
		fetched <- err
	})
	defer session.Close()

	if err := <-fetched; err != nil {
		return cli.Exit(fmt.Sprintf("could not load feeds: %v", err), 1)
	}
	return fn(session)
}

func sessionStopped(err error) error {
	return cli.Exit(fmt.Sprintf("session stopped: %v", err), 1)
}

// awaitOutcome waits for a request started on the loop. The loop drops the
// completion if it stops first, so that ends the wait too.
func awaitOutcome(session *app.Session, done chan bool) (bool, error) {
	select {
	case ok := <-done:
		return ok, nil
	case <-session.Loop.Done():
		return false, dispatch.ErrStopped
	}
}

func feedsCmd() *cli.Command {
	return &cli.Command{
		Name:        "feeds",
		Usage:       "List subscribed feeds",
		Description: `Loads the current subscriptions from the service and prints them sorted by title.`,
		Flags:       clientFlags(),
		Action: func(ctx *cli.Context) error {
			// The initial fetch renders the list
			return withSession(ctx, func(session *app.Session) error {
				return nil
			})
		},
	}
}

func subscribeCmd() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to a feed",
		ArgsUsage: "<url>",
		Description: `Subscribes to the feed at the given URL. The URL may also point at a
web page that advertises its feed.`,
		Flags: clientFlags(),
		Action: func(ctx *cli.Context) error {
			feedUrl := ctx.Args().First()
			if feedUrl == "" {
				return cli.Exit("please specify a feed URL", 2)
			}

			return withSession(ctx, func(session *app.Session) error {
				done := make(chan bool, 1)
				err := session.Loop.Do(func() {
					session.Terminal.SetInput(feedUrl)
					if !session.Form.SubmitThen(feedUrl, func(ok bool) { done <- ok }) {
						done <- false
					}
				})
				if err != nil {
					return sessionStopped(err)
				}
				ok, err := awaitOutcome(session, done)
				if err != nil {
					return sessionStopped(err)
				}
				if !ok {
					return cli.Exit("", 1)
				}
				return nil
			})
		},
	}
}

func unsubscribeCmd() *cli.Command {
	return &cli.Command{
		Name:        "unsubscribe",
		Usage:       "Unsubscribe from a feed",
		ArgsUsage:   "<id>",
		Description: `Unsubscribes from the feed with the given id, as shown by "ugly feeds".`,
		Flags:       clientFlags(),
		Action: func(ctx *cli.Context) error {
			feedId, err := strconv.ParseInt(ctx.Args().First(), 10, 64)
			if err != nil {
				return cli.Exit("please specify a numeric feed id", 2)
			}

			return withSession(ctx, func(session *app.Session) error {
				feed, ok := session.Collection.Get(feedId)
				if !ok {
					return cli.Exit(fmt.Sprintf("not subscribed to a feed with id %d", feedId), 1)
				}

				done := make(chan bool, 1)
				err := session.Loop.Do(func() {
					if !session.Controller.UnsubscribeThen(feed, func(ok bool) { done <- ok }) {
						done <- false
					}
				})
				if err != nil {
					return sessionStopped(err)
				}
				ok, err = awaitOutcome(session, done)
				if err != nil {
					return sessionStopped(err)
				}
				if !ok {
					return cli.Exit("", 1)
				}
				return nil
			})
		},
	}
}
