/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"ugly/config"
	"ugly/db"
	"ugly/feeds"
	"ugly/server"
)

func databaseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Usage:   "SQLite database file location",
		EnvVars: []string{"UGLY_DATABASE"},
	}
}

func serverConfig(ctx *cli.Context) *config.TomlConfig {
	cfg := loadedConfig(ctx)
	if ctx.IsSet("database") {
		cfg.Server.Database = ctx.String("database")
	}
	if ctx.IsSet("listen") {
		cfg.Server.Listen = ctx.String("listen")
	}
	return cfg
}

// serveCmd runs the subscription service
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the subscription API",
		Description: `Starts a subscription service implementing the API the client
talks to: GET /api/feeds, POST /api/subscribe and POST /api/unsubscribe/{id}.

Subscriptions are kept in an SQLite database which is migrated on startup.
Submitted URLs are resolved to feeds, following the feed links advertised by
HTML pages. Prometheus metrics are served on /metrics.`,
		Flags: []cli.Flag{
			databaseFlag(),
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "Address to listen on",
				EnvVars: []string{"UGLY_LISTEN"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg := serverConfig(ctx)

			log.WithFields(log.Fields{
				"database": cfg.Server.Database,
				"listen":   cfg.Server.Listen,
			}).Info("Starting subscription service")

			if err := db.Migrate(cfg.Server.Database); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			store, err := db.NewDB(cfg.Server.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			app := server.Server(&server.ServerConfig{
				Store:          store,
				Resolver:       feeds.NewHttpResolver(cfg.Server.ResolveTimeout.Duration),
				ResolveTimeout: cfg.Server.ResolveTimeout.Duration,
			})

			// Graceful shutdown
			signals := make(chan os.Signal, 1)
			signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
			go func() {
				select {
				case <-signals:
				case <-ctx.Context.Done():
				}
				log.Info("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.WithFields(log.Fields{
						"error": err,
					}).Error("Shutdown failed")
				}
			}()

			return app.Listen(cfg.Server.Listen)
		},
	}
}
