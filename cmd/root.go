/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"ugly/config"
)

const configKey = "config"

func RootApp() *cli.App {
	return &cli.App{
		Name:     "ugly",
		Usage:    "Manage feed subscriptions",
		Metadata: map[string]interface{}{},
		Description: `Keeps a local view of your feed subscriptions in sync with
		the subscription service and lets you subscribe and unsubscribe.

		Use "ugly shell" for an interactive session, or the one-shot
		commands feeds, subscribe and unsubscribe from scripts.
		"ugly serve" runs a local subscription service to develop against.

		Flags can generally be set via environment variables, e.g.:

		--server => UGLY_SERVER=http://localhost:3000
		--database => UGLY_DATABASE=ugly.db
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				EnvVars: []string{"UGLY_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"UGLY_LOG_LEVEL"},
			},
		},
		Before: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if ctx.IsSet("log-level") {
				cfg.LogLevel = ctx.String("log-level")
			}

			level, err := log.ParseLevel(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
			}
			log.SetLevel(level)
			// Command output goes to stdout, logs to stderr
			log.SetOutput(os.Stderr)

			ctx.App.Metadata[configKey] = cfg
			return nil
		},
		Commands: []*cli.Command{
			feedsCmd(),
			subscribeCmd(),
			unsubscribeCmd(),
			shellCmd(),
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadedConfig returns the configuration Before put in place
func loadedConfig(ctx *cli.Context) *config.TomlConfig {
	if cfg, ok := ctx.App.Metadata[configKey].(*config.TomlConfig); ok {
		return cfg
	}
	return config.Default()
}
