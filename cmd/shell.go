/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cqroot/prompt"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"ugly/api"
	"ugly/app"
)

const shellHelp = `Commands:
  add <url>   subscribe to a feed
  rm <n>      unsubscribe from the feed in row n
  list        show the feed list again
  refresh     reload the feed list from the service
  dismiss     hide the status banner
  quit        leave the shell`

func shellCmd() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive subscription manager",
		Description: `Starts an interactive session: the feed list is loaded once and
kept up to date as you subscribe and unsubscribe.`,
		Flags: clientFlags(),
		Action: func(ctx *cli.Context) error {
			cfg := clientConfig(ctx)
			session := app.NewSession(cfg, os.Stdout)
			session.Start(ctx.Context, func(err error) {
				if err != nil {
					session.Status.ShowError(api.UserMessage(err, cfg.Client.GenericError))
				}
			})
			defer session.Close()

			fmt.Println(shellHelp)

			for {
				line, err := prompt.New().Ask("ugly>").Input("")
				if err != nil {
					if errors.Is(err, prompt.ErrUserQuit) {
						return nil
					}
					return err
				}

				quit, err := runShellCommand(session, line)
				if err != nil {
					return sessionStopped(err)
				}
				if quit {
					return nil
				}
			}
		},
	}
}

// runShellCommand executes one shell line and reports whether to quit. It
// fails once the session loop has stopped.
func runShellCommand(session *app.Session, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	var err error
	switch fields[0] {
	case "add":
		if len(fields) < 2 {
			fmt.Println("usage: add <url>")
			return false, nil
		}
		feedUrl := fields[1]
		err = session.Loop.Do(func() {
			session.Terminal.SetInput(feedUrl)
			if !session.Form.Submit(feedUrl) {
				fmt.Println("still waiting for the previous subscription")
			}
		})

	case "rm":
		if len(fields) < 2 {
			fmt.Println("usage: rm <n>")
			return false, nil
		}
		number, convErr := strconv.Atoi(fields[1])
		if convErr != nil {
			fmt.Println("usage: rm <n>")
			return false, nil
		}
		err = session.Loop.Do(func() {
			row, ok := session.Terminal.Row(number)
			if !ok {
				fmt.Printf("there is no row %d\n", number)
				return
			}
			if !row.Unsubscribe() {
				fmt.Println("already unsubscribing from that feed")
			}
		})

	case "list":
		err = session.Loop.Do(session.List.Render)

	case "refresh":
		err = session.Loop.Do(func() {
			session.Collection.FetchAll(func(err error) {
				if err != nil {
					log.WithFields(log.Fields{
						"error": err,
					}).Warn("Refresh failed")
					session.Status.ShowError(api.UserMessage(err, "Could not refresh the feed list."))
				}
			})
		})

	case "dismiss":
		err = session.Loop.Do(session.Status.Clear)

	case "quit", "exit":
		return true, nil

	default:
		fmt.Println(shellHelp)
	}

	return false, err
}
