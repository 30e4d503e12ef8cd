/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"ugly/db"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by removing feeds nobody is subscribed to.

		Feed rows are kept after an unsubscribe so a later subscribe keeps
		the same id. Run this now and then to drop the ones left behind.`,
		Flags: []cli.Flag{
			databaseFlag(),
		},
		Action: func(ctx *cli.Context) error {
			database := serverConfig(ctx).Server.Database
			fmt.Println("Database configured: ", database)
			store, err := db.NewDB(database)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Tidy()
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d feeds\n", removed)
			return nil
		},
	}
}
