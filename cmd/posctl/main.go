package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "posctl",
		Usage: "Card terminal bridge service CLI",
		Description: `A command-line tool for managing and debugging the terminal bridge.

Use this CLI to apply the schema, manage card holder accounts, inspect the
movement ledger, and stream movement events from NATS.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Database schema and inspection commands
			{
				Name:  "db",
				Usage: "Database schema and inspection commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
					listAccountsCommand(),
					listMovementsCommand(),
				},
			},
			// Account management commands (HTTP API)
			{
				Name:  "account",
				Usage: "Account management commands (via the server API)",
				Subcommands: []*cli.Command{
					registerAccountCommand(),
					getAccountCommand(),
					listAccountsAPICommand(),
					topUpAccountCommand(),
					removeAccountCommand(),
				},
			},
			// NATS movement streaming commands
			{
				Name:  "nats",
				Usage: "NATS movement streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Bridge server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
