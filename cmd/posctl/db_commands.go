package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lester-yat/POS-UMG-ARDUINO/migrations"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/db"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the embedded schema migrations",
		Action: func(c *cli.Context) error {
			pool, closer, err := getPool(c)
			if err != nil {
				return err
			}
			defer closer()

			files, err := migrations.Files()
			if err != nil {
				return fmt.Errorf("failed to read migrations: %w", err)
			}

			for _, name := range files {
				sql, err := migrations.FS.ReadFile(name)
				if err != nil {
					return fmt.Errorf("failed to read migration %s: %w", name, err)
				}
				if _, err := pool.Exec(context.Background(), string(sql)); err != nil {
					return fmt.Errorf("failed to apply migration %s: %w", name, err)
				}
				fmt.Fprintf(os.Stderr, "applied %s\n", name)
			}

			fmt.Fprintf(os.Stderr, "schema up to date (%d migrations)\n", len(files))
			return nil
		},
	}
}

func listAccountsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-accounts",
		Usage:   "List all registered accounts",
		Aliases: []string{"ls"},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			accounts, err := store.ListAccounts(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(accounts)
			}

			// Pretty table output
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TAG\tHOLDER\tBALANCE\tREGISTERED")
			for _, account := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					account.TagID,
					account.HolderName(),
					account.Balance,
					account.RegisteredAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d accounts\n", len(accounts))
			return nil
		},
	}
}

func listMovementsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-movements",
		Usage:   "List audit ledger movements",
		Aliases: []string{"mov"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "tag",
				Aliases: []string{"t"},
				Usage:   "Filter by card tag",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of movements",
				Value:   50,
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			movements, err := store.ListMovements(context.Background(), db.ListMovementsParams{
				TagID: c.String("tag"),
				Limit: int32(c.Int("limit")),
			})
			if err != nil {
				return fmt.Errorf("failed to list movements: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(movements)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tHOLDER\tTAG\tAMOUNT\tKIND\tRECORDED")
			for _, m := range movements {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
					m.ID,
					m.HolderName,
					m.TagID,
					m.Amount,
					m.Kind,
					m.RecordedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d movements\n", len(movements))
			return nil
		},
	}
}

// Helper function to connect to database
func getPool(c *cli.Context) (*pgxpool.Pool, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, func() { pool.Close() }, nil
}

func getStore(c *cli.Context) (*db.Store, func(), error) {
	pool, closer, err := getPool(c)
	if err != nil {
		return nil, nil, err
	}
	return db.NewStore(pool), closer, nil
}

// Helper function to output JSON
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
