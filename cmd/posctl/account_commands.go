package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lester-yat/POS-UMG-ARDUINO/client"
	"github.com/urfave/cli/v2"
)

// getClient builds an API client from the global server-url flag.
func getClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	return client.NewClient(c.String("server-url"), nil, logger)
}

func registerAccountCommand() *cli.Command {
	return &cli.Command{
		Name:      "register",
		Usage:     "Register a new card holder account",
		ArgsUsage: "<tag>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "first-name",
				Usage:    "Holder first name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "last-name",
				Usage:    "Holder last name",
				Required: true,
			},
			&cli.Int64Flag{
				Name:  "balance",
				Usage: "Starting balance in minor units",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: card tag")
			}

			account, err := getClient(c).Register(context.Background(), client.RegisterAccountParams{
				TagID:     c.Args().First(),
				FirstName: c.String("first-name"),
				LastName:  c.String("last-name"),
				Balance:   c.Int64("balance"),
			})
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(account)
			}

			fmt.Printf("Registered %s %s\n", account.FirstName, account.LastName)
			fmt.Printf("  Tag:     %s\n", account.TagID)
			fmt.Printf("  Balance: %d\n", account.Balance)
			return nil
		},
	}
}

func getAccountCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get account details",
		ArgsUsage: "<tag>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: card tag")
			}

			account, err := getClient(c).Get(context.Background(), c.Args().First())
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(account)
			}

			fmt.Printf("Tag:        %s\n", account.TagID)
			fmt.Printf("Holder:     %s %s\n", account.FirstName, account.LastName)
			fmt.Printf("Balance:    %d\n", account.Balance)
			fmt.Printf("Registered: %s\n", account.RegisteredAt.Format(time.RFC3339))
			return nil
		},
	}
}

func listAccountsAPICommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List all accounts",
		Aliases: []string{"ls"},
		Action: func(c *cli.Context) error {
			accounts, err := getClient(c).List(context.Background())
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(accounts)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TAG\tHOLDER\tBALANCE\tREGISTERED")
			for _, account := range accounts {
				fmt.Fprintf(w, "%s\t%s %s\t%d\t%s\n",
					account.TagID,
					account.FirstName,
					account.LastName,
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

func topUpAccountCommand() *cli.Command {
	return &cli.Command{
		Name:      "topup",
		Usage:     "Credit an account balance",
		ArgsUsage: "<tag>",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "amount",
				Aliases:  []string{"a"},
				Usage:    "Amount to credit in minor units",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: card tag")
			}

			result, err := getClient(c).TopUp(context.Background(), c.Args().First(), c.Int64("amount"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(result)
			}

			fmt.Printf("Topped up %s by %d, new balance %d\n", result.TagID, result.Amount, result.Balance)
			return nil
		},
	}
}

func removeAccountCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Delete an account and its ledger entries",
		Aliases:   []string{"rm"},
		ArgsUsage: "<tag>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: card tag")
			}

			tag := c.Args().First()
			if err := getClient(c).Remove(context.Background(), tag); err != nil {
				return err
			}

			fmt.Printf("Removed account %s\n", tag)
			return nil
		},
	}
}
