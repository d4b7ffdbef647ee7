package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itchyny/gojq"
	natspkg "github.com/lester-yat/POS-UMG-ARDUINO/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams movement events from NATS JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to movement events",
		ArgsUsage: "[tag]",
		Description: `Subscribe to real-time movement events published to NATS JetStream.

Without an argument, all movements are streamed. With a card tag, only
movements for that tag are streamed. Events are published to the subject
movements.{tag} with spaces stripped from the tag.

The --jq flag filters events with a jq expression; only events for which
the expression is truthy are printed.

Example:
  posctl nats subscribe "AB 12 CD 34 5" --json
  posctl nats subscribe --jq '.kind == "insufficient_funds"'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "jq",
				Usage: "Only show events matching this jq expression",
			},
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "posctl",
			},
		},
		Action: func(c *cli.Context) error {
			subject := natspkg.StreamSubjects
			if c.NArg() > 0 {
				subject = "movements." + natspkg.SubjectToken(c.Args().First())
			}

			var filter *gojq.Code
			if expr := c.String("jq"); expr != "" {
				query, err := gojq.Parse(expr)
				if err != nil {
					return fmt.Errorf("failed to parse jq expression %q: %w", expr, err)
				}
				filter, err = gojq.Compile(query)
				if err != nil {
					return fmt.Errorf("failed to compile jq expression %q: %w", expr, err)
				}
			}

			return streamMovements(subject, c.String("nats-url"), c.Bool("durable"), c.String("consumer-name"), c.Bool("json"), filter)
		},
	}
}

// streamMovements connects to NATS and prints movement events as they arrive.
func streamMovements(subject, natsURL string, durable bool, consumerName string, jsonOutput bool, filter *gojq.Code) error {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if !jsonOutput {
		fmt.Fprintf(os.Stderr, "Subscribing to %s on %s\n", subject, natsURL)
		fmt.Fprintf(os.Stderr, "Waiting for movements... (Ctrl-C to exit)\n\n")
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if durable {
		consumerConfig.Durable = consumerName
		consumerConfig.Name = consumerName
	}

	cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan jetstream.Msg, 10)
	go func() {
		_, _ = cons.Consume(func(msg jetstream.Msg) {
			msgChan <- msg
		})
	}()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.MovementEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
				msg.Ack()
				continue
			}

			if filter != nil && !matchesFilter(filter, msg.Data()) {
				msg.Ack()
				continue
			}

			count++

			if jsonOutput {
				data, _ := json.Marshal(event)
				fmt.Println(string(data))
			} else {
				fmt.Printf("─────────────────────────────────────────────────────\n")
				fmt.Printf("Movement #%d\n", count)
				fmt.Printf("─────────────────────────────────────────────────────\n")
				fmt.Printf("Holder:    %s\n", event.HolderName)
				fmt.Printf("Tag:       %s\n", event.TagID)
				fmt.Printf("Amount:    %d\n", event.Amount)
				fmt.Printf("Kind:      %s\n", event.Kind)
				fmt.Printf("Recorded:  %s\n", event.RecordedAt.Format(time.RFC3339))
				fmt.Printf("Published: %s\n", event.PublishedAt.Format(time.RFC3339))
				fmt.Printf("\n")
			}

			msg.Ack()

		case <-sigChan:
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "\nReceived %d movements\n", count)
			}
			return nil
		}
	}
}

// matchesFilter evaluates a compiled jq expression against raw event JSON.
func matchesFilter(filter *gojq.Code, data []byte) bool {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}

	iter := filter.Run(doc)
	v, ok := iter.Next()
	if !ok {
		return false
	}
	if _, isErr := v.(error); isErr {
		return false
	}
	return isTruthy(v)
}

// isTruthy follows jq semantics: false and null are falsy, everything else
// is truthy.
func isTruthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}

// inspectStreamCommand shows information about the MOVEMENTS stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the MOVEMENTS JetStream stream",
		Action: func(c *cli.Context) error {
			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(context.Background(), natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(info, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Stream: %s\n", info.Config.Name)
			fmt.Printf("─────────────────────────────────────────────────────\n")
			fmt.Printf("Subjects:   %v\n", info.Config.Subjects)
			fmt.Printf("Messages:   %d\n", info.State.Msgs)
			fmt.Printf("Bytes:      %d\n", info.State.Bytes)
			fmt.Printf("First Seq:  %d\n", info.State.FirstSeq)
			fmt.Printf("Last Seq:   %d\n", info.State.LastSeq)
			fmt.Printf("Consumers:  %d\n", info.State.Consumers)
			fmt.Printf("Max Age:    %s\n", info.Config.MaxAge)
			fmt.Printf("Storage:    %s\n", info.Config.Storage)
			return nil
		},
	}
}
