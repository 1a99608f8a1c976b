package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/groblegark/eventlift/internal/events"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream migration progress events from NATS",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.NATSURL == "" {
			return fmt.Errorf("watch requires a NATS URL (--nats or EVENTLIFT_NATS_URL)")
		}

		sub, err := events.NewNATSSubscriber(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer sub.Close()

		topic, _ := cmd.Flags().GetString("topic")
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return err
		}
		defer cancel()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		fmt.Printf("Watching %s (ctrl-c to stop)\n", topic)
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				if jsonOutput {
					fmt.Println(string(msg))
					continue
				}
				var payload map[string]any
				if err := json.Unmarshal(msg, &payload); err != nil {
					fmt.Println(string(msg))
					continue
				}
				line := ""
				for _, key := range []string{"run_id", "batch", "processed", "total", "eta_seconds", "phase", "error"} {
					if v, ok := payload[key]; ok {
						line += fmt.Sprintf("%s=%v ", key, v)
					}
				}
				fmt.Println(line)
			}
		}
	},
}

func init() {
	watchCmd.Flags().String("topic", "eventlift.>", "NATS subject to subscribe to")
}
