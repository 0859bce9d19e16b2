package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/filipexyz/keygate/pkg/client"
)

var (
	eventsType   string
	eventsLimit  int
	eventsFrom   string
	eventsFollow bool
	eventsFilter string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Read or follow the engine event stream",
	Long: `Read historical engine events, or follow new ones live with --follow.
A jq expression via --filter narrows the stream on the event payload, for
example: --filter '.data.project == "..."'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filterCode, err := compileJqFilterFlag()
		if err != nil {
			return err
		}
		c := getClient()

		if eventsFollow {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sub, err := c.Subscribe(ctx, eventsType)
			if err != nil {
				return err
			}
			defer sub.Close()

			out.Info("Following events (Ctrl+C to stop)")
			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-sub.Errors():
					out.Warn("stream: %v", err)
				case ev := <-sub.Events():
					if ev == nil {
						return nil
					}
					if !matchesJqFilter(filterCode, eventJSON(ev.Data)) {
						continue
					}
					out.Event(ev.ID, ev.Type, ev.Slot, ev.Data)
				}
			}
		}

		opts := listOptions()
		stored, err := c.ListEvents(opts)
		if err != nil {
			return err
		}
		for _, s := range stored {
			if s.Event == nil {
				continue
			}
			if !matchesJqFilter(filterCode, eventJSON(s.Event.Data)) {
				continue
			}
			out.Event(s.Event.ID, s.Event.Type, s.Event.Slot, s.Event.Data)
		}
		if !jsonOutput && len(stored) == 0 {
			out.Info("No events")
		}
		return nil
	},
}

func compileJqFilterFlag() (*gojq.Code, error) {
	if eventsFilter == "" {
		return nil, nil
	}
	return compileJqFilter(eventsFilter)
}

func eventJSON(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage("null")
	}
	return data
}

func listOptions() (opts client.ListEventsOptions) {
	opts.Type = eventsType
	opts.Limit = eventsLimit
	if eventsFrom != "" {
		if t, err := time.Parse(time.RFC3339, eventsFrom); err == nil {
			opts.From = t
		}
	}
	return opts
}

func init() {
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "event type to match (e.g. credential.verified)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 100, "max events to list")
	eventsCmd.Flags().StringVar(&eventsFrom, "from", "", "list events from this RFC3339 time")
	eventsCmd.Flags().BoolVarP(&eventsFollow, "follow", "f", false, "follow new events")
	eventsCmd.Flags().StringVar(&eventsFilter, "filter", "", "jq expression applied to the event payload")
	rootCmd.AddCommand(eventsCmd)
}
