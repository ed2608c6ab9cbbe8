package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oakmere/vaultd/internal/client"
	"github.com/oakmere/vaultd/internal/events"
	"github.com/oakmere/vaultd/internal/model"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Watch sessions for changes",
	GroupID: "sessions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		once, _ := cmd.Flags().GetBool("once")
		owner, _ := cmd.Flags().GetString("owner")
		agent, _ := cmd.Flags().GetString("agent")
		all, _ := cmd.Flags().GetBool("all")

		req := &client.ListSessionsRequest{Owner: owner, Agent: agent, Limit: 100}
		if !all {
			active := true
			req.Active = &active
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		seen := make(map[string]int64)

		if err := queryAndPrint(ctx, req, seen); err != nil {
			return err
		}
		if once {
			return nil
		}

		// Event-driven when a NATS URL is known, otherwise poll.
		natsURL := os.Getenv("VAULTD_NATS_URL")
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}
		if natsURL != "" {
			return watchNATS(ctx, natsURL, req, seen)
		}
		return watchPoll(ctx, interval, req, seen)
	},
}

// watchNATS subscribes to vault events and re-queries on changes with debounce.
func watchNATS(ctx context.Context, natsURL string, req *client.ListSessionsRequest, seen map[string]int64) error {
	// reconnectCh receives a signal when the NATS client reconnects after
	// a disconnect, so we can immediately re-query for missed events.
	reconnectCh := make(chan struct{}, 1)

	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
			select {
			case reconnectCh <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("vault.>")
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	debounce := time.NewTimer(0)
	debounce.Stop()
	// Drain the timer channel in case it fired between NewTimer and Stop.
	select {
	case <-debounce.C:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			debounce.Reset(200 * time.Millisecond)
		case <-reconnectCh:
			debounce.Reset(0) // immediate re-query
		case <-debounce.C:
			if err := queryAndPrint(ctx, req, seen); err != nil {
				return err
			}
		}
	}
}

// watchPoll polls for changes at the given interval.
func watchPoll(ctx context.Context, interval time.Duration, req *client.ListSessionsRequest, seen map[string]int64) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
		if err := queryAndPrint(ctx, req, seen); err != nil {
			return err
		}
	}
}

// queryAndPrint lists sessions, diffs against the seen map, and prints any changes.
func queryAndPrint(ctx context.Context, req *client.ListSessionsRequest, seen map[string]int64) error {
	resp, err := vaultClient.ListSessions(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	changed := diffSessions(resp.Sessions, seen)
	if len(changed) > 0 {
		if jsonOutput {
			printJSON(changed)
		} else {
			printSessionListTable(changed, resp.Total)
		}
	}
	return nil
}

// diffSessions compares sessions against the seen map and returns those that
// are new or carry a different version. It updates seen in place.
func diffSessions(sessions []*model.VaultSession, seen map[string]int64) []*model.VaultSession {
	var changed []*model.VaultSession
	for _, s := range sessions {
		prev, ok := seen[s.ID]
		if !ok || s.Version != prev {
			changed = append(changed, s)
		}
		seen[s.ID] = s.Version
	}
	return changed
}

func init() {
	watchCmd.Flags().Duration("interval", 5*time.Second, "polling interval")
	watchCmd.Flags().Bool("once", false, "exit after first poll")
	watchCmd.Flags().String("owner", "", "filter by owner wallet")
	watchCmd.Flags().String("agent", "", "filter by agent wallet")
	watchCmd.Flags().Bool("all", false, "include inactive sessions")
}
