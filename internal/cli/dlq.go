package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/workmait/digestd/internal/dlq"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect the dead-letter queue",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		q, closeQueue, err := openDLQ(cmd)
		if err != nil {
			return err
		}
		defer closeQueue()

		ctx, cancel := commandContext(cmd)
		defer cancel()
		entries, err := q.List(ctx, limit)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}

		if len(entries) == 0 {
			cmd.Println("dead-letter queue is empty")
			return nil
		}
		for _, e := range entries {
			cmd.Printf("%s  %s  deliveries=%d  %s\n    %s\n",
				e.FailedAt.Format("2006-01-02 15:04:05"),
				e.EventType, e.Deliveries, e.EntryID, e.Error)
		}
		return nil
	},
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every dead-lettered event",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirmed, _ := cmd.Flags().GetBool("yes")
		if !confirmed {
			return fmt.Errorf("refusing to purge without --yes")
		}

		q, closeQueue, err := openDLQ(cmd)
		if err != nil {
			return err
		}
		defer closeQueue()

		ctx, cancel := commandContext(cmd)
		defer cancel()
		if err := q.Purge(ctx); err != nil {
			return err
		}
		cmd.Println("dead-letter queue purged")
		return nil
	},
}

func openDLQ(cmd *cobra.Command) (*dlq.Queue, func(), error) {
	url, _ := cmd.Flags().GetString("nats-url")

	nc, err := nats.Connect(url, nats.Name("digestctl"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()
	q, err := dlq.New(ctx, nc, slog.Default())
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return q, nc.Close, nil
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd, dlqPurgeCmd)

	dlqCmd.PersistentFlags().String("nats-url", nats.DefaultURL, "NATS URL of the dead-letter queue")
	dlqListCmd.Flags().Int("limit", 100, "maximum entries to list")
	dlqListCmd.Flags().Bool("json", false, "output entries as JSON")
	dlqPurgeCmd.Flags().BoolP("yes", "y", false, "confirm the purge")
}
