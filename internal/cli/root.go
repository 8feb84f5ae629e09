// Package cli implements the digestctl command tree.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/workmait/digestd/internal/bus"
)

var rootCmd = &cobra.Command{
	Use:   "digestctl",
	Short: "Control the digestd document ingestion service",
	Long: `digestctl publishes digestion events onto the bus digestd consumes
and inspects the dead-letter queue.

Events are processed asynchronously; a successful command means the
event was durably appended, not that digestion finished.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("redis-addr", "localhost:6379", "Redis address of the event bus")
	rootCmd.PersistentFlags().Int("redis-db", 0, "Redis database")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "command timeout")
}

// commandContext returns a bounded context for one command invocation.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return context.WithTimeout(cmd.Context(), timeout)
}

// openBus connects to the event bus named by the persistent flags.
func openBus(cmd *cobra.Command) (bus.Bus, func(), error) {
	addr, _ := cmd.Flags().GetString("redis-addr")
	db, _ := cmd.Flags().GetInt("redis-db")

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := commandContext(cmd)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return bus.NewRedis(client), func() { _ = client.Close() }, nil
}
