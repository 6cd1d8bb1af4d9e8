package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/sitetime/internal/config"
	"github.com/benvon/sitetime/internal/queue"
	"github.com/spf13/cobra"
)

func newCheckCmd(open Opener) *cobra.Command {
	var withQueue bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify storage (and optionally RabbitMQ) connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			store, err := open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Ping(ctx); err != nil {
				return fmt.Errorf("storage ping failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Storage reachable")

			if !withQueue {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.RabbitMQURL == "" {
				return fmt.Errorf("RABBITMQ_URL is not set")
			}
			q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()
			if err := q.HealthCheck(ctx); err != nil {
				return fmt.Errorf("queue health check failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ RabbitMQ reachable")
			return nil
		},
	}
	cmd.Flags().BoolVar(&withQueue, "queue", false, "Also check RabbitMQ")
	return cmd
}
