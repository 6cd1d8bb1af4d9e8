package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/benvon/sitetime/internal/config"
	"github.com/benvon/sitetime/internal/services/timetrack"
	"github.com/benvon/sitetime/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Opener returns the store the commands operate on
type Opener func(ctx context.Context) (storage.Store, error)

// OpenFromEnv opens the backend named by the environment configuration
func OpenFromEnv(ctx context.Context) (storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	store, err := storage.Open(ctx, cfg.StorageBackend, cfg.DatabaseURL, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, nil
}

// NewRootCmd builds the command tree over stores produced by open
func NewRootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "sitetime-configure",
		Short:         "Manage site time data",
		Long:          "Query tracked time and manage the block list, categories, settings and data snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newBlockCmd(open))
	root.AddCommand(newUnblockCmd(open))
	root.AddCommand(newBlockedCmd(open))
	root.AddCommand(newCategoryCmd(open))
	root.AddCommand(newTimeCmd(open))
	root.AddCommand(newSummaryCmd(open))
	root.AddCommand(newSettingsCmd(open))
	root.AddCommand(newExportCmd(open))
	root.AddCommand(newImportCmd(open))
	root.AddCommand(newClearCmd(open))
	root.AddCommand(newCheckCmd(open))
	return root
}

// withService opens the store, runs fn against a ledger service and closes the store
func withService(cmd *cobra.Command, open Opener, fn func(ctx context.Context, svc *timetrack.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close storage: %v\n", err)
		}
	}()
	return fn(ctx, timetrack.NewService(store, zap.NewNop()))
}
