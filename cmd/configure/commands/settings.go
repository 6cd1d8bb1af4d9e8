package commands

import (
	"context"
	"fmt"

	"github.com/benvon/sitetime/internal/services/timetrack"
	"github.com/spf13/cobra"
)

func newSettingsCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change preferences",
	}
	cmd.AddCommand(newSettingsGetCmd(open))
	cmd.AddCommand(newSettingsSetCmd(open))
	return cmd
}

func newSettingsGetCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show current preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *timetrack.Service) error {
				s, err := svc.GetSettings(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Settings:")
				fmt.Fprintf(out, "  Daily productive goal:   %g h\n", s.DailyProductiveGoal)
				fmt.Fprintf(out, "  Daily distracting limit: %g h\n", s.DailyDistractingLimit)
				fmt.Fprintf(out, "  Show notifications:      %t\n", s.ShowNotifications)
				fmt.Fprintf(out, "  Sync data:               %t\n", s.SyncData)
				fmt.Fprintf(out, "  Track incognito:         %t\n", s.TrackIncognito)
				return nil
			})
		},
	}
}

func newSettingsSetCmd(open Opener) *cobra.Command {
	var (
		goal          float64
		limit         float64
		notifications bool
		syncData      bool
		incognito     bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change preferences; only flags given are updated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.NFlag() == 0 {
				return fmt.Errorf("nothing to change; pass at least one flag")
			}
			return withService(cmd, open, func(ctx context.Context, svc *timetrack.Service) error {
				s, err := svc.GetSettings(ctx)
				if err != nil {
					return err
				}
				if flags.Changed("goal") {
					s.DailyProductiveGoal = goal
				}
				if flags.Changed("limit") {
					s.DailyDistractingLimit = limit
				}
				if flags.Changed("notifications") {
					s.ShowNotifications = notifications
				}
				if flags.Changed("sync") {
					s.SyncData = syncData
				}
				if flags.Changed("incognito") {
					s.TrackIncognito = incognito
				}
				if err := svc.SaveSettings(ctx, s); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Settings saved")
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&goal, "goal", 0, "Daily productive goal in hours (0-24)")
	cmd.Flags().Float64Var(&limit, "limit", 0, "Daily distracting limit in hours (0-24)")
	cmd.Flags().BoolVar(&notifications, "notifications", true, "Show notifications")
	cmd.Flags().BoolVar(&syncData, "sync", true, "Sync data")
	cmd.Flags().BoolVar(&incognito, "incognito", false, "Track incognito windows")
	return cmd
}
