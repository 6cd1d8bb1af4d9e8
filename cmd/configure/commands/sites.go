package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/benvon/sitetime/internal/services/timetrack"
	"github.com/spf13/cobra"
)

func newBlockCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "block <hostname>",
		Short: "Add a site to the block list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setBlocked(cmd, open, args[0], true)
		},
	}
}

func newUnblockCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <hostname>",
		Short: "Remove a site from the block list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setBlocked(cmd, open, args[0], false)
		},
	}
}

func setBlocked(cmd *cobra.Command, open Opener, hostname string, blocked bool) error {
	return withService(cmd, open, func(ctx context.Context, svc *timetrack.Service) error {
		if _, err := svc.SetBlocked(ctx, hostname, blocked); err != nil {
			return err
		}
		site, _ := timetrack.ResolveSite(hostname)
		if blocked {
			fmt.Fprintf(cmd.OutOrStdout(), "Blocked %s\n", site)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Unblocked %s\n", site)
		}
		return nil
	})
}

func newBlockedCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "blocked",
		Short: "List blocked sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *timetrack.Service) error {
				blocked, err := svc.BlockedSites(ctx)
				if err != nil {
					return err
				}
				if len(blocked) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No blocked sites")
					return nil
				}
				for _, site := range blocked {
					fmt.Fprintln(cmd.OutOrStdout(), site)
				}
				return nil
			})
		},
	}
}

func newCategoryCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "category <hostname> <productive|neutral|distracting>",
		Short: "Set a site's category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *timetrack.Service) error {
				result, err := svc.SetCategory(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if result.Ignored {
					return fmt.Errorf("unrecognized category %q (use productive, neutral or distracting)", args[1])
				}
				site, _ := timetrack.ResolveSite(args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", site, args[1])
				return nil
			})
		},
	}
}

func newTimeCmd(open Opener) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "time <hostname>",
		Short: "Show time spent on a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *timetrack.Service) error {
				ms, err := svc.QuerySiteTime(ctx, args[0], date)
				if err != nil {
					return err
				}
				day, _ := svc.ResolveDay(date)
				site, _ := timetrack.ResolveSite(args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "%s on %s: %s (%d ms)\n", site, day, timetrack.FormatDuration(ms), ms)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day as YYYY-MM-DD (default today)")
	return cmd
}

func newSummaryCmd(open Opener) *cobra.Command {
	var date string
	var showSites bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the productive, neutral and distracting split for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, open, func(ctx context.Context, svc *timetrack.Service) error {
				summary, err := svc.DailySummary(ctx, date)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Summary for %s\n", summary.Date)
				fmt.Fprintf(out, "  Productive:  %s\n", timetrack.FormatDuration(summary.ProductiveTime))
				fmt.Fprintf(out, "  Neutral:     %s\n", timetrack.FormatDuration(summary.NeutralTime))
				fmt.Fprintf(out, "  Distracting: %s\n", timetrack.FormatDuration(summary.DistractingTime))
				fmt.Fprintf(out, "  Total:       %s\n", timetrack.FormatDuration(summary.TotalTime))
				fmt.Fprintf(out, "  Score:       %.0f%%\n", timetrack.ProductivityScore(summary)*100)

				if !showSites {
					return nil
				}
				list, err := svc.SiteBreakdown(ctx, date)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "SITE\tCATEGORY\tTIME\tSHARE")
				for _, s := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f%%\n", s.Hostname, s.Category, timetrack.FormatDuration(s.TimeSpent), s.Percent)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day as YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&showSites, "sites", false, "Also list every site for the day")
	return cmd
}
