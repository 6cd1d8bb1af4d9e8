package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/benvon/sitetime/internal/models"
	"github.com/benvon/sitetime/internal/services/timetrack"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func newExportCmd(open Opener) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all data as a JSON or YAML snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != formatJSON && format != formatYAML {
				return fmt.Errorf("--format must be %s or %s", formatJSON, formatYAML)
			}
			return withService(cmd, open, func(ctx context.Context, svc *timetrack.Service) error {
				snap, err := svc.Export(ctx)
				if err != nil {
					return err
				}
				data, err := encodeSnapshot(snap, format)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o600); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d sites to %s\n", len(snap.SiteData), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", formatJSON, "Output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newImportCmd(open Opener) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Merge a JSON or YAML snapshot into the current data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if format == "" {
				format = formatFromPath(args[0])
			}
			snap, err := decodeSnapshot(data, strings.ToLower(format))
			if err != nil {
				return err
			}
			return withService(cmd, open, func(ctx context.Context, svc *timetrack.Service) error {
				if err := svc.Import(ctx, snap); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d sites, %d blocked\n", len(snap.SiteData), len(snap.BlockedSites))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Input format: json or yaml (default from file extension)")
	return cmd
}

func newClearCmd(open Opener) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all tracked time, lists and settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}
			return withService(cmd, open, func(ctx context.Context, svc *timetrack.Service) error {
				if err := svc.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All data cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

func encodeSnapshot(snap *models.Snapshot, format string) ([]byte, error) {
	if format == formatYAML {
		data, err := yaml.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		return data, nil
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeSnapshot(data []byte, format string) (*models.Snapshot, error) {
	var snap models.Snapshot
	switch format {
	case formatYAML:
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("invalid YAML snapshot: %w", err)
		}
	case formatJSON, "":
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("invalid JSON snapshot: %w", err)
		}
	default:
		return nil, fmt.Errorf("--format must be %s or %s", formatJSON, formatYAML)
	}
	return &snap, nil
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
