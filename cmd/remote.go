package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/apify-webhook-monitor/internal/api"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the runs a serve instance is monitoring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := a.APIClient().Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch status: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <runId>",
		Short: "Stop monitoring a single run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.APIClient().Stop(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, api.ErrRunNotFound) {
					return fmt.Errorf("run %s is not being monitored", args[0])
				}
				return fmt.Errorf("stop run: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped monitoring run %s\n", args[0])
			return nil
		},
	}
}

func newStopAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop-all",
		Short: "Stop every active monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			stopped, err := a.APIClient().StopAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("stop all runs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped %d monitors\n", len(stopped))
			for _, id := range stopped {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
			}
			return nil
		},
	}
}
