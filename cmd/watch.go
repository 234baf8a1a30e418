package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/apify-webhook-monitor/internal/app"
	"github.com/JakeFAU/apify-webhook-monitor/internal/monitor"
	"github.com/JakeFAU/apify-webhook-monitor/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

var errRunIDRequired = errors.New("run ID is required: apify-monitor <runId>")

func runWatchCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errRunIDRequired
	}
	runID := args[0]
	if !monitor.ValidRunID(runID) {
		return fmt.Errorf("invalid run ID %q: only letters and digits are allowed", runID)
	}
	a, err := requireCredentials(cmd.Context())
	if err != nil {
		return err
	}

	mon, err := a.NewMonitor(cmd.Context(), app.MonitorOptions{
		MaxAttempts: a.Config().Monitor.OneShotMaxAttempts,
		Sender:      webhook.SenderAutoMonitor,
		UserAgent:   webhook.UserAgentAutoMonitor,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, watchErr := mon.Watch(ctx, runID)

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := mon.Close(closeCtx); err != nil {
		a.Logger().Warn("monitor close timed out", zap.Error(err))
	}

	printOutcome(cmd, out)
	if watchErr != nil {
		return fmt.Errorf("run %s: %w", runID, watchErr)
	}
	return nil
}

func printOutcome(cmd *cobra.Command, out monitor.Outcome) {
	w := cmd.OutOrStdout()
	switch out.Label() {
	case "succeeded":
		fmt.Fprintf(w, "Run %s succeeded: %d records delivered after %d attempts\n", out.RunID, out.Records, out.Attempts)
	case "undelivered":
		fmt.Fprintf(w, "Run %s succeeded but its dataset was not delivered\n", out.RunID)
	case "timed_out":
		fmt.Fprintf(w, "Run %s still unfinished after %d attempts; timeout reported\n", out.RunID, out.Attempts)
	case "stopped":
		fmt.Fprintf(w, "Monitoring of run %s stopped\n", out.RunID)
	default:
		fmt.Fprintf(w, "Run %s finished as %s; failure reported\n", out.RunID, out.State)
	}
}
