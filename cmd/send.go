package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/apify-webhook-monitor/internal/apify"
	"github.com/JakeFAU/apify-webhook-monitor/internal/monitor"
	"github.com/JakeFAU/apify-webhook-monitor/internal/webhook"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <runId>",
		Short: "Deliver the dataset of an already finished run",
		Long: `Checks the run once. A SUCCEEDED run has its dataset fetched and posted to
the webhook in a single payload; any other status is an error.`,
		Args: cobra.ExactArgs(1),
		RunE: runSendCommand,
	}
}

func runSendCommand(cmd *cobra.Command, args []string) error {
	runID := args[0]
	if !monitor.ValidRunID(runID) {
		return fmt.Errorf("invalid run ID %q: only letters and digits are allowed", runID)
	}
	a, err := requireCredentials(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := a.Logger().Named("sender").With(zap.String("run_id", runID))

	run, err := a.Apify().GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != apify.StatusSucceeded {
		return fmt.Errorf("run %s did not succeed: status %s", runID, run.Status)
	}

	ds, err := a.Apify().FetchRunDataset(ctx, run)
	if err != nil {
		return err
	}
	retrievedAt := ds.RetrievedAt
	payload := webhook.NewSuccess(webhook.Metadata{
		RunID:                runID,
		DatasetID:            ds.ID,
		Timestamp:            a.Clock().Now(),
		RetrievedAt:          &retrievedAt,
		RunStartedAt:         run.StartedAt,
		RunFinishedAt:        run.FinishedAt,
		RunStatus:            string(run.Status),
		RunStats:             run.Stats,
		ConfiguredWebhookURL: a.Config().Webhook.URL,
		Sender:               webhook.SenderOneTime,
	}, ds.Items)

	if err := a.Dispatcher(webhook.UserAgentSender).Dispatch(ctx, payload); err != nil {
		return err
	}
	logger.Info("dataset delivered", zap.Int("records", len(ds.Items)))
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %d records from run %s\n", len(ds.Items), runID)
	return nil
}
