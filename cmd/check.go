package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/apify-webhook-monitor/internal/webhook"
)

const checkTimeout = 10 * time.Second

var errCheckFailed = errors.New("connectivity check failed")

type testPayload struct {
	Test      bool      `json:"test"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Probe the webhook and the actor endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := requireCredentials(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			cfg := a.Config()
			out := cmd.OutOrStdout()
			failed := false

			_, err = a.HTTP().WithUserAgent(webhook.UserAgentConnectivityCheck).PostJSON(ctx, cfg.Webhook.URL, testPayload{
				Test:      true,
				Message:   "Connectivity test from apify-monitor",
				Timestamp: a.Clock().Now(),
			}, checkTimeout)
			if err != nil {
				failed = true
				fmt.Fprintf(out, "FAIL webhook: %v\n", err)
			} else {
				fmt.Fprintln(out, "PASS webhook")
			}

			actor, err := a.Apify().GetActor(ctx, cfg.Apify.ActorID)
			if err != nil {
				failed = true
				fmt.Fprintf(out, "FAIL actor %s: %v\n", cfg.Apify.ActorID, err)
			} else {
				fmt.Fprintf(out, "PASS actor %s (%s)\n", actor.ID, actor.Name)
			}

			if failed {
				return errCheckFailed
			}
			return nil
		},
	}
}
