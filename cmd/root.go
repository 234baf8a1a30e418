// Package cmd defines and implements the CLI commands for the apify-monitor executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/apify-webhook-monitor/internal/app"
	"github.com/JakeFAU/apify-webhook-monitor/internal/config"
	"github.com/JakeFAU/apify-webhook-monitor/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp builds the service container. Tests replace it to avoid global logger setup.
var newApp = func(cfg config.Config) (*app.App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		File:        cfg.Logging.File,
	})
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return app.New(cfg, logger), nil
}

// newRootCmd creates the root command. Given a run id it watches that run once.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "apify-monitor <runId>",
		Short: "Watch Apify runs and deliver their datasets to a webhook.",
		Long: `apify-monitor polls an Apify actor run until it finishes, downloads the
run's default dataset and POSTs it to the configured webhook in a single
payload. Failures and timeouts are reported to the same webhook.

Run it with a run id to watch one run, or use "serve" to monitor many runs
behind an HTTP API.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		RunE: runWatchCommand,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env vars override it)")

	cmd.AddCommand(
		newServeCmd(),
		newStatusCmd(),
		newStopCmd(),
		newStopAllCmd(),
		newSendCmd(),
		newCheckCmd(),
		newReceiveCmd(),
	)
	return cmd
}

// Execute is the main entry point. Any command error exits with status 1.
func Execute() {
	if err := run(newRootCmd(), os.Args[1:]); err != nil {
		zap.L().Error("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run executes root with args and always releases the services it built.
func run(root *cobra.Command, args []string) error {
	root.SetArgs(args)
	executed, err := root.ExecuteContextC(context.Background())
	if executed != nil && executed.Context() != nil {
		if appInstance, ok := executed.Context().Value(appKey).(*app.App); ok && appInstance != nil {
			if cerr := appInstance.Close(); cerr != nil {
				appInstance.Logger().Warn("error closing application services", zap.Error(cerr))
			}
		}
	}
	return err
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// requireCredentials resolves the app and checks the settings the monitor core needs.
func requireCredentials(ctx context.Context) (*app.App, error) {
	a, err := resolveApp(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.Config().ValidateCredentials(); err != nil {
		return nil, fmt.Errorf("configuration incomplete: %w", err)
	}
	return a, nil
}
