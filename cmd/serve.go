package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/apify-webhook-monitor/internal/api"
	"github.com/JakeFAU/apify-webhook-monitor/internal/app"
	"github.com/JakeFAU/apify-webhook-monitor/internal/monitor"
	"github.com/JakeFAU/apify-webhook-monitor/internal/webhook"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve [runId...]",
		Short: "Run the multi-run monitor behind an HTTP API",
		Long: `Starts the HTTP API on server.port and monitors every run submitted to it.
Run ids given as arguments are monitored immediately. SIGINT or SIGTERM stops
all loops and shuts the server down.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	for _, runID := range args {
		if !monitor.ValidRunID(runID) {
			return fmt.Errorf("invalid run ID %q: only letters and digits are allowed", runID)
		}
	}
	a, err := requireCredentials(cmd.Context())
	if err != nil {
		return err
	}
	cfg := a.Config()
	logger := a.Logger()

	mon, err := a.NewMonitor(cmd.Context(), app.MonitorOptions{
		MaxAttempts: cfg.Monitor.MaxAttempts,
		Sender:      webhook.SenderBackgroundMonitor,
		UserAgent:   webhook.UserAgentBackgroundMonitor,
		Background:  true,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Server.Port)),
		Handler:           api.NewServer(mon, a.Clock(), cfg, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return serveUntilDone(ctx, srv, logger, func() {
		for _, runID := range args {
			mon.Start(runID)
		}
	}, func(shutdownCtx context.Context) {
		if stopped := mon.StopAll(); len(stopped) > 0 {
			logger.Info("stopped active monitors", zap.Strings("run_ids", stopped))
		}
		if err := mon.Close(shutdownCtx); err != nil {
			logger.Warn("monitor loops did not exit in time", zap.Error(err))
		}
	})
}

// serveUntilDone runs srv until ctx ends or the listener fails, then drains it and calls cleanup.
func serveUntilDone(
	ctx context.Context,
	srv *http.Server,
	logger *zap.Logger,
	started func(),
	cleanup func(context.Context),
) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	if started != nil {
		started()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case serveErr = <-errCh:
		logger.Error("http server error", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if cleanup != nil {
		cleanup(shutdownCtx)
	}
	logger.Info("shutdown complete")
	if serveErr != nil {
		return fmt.Errorf("serve http: %w", serveErr)
	}
	return nil
}
