package cmd

import (
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/apify-webhook-monitor/internal/receiver"
)

func newReceiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receive",
		Short: "Run the reference webhook receiver",
		Long: `Listens on receiver.port for delivered payloads, summarises them and archives
them (JSON and CSV) in the configured storage provider.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			store, err := a.BlobStore(cmd.Context())
			if err != nil {
				return err
			}
			cfg := a.Config()
			rc := receiver.New(store, a.Clock(), cfg.Receiver.Path, a.Logger())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Receiver.Port)),
				Handler:           rc.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			return serveUntilDone(ctx, srv, a.Logger().Named("receiver"), nil, nil)
		},
	}
}
