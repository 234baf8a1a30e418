package cmd

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServeUntilDone_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}

	started := make(chan struct{})
	cleaned := false
	done := make(chan error, 1)
	go func() {
		done <- serveUntilDone(ctx, srv, zap.NewNop(), func() { close(started) }, func(context.Context) { cleaned = true })
	}()

	<-started
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	require.True(t, cleaned)
}

func TestServeUntilDone_ListenError(t *testing.T) {
	srv := &http.Server{Addr: "256.0.0.1:bad", ReadHeaderTimeout: time.Second}
	err := serveUntilDone(context.Background(), srv, zap.NewNop(), nil, nil)
	require.ErrorContains(t, err, "listen on")
}

func TestServe_RejectsInvalidSeedIDs(t *testing.T) {
	e := newEnv(t, fakeApify{status: "RUNNING"}, "tok")
	_, err := execute(t, e, "serve", "good1", "bad-id")
	require.ErrorContains(t, err, "invalid run ID")
}
