package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mke2e/internal/fakeapi"
)

var fakeAPIAddr string

var fakeAPICmd = &cobra.Command{
	Use:   "fake-api",
	Short: "Serve an in-memory Money Keeper API",
	Long: `Serves the accounts and categories endpoints of the Money Keeper API
from memory, with the same validation and conflict rules. Useful for running
the API-level scenarios with --browserless when no backend is available.

The API is served under /api:
  mke2e fake-api --addr :8080
  mke2e run --browserless --api-base-url http://localhost:8080/api`,
	Args: cobra.NoArgs,
	RunE: runFakeAPI,
}

func init() {
	rootCmd.AddCommand(fakeAPICmd)

	fakeAPICmd.Flags().StringVar(&fakeAPIAddr, "addr", ":8080", "Listen address")
}

func runFakeAPI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", fakeAPIAddr)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "failed to listen", Err: err}
	}
	return serveFakeAPI(ctx, listener, fakeapi.New(logger).Handler(), func(addr string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Fake Money Keeper API listening on http://%s/api\n", addr)
	})
}

// serveFakeAPI serves handler on listener until ctx is done, then shuts down
// gracefully.
func serveFakeAPI(ctx context.Context, listener net.Listener, handler http.Handler, ready func(addr string)) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	if ready != nil {
		ready(listener.Addr().String())
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop the fake API: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
