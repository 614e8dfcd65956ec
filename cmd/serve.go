package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/instadash-cli/internal/server"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr string
	serveLoad loadFlags
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dataset API over HTTP",
	Long: `Starts the HTTP API: upload datasets, fetch analyses, chat, pivot and
explain spikes. Prometheus metrics are exposed at /metrics.`,
	Example: `  instadash serve
  instadash serve --addr 127.0.0.1:9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		loadOpt, err := serveLoad.options()
		if err != nil {
			return err
		}
		opt := server.Options{
			Analysis: analysisOptions(),
			Query:    queryOptions(),
			Load:     loadOpt,
		}
		addr := serveAddr
		if cfg != nil {
			opt.AllowedOrigins = cfg.AllowedOrigins
			if addr == "" {
				addr = cfg.ServerAddr
			}
		}
		if addr == "" {
			addr = ":8080"
		}

		fb := newFallback()
		srv := &http.Server{
			Addr:              addr,
			Handler:           server.New(store, fb, opt).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.Info().
				Str("addr", addr).
				Str("workspace", store.Root()).
				Bool("generative", fb != nil).
				Msg("server listening")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("listen: %w", err)
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveLoad.register(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
}
