package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mathesar-foundation/devstack/internal/shell/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the status API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDockerClient()
		if err != nil {
			return err
		}
		defer d.Close()

		s, err := newStore()
		if err != nil {
			return err
		}
		defer s.Close()

		handler := api.NewHandler(s, d, logger, cfg.Project)

		server := &http.Server{
			Addr:         cfg.Serve.Address(),
			Handler:      handler.Routes(),
			ReadTimeout:  cfg.Serve.ReadTimeout,
			WriteTimeout: cfg.Serve.WriteTimeout,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("status API listening", "address", server.Addr, "project", cfg.Project)
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down status API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Serve.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
