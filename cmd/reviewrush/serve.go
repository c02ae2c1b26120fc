package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"review-rush-go/internal/game"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, logger, aws, err := setup(ctx)
	if err != nil {
		return err
	}

	scores, closeScores, err := buildHighScores(cfg, aws, logger)
	if err != nil {
		return err
	}
	defer closeScores()

	repo := buildRepository(cfg, aws, logger)
	service := game.NewService(repo, scores, logger, game.WithSettings(engineSettings(cfg)))
	defer service.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: game.NewHandler(service, logger).Routes(),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", srv.Addr,
			"environment", cfg.Environment,
			"highscore_backend", cfg.HighScoreBackend,
			"snapshot_backend", cfg.SnapshotBackend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}
	return nil
}
