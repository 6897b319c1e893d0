package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rgehrsitz/nest/internal/api"
	"rgehrsitz/nest/internal/runtime"
	"rgehrsitz/nest/internal/worker"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve slot content over HTTP",
		Args:  cobra.NoArgs,
		RunE:  c.runServe,
	}
}

func (c *cli) runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	cfg := c.cfg

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Error().Err(err).Msg("cache backend close error")
		}
	}()

	rs, err := loadRules(cfg, newAIClient(cfg))
	if err != nil {
		return err
	}

	sweeper, err := worker.NewSweeper(cfg.Cache.SweepInterval.Std())
	if err != nil {
		return err
	}
	for name, s := range b.sweepers {
		sweeper.Register(name, s)
	}

	handler := api.NewHandler(rs, runtime.New(), b.source, Version)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	var wg sync.WaitGroup
	startWorker(ctx, &wg, "cache-sweeper", func(ctx context.Context) {
		if err := sweeper.Start(ctx); err != nil {
			log.Error().Err(err).Msg("cache sweeper failed to start")
			return
		}
		<-ctx.Done()
		if err := sweeper.Stop(); err != nil {
			log.Error().Err(err).Msg("cache sweeper stop error")
		}
	})

	go func() {
		log.Info().Str("address", addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	wg.Wait()

	log.Info().Msg("shutdown complete")
	return nil
}

// startWorker launches a background worker goroutine that respects context
// cancellation. Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("worker", name).Msg("worker started")
		fn(ctx)
		log.Info().Str("worker", name).Msg("worker stopped")
	}()
}
