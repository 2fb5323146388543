package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guild-economy/internal/catalog"
	"guild-economy/internal/clock"
	"guild-economy/internal/config"
	"guild-economy/internal/logging"
	"guild-economy/internal/rng"
	"guild-economy/internal/settlement"
	"guild-economy/internal/store/backend"
	"guild-economy/internal/telemetry"
	httptransport "guild-economy/internal/transport/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry init failed")
	}

	st, err := backend.Open(ctx, cfg.Server, cfg.Economy.TxRetryAttempts)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer st.Close()

	cat, err := catalog.Load(cfg.Server.CatalogDir)
	if err != nil {
		log.Fatal().Err(err).Msg("catalog load failed")
	}
	orch, err := settlement.New(st, cat, clock.System(), rng.Default(), cfg.Economy)
	if err != nil {
		log.Fatal().Err(err).Msg("orchestrator init failed")
	}

	r := httptransport.NewRouter(st, cat, orch, cfg.Server)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	orch.StartJanitor(gctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.HTTPAddr).Str("driver", cfg.Server.StoreDriver).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("telemetry shutdown failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}
