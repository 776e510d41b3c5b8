// Package main runs the marketplace ledger daemon: the on-chain core of the
// freelance marketplace exposed behind an ops HTTP surface.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/lancechain/ledger/internal/app"
	"github.com/lancechain/ledger/internal/app/config"
	"github.com/lancechain/ledger/internal/app/events"
	crosschainsvc "github.com/lancechain/ledger/internal/app/services/crosschain"
	"github.com/lancechain/ledger/internal/app/storage/postgres"
	"github.com/lancechain/ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("ledgerd").WithError(err).Fatal("invalid configuration")
	}

	log := logger.New("ledgerd", cfg.LogLevel)

	stores := app.Stores{}
	if cfg.DatabaseDSN != "" {
		pg, err := postgres.Open(cfg.DatabaseDSN)
		if err != nil {
			log.WithError(err).Fatal("connecting to postgres")
		}
		defer pg.Close()
		stores = app.Stores{
			Users:         pg,
			Projects:      pg,
			Escrow:        pg,
			Verifications: pg,
			Stats:         pg,
			CrossChain:    pg,
		}
		log.Info("using postgres storage")
	} else {
		log.Warn("no database configured, using in-memory storage")
	}

	opts := app.Options{
		Admin:            cfg.AdminAddress,
		EscrowAddr:       cfg.EscrowAddr,
		FeeCollector:     cfg.FeeCollector,
		PlatformFeeBps:   cfg.PlatformFee,
		ChainID:          cfg.ChainID,
		StrictMessageIDs: cfg.StrictMessageIDs,
	}

	if cfg.RelayerEndpoint != "" {
		opts.Primary = crosschainsvc.NewHTTPTransport(cfg.RelayerEndpoint, cfg.RelayerAPIKey, log.WithField("component", "transport.http"))
	}
	if cfg.NATSURL != "" {
		fallback, err := crosschainsvc.NewNATSTransport(cfg.NATSURL, "", log.WithField("component", "transport.nats"))
		if err != nil {
			log.WithError(err).Fatal("connecting to nats")
		}
		defer fallback.Close()
		opts.Fallback = fallback

		emitter, err := events.NewNATSEmitter(cfg.NATSURL, "", log.WithField("component", "events"))
		if err != nil {
			log.WithError(err).Fatal("connecting event emitter")
		}
		defer emitter.Close()
		opts.Emitter = emitter
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		log.WithError(err).Fatal("building application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("starting application")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           application.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("ops server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("ops server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("ops server shutdown failed")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("application stop failed")
		os.Exit(1)
	}
	log.Info("stopped")
}
