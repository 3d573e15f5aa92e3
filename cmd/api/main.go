package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/cyberphone-ledger/internal/app"
	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
	"github.com/ariefcatur/cyberphone-ledger/internal/config"
	"github.com/ariefcatur/cyberphone-ledger/internal/httpx"
	kafkax "github.com/ariefcatur/cyberphone-ledger/internal/kafka"
	"github.com/ariefcatur/cyberphone-ledger/internal/logging"
	"github.com/ariefcatur/cyberphone-ledger/internal/redisx"
	"github.com/ariefcatur/cyberphone-ledger/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.ServiceName, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	backend, err := app.Open(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer backend.Close()

	// The producer outlives ctx so events queued by in-flight requests are
	// flushed after the server stops.
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(context.Background())

	deps := commerce.Deps{
		Store:     backend.Store,
		Publisher: &kafkax.EventPublisher{P: prod},
		Producer:  cfg.ServiceName,
		Log:       log,
	}
	notifier := commerce.NewNotifier(deps)
	ledger := commerce.NewLedger(deps, notifier,
		commerce.CommissionPolicy(cfg.CommissionPolicy), commerce.FulfillmentMode(cfg.FulfillmentMode))

	api := &httpx.API{
		Checkout:    commerce.NewCheckout(deps, ledger),
		Ledger:      ledger,
		Fulfillment: commerce.NewFulfillment(deps),
		Notifier:    notifier,
		Carts:       commerce.NewCarts(deps),
		Social:      commerce.NewSocial(deps, notifier),
		Wallet:      commerce.NewWallet(deps),
		Timeout:     cfg.TxTimeout,
		Log:         log,
	}
	if backend.Redis != nil {
		api.Idempotency = redisx.NewIdempotency(backend.Redis)
	}

	router := httpx.NewRouter(httpx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))
	api.Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr,
			"policy", cfg.CommissionPolicy, "fulfillment", cfg.FulfillmentMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		if err != nil {
			// Handlers still running get ErrProducerClosed for their events.
			log.Warn("http shutdown incomplete, late events are dropped", "error", err)
		}
		prod.Close()
		prod.WaitClosed()
		if terr := shutdownTracing(sctx); terr != nil {
			log.Warn("tracing shutdown", "error", terr)
		}
		return err
	})
	return g.Wait()
}
