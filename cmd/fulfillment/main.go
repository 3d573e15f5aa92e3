package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/cyberphone-ledger/internal/app"
	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
	"github.com/ariefcatur/cyberphone-ledger/internal/config"
	"github.com/ariefcatur/cyberphone-ledger/internal/dispatch"
	kafkax "github.com/ariefcatur/cyberphone-ledger/internal/kafka"
	"github.com/ariefcatur/cyberphone-ledger/internal/logging"
	"github.com/ariefcatur/cyberphone-ledger/internal/redisx"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fulfillment exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	service := cfg.ServiceName + "-fulfillment"
	log := logging.Setup(cfg.LogLevel, cfg.LogFormat, service)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := app.Open(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer backend.Close()
	if backend.Redis == nil {
		return errors.New("fulfillment needs redis for event dedup")
	}

	// Status changes made here are published like any other.
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 256, log)
	prod.Start(context.Background())

	svc := &dispatch.Service{
		Fulfillment: commerce.NewFulfillment(commerce.Deps{
			Store:     backend.Store,
			Publisher: &kafkax.EventPublisher{P: prod},
			Producer:  service,
			Log:       log,
		}),
		Dedup: redisx.NewDedup(backend.Redis, "fulfillment"),
		Log:   log,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.FulfillmentGroup, commerce.TopicPurchaseCompleted,
		cfg.FulfillmentWorkers, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("consumer started", "group", cfg.FulfillmentGroup,
			"topic", commerce.TopicPurchaseCompleted, "workers", cfg.FulfillmentWorkers)
		return cons.Start(gctx, svc.HandlePurchaseCompleted)
	})
	err = g.Wait()
	log.Info("shutting down consumer")
	prod.Close()
	prod.WaitClosed()
	return err
}
