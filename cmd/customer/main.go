package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asquebay/bookstore-orders/internal/channel"
	"github.com/asquebay/bookstore-orders/internal/config"
	"github.com/asquebay/bookstore-orders/internal/customer"
	"github.com/asquebay/bookstore-orders/internal/lib/logger"
	"github.com/asquebay/bookstore-orders/internal/lib/tracing"
	"github.com/asquebay/bookstore-orders/internal/transport/kafka"
)

// сервис покупателей: отвечает на getCustomer
func main() {
	cfg := config.MustLoad(config.FetchPath("config/config.yaml"))
	cfg.Tracing.ServiceName = "bookstore-customer"

	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	if !cfg.UsesKafka() {
		log.Error("kafka.brokers is empty, customer service has nothing to listen on")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		log.Error("failed to set up tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	router := channel.NewRouter()
	customer.NewService(cfg.Seed.Customers, log).Register(router)

	server := kafka.NewServer(cfg.Kafka.Brokers, cfg.Kafka.Queues.Customers, cfg.Kafka.GroupID+"-customer", router, log)
	log.Info("starting customer service",
		slog.String("queue", cfg.Kafka.Queues.Customers),
		slog.Int("customers", len(cfg.Seed.Customers)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error("customer service stopped with error", slog.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Close(); err != nil {
		log.Error("error closing kafka server", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown failed", slog.String("error", err.Error()))
	}

	log.Info("customer service stopped")
}
