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
	"github.com/asquebay/bookstore-orders/internal/inventory"
	"github.com/asquebay/bookstore-orders/internal/lib/logger"
	"github.com/asquebay/bookstore-orders/internal/lib/tracing"
	"github.com/asquebay/bookstore-orders/internal/transport/kafka"
)

// сервис книг: отвечает на getBook, isBookInStock, IncreaseStock и принимает DecreaseStock
func main() {
	cfg := config.MustLoad(config.FetchPath("config/config.yaml"))
	cfg.Tracing.ServiceName = "bookstore-inventory"

	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	if !cfg.UsesKafka() {
		log.Error("kafka.brokers is empty, inventory service has nothing to listen on")
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
	inventory.NewService(cfg.Seed.Books, log).Register(router)

	server := kafka.NewServer(cfg.Kafka.Brokers, cfg.Kafka.Queues.Books, cfg.Kafka.GroupID+"-inventory", router, log)
	log.Info("starting inventory service",
		slog.String("queue", cfg.Kafka.Queues.Books),
		slog.Int("books", len(cfg.Seed.Books)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error("inventory service stopped with error", slog.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Close(); err != nil {
		log.Error("error closing kafka server", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown failed", slog.String("error", err.Error()))
	}

	log.Info("inventory service stopped")
}
