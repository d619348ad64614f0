package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/asquebay/bookstore-orders/internal/channel"
	"github.com/asquebay/bookstore-orders/internal/client"
	"github.com/asquebay/bookstore-orders/internal/config"
	"github.com/asquebay/bookstore-orders/internal/customer"
	"github.com/asquebay/bookstore-orders/internal/inventory"
	"github.com/asquebay/bookstore-orders/internal/lib/logger"
	"github.com/asquebay/bookstore-orders/internal/lib/metrics"
	"github.com/asquebay/bookstore-orders/internal/lib/tracing"
	"github.com/asquebay/bookstore-orders/internal/repository/cache"
	"github.com/asquebay/bookstore-orders/internal/repository/memory"
	"github.com/asquebay/bookstore-orders/internal/repository/postgres"
	"github.com/asquebay/bookstore-orders/internal/service"
	httptransport "github.com/asquebay/bookstore-orders/internal/transport/http"
	"github.com/asquebay/bookstore-orders/internal/transport/kafka"
)

// sagaRequests — сколько запросов к каналу делает самая длинная сага
const sagaRequests = 4

func main() {
	// 1. Инициализация конфигурации
	cfg := config.MustLoad(config.FetchPath("config/config.yaml"))

	// 2. Инициализация логгера
	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	log.Info("starting bookstore-orders",
		slog.String("log_level", cfg.Logger.Level),
		slog.String("storage", cfg.Storage.Driver),
		slog.Bool("kafka", cfg.UsesKafka()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Трейсинг и метрики
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		log.Error("failed to set up tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 4. Инициализация хранилища заказов
	var orderRepo service.OrderRepository
	switch cfg.Storage.Driver {
	case "postgres":
		dbpool, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			log.Error("failed to connect to postgres", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer dbpool.Close()

		if err := postgres.EnsureSchema(ctx, dbpool); err != nil {
			log.Error("failed to prepare schema", slog.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info("successfully connected to postgres")
		orderRepo = postgres.NewOrderRepository(dbpool)
	default:
		log.Warn("using in-memory order storage, orders are lost on restart")
		orderRepo = memory.NewOrderRepository()
	}

	// 5. Инициализация кэша
	orderCache := cache.NewOrderCache()

	g, gctx := errgroup.WithContext(ctx)

	// 6. Канал сообщений к сервисам книг и покупателей
	var books, customers channel.Conn
	var closeChannel func(ctx context.Context) error
	if cfg.UsesKafka() {
		kc, err := kafka.NewClient(ctx, cfg.Kafka, cfg.Channel.Timeout, log)
		if err != nil {
			log.Error("failed to create kafka client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		books = kc.Queue(cfg.Kafka.Queues.Books)
		customers = kc.Queue(cfg.Kafka.Queues.Customers)
		closeChannel = kc.Shutdown
		// ответы читаются, пока HTTP не дождётся своих саг; остановит чтение Shutdown
		g.Go(func() error { return kc.Run(context.WithoutCancel(gctx)) })
	} else {
		// всё в одном процессе: сервисы книг и покупателей отвечают через шину
		router := channel.NewRouter()
		inventory.NewService(cfg.Seed.Books, log).Register(router)
		customer.NewService(cfg.Seed.Customers, log).Register(router)
		bus := channel.NewBus(router, cfg.Channel.Timeout, log)
		books, customers = bus, bus
		closeChannel = func(context.Context) error {
			bus.Wait()
			return nil
		}
		log.Info("using in-process channel",
			slog.Int("books", len(cfg.Seed.Books)),
			slog.Int("customers", len(cfg.Seed.Customers)),
		)
	}

	// 7. Инициализация сервисного слоя
	orderSvc := service.NewOrderService(
		orderRepo,
		orderCache,
		client.NewCustomerClient(customers, m),
		client.NewInventoryClient(books, m),
		m,
		log,
	)

	// 8. Восстановление кэша из хранилища при старте
	if err := orderSvc.RestoreCache(ctx); err != nil {
		// не фатальная ошибка, сервис может работать и с пустым кэшем
		log.Error("failed to restore cache", slog.String("error", err.Error()))
	}

	// 9. HTTP-сервер
	handler := httptransport.NewHandler(orderSvc, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), log)
	httpServer := httptransport.NewServer(cfg.HTTPServer, handler)

	g.Go(func() error {
		log.Info("starting http server", slog.String("port", httpServer.Addr()))
		return httpServer.Run()
	})

	// 10. Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down application")

		// сага из нескольких запросов к каналу должна успеть завершиться
		shutdownCtx, cancel := context.WithTimeout(context.Background(), sagaRequests*cfg.Channel.Timeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown failed", slog.String("error", err.Error()))
		}

		channelCtx, cancelChannel := context.WithTimeout(context.Background(), cfg.Channel.Timeout)
		defer cancelChannel()
		if err := closeChannel(channelCtx); err != nil {
			log.Error("error closing channel", slog.String("error", err.Error()))
		}

		tracingCtx, cancelTracing := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelTracing()
		if err := shutdownTracing(tracingCtx); err != nil {
			log.Error("tracing shutdown failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("application stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("application stopped")
}
