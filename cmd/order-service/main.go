package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/otel-orders/internal/catalog"
	"github.com/jcmexdev/otel-orders/internal/config"
	"github.com/jcmexdev/otel-orders/internal/coordinator/journal/sqlite"
	"github.com/jcmexdev/otel-orders/internal/inventory"
	"github.com/jcmexdev/otel-orders/internal/orders"
	"github.com/jcmexdev/otel-orders/internal/orders/adapters/grpcx"
	"github.com/jcmexdev/otel-orders/internal/orders/adapters/httpx"
	"github.com/jcmexdev/otel-orders/internal/pkg/cache"
	"github.com/jcmexdev/otel-orders/internal/pkg/messaging"
	"github.com/jcmexdev/otel-orders/internal/pkg/telemetry"
)

const instrumentationName = "github.com/jcmexdev/otel-orders"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger(cfg.Telemetry.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("order service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	providers, shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Environment:  cfg.Telemetry.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", "error", err)
		}
	}()

	tracer := providers.TracerProvider.Tracer(instrumentationName)
	meter := providers.MeterProvider.Meter(instrumentationName)

	ledger, err := inventory.NewLedger(meter)
	if err != nil {
		return err
	}
	products, err := catalog.New(ledger, meter)
	if err != nil {
		return err
	}
	defer func() { _ = products.Close() }()
	if err := products.SeedDefaults(ctx, cfg.Orders.InitialStock); err != nil {
		return err
	}

	o := cfg.Orders
	opts := []orders.Option{
		orders.WithPayments(orders.NewSimulatedPayments(o.PaymentSuccessRate)),
		orders.WithLatency(
			orders.Latency{Min: o.PaymentDelayMin, Max: o.PaymentDelayMax},
			orders.Latency{Min: o.InventoryDelayMin, Max: o.InventoryDelayMax},
		),
		orders.WithAsyncWorkers(o.AsyncWorkers),
	}

	var resultCache cache.Cache = cache.NewMemoryCache(cfg.Telemetry.ServiceName)
	if addr := cfg.Storage.RedisAddr; addr != "" {
		redisCache := cache.NewRedisCache(addr, cfg.Telemetry.ServiceName)
		defer func() { _ = redisCache.Close() }()
		if err := redisCache.Ping(ctx); err != nil {
			slog.Warn("redis not reachable, results will be stored once it is", "addr", addr, "error", err)
		}
		resultCache = redisCache
	}
	opts = append(opts, orders.WithResultStore(orders.NewCachedResults(resultCache, cfg.Storage.ResultTTL)))

	var handlerOpts []httpx.HandlerOption
	if path := cfg.Storage.JournalPath; path != "" {
		repo, err := sqlite.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = repo.Close() }()
		opts = append(opts, orders.WithJournal(repo))
		handlerOpts = append(handlerOpts, httpx.WithJournalReader(repo))
		slog.Info("order journal enabled", "path", path)
	}

	if url := cfg.Storage.AMQPURL; url != "" {
		publisher, err := messaging.Dial(url, cfg.Storage.AMQPQueue)
		if err != nil {
			return err
		}
		defer func() { _ = publisher.Close() }()
		opts = append(opts, orders.WithPublisher(publisher))
	}

	svc := orders.NewService(products, ledger, tracer, opts...)

	router := httpx.NewRouter(httpx.NewHandler(svc, products, handlerOpts...), providers.MetricsHandler,
		otelhttp.WithTracerProvider(providers.TracerProvider),
		otelhttp.WithMeterProvider(providers.MeterProvider),
		otelhttp.WithPropagators(telemetry.Propagator()),
	)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpcx.NewGRPCServer(grpcx.NewServer(svc, products),
		otelgrpc.WithTracerProvider(providers.TracerProvider),
		otelgrpc.WithMeterProvider(providers.MeterProvider),
		otelgrpc.WithPropagators(telemetry.Propagator()),
	)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("order service HTTP running", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		slog.Info("order service gRPC running", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		slog.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		slog.Error("async orders still running at shutdown", "error", err)
	}
	return nil
}
