package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"fulfillment-service/handlers"
	"fulfillment-service/internal/auth"
	"fulfillment-service/internal/cart"
	"fulfillment-service/internal/config"
	"fulfillment-service/internal/consul"
	"fulfillment-service/internal/coupons"
	"fulfillment-service/internal/customers"
	"fulfillment-service/internal/history"
	"fulfillment-service/internal/inventory"
	"fulfillment-service/internal/notify"
	"fulfillment-service/internal/orders"
	"fulfillment-service/internal/payment"
	"fulfillment-service/internal/stores"
	"fulfillment-service/internal/stores/cache"
	"fulfillment-service/internal/stores/kafka"
	"fulfillment-service/internal/stores/memory"
	"fulfillment-service/internal/stores/postgres"
	"fulfillment-service/internal/telemetry"
	"fulfillment-service/pkg/logkey"

	consulapi "github.com/hashicorp/consul/api"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	if err := run(); err != nil {
		slog.Error("service stopped", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	telemetry.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := setupTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", slog.String(logkey.ERROR, err.Error()))
		}
	}()

	var registry *consulapi.Client
	if cfg.ConsulAddr != "" {
		registry, err = consul.NewClient(cfg.ConsulAddr)
		if err != nil {
			return err
		}
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	keys, err := auth.LoadKeys(cfg.JWTPublicKeyPath)
	if err != nil {
		return err
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	opts := []orders.Option{
		orders.WithPricing(orders.PricingPolicy{EgglessSurcharge: cfg.EgglessSurcharge}),
	}
	if addr := redisAddr(cfg, registry); addr != "" {
		rdb := cache.NewRedisClient(addr)
		defer rdb.Close()
		opts = append(opts, orders.WithReplayGuard(cache.NewReplayGuard(rdb, cfg.ServiceName, cfg.ReplayTTL)))
		slog.Info("payment replay guard enabled", slog.String("Addr", addr))
	}

	publisher, closeNotify, err := startNotifications(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeNotify()
	opts = append(opts, orders.WithPublisher(publisher))

	services, err := buildServices(store, verifier, opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(handlers.API(cfg.EndpointPrefix, keys, services), cfg.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)

	if registry != nil {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", cfg.Port, err)
		}
		id, err := consul.RegisterService(registry, cfg.ServiceName, cfg.ServiceHost, port)
		if err != nil {
			return err
		}
		defer func() {
			if err := consul.Deregister(registry, id); err != nil {
				slog.Error("consul deregistration failed", slog.String(logkey.ERROR, err.Error()))
			}
		}()
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCPort, err)
	}

	serveErr := make(chan error, 2)
	go func() {
		slog.Info("http server listening", slog.String("Addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	go func() {
		slog.Info("grpc health server listening", slog.String("Addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		slog.Error("server failed", slog.String(logkey.ERROR, err.Error()))
	}
	stop()

	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", slog.String(logkey.ERROR, err.Error()))
	}
	grpcServer.GracefulStop()
	return nil
}

// setupTelemetry exports spans and metrics to the OTLP collector when one is
// configured, to stdout when asked, and otherwise leaves the no-op providers
// in place.
func setupTelemetry(ctx context.Context, cfg config.Config) (telemetry.ShutdownFunc, error) {
	switch {
	case cfg.OTLPEndpoint != "":
		shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise tracer: %w", err)
		}
		shutdownMeter, err := telemetry.SetupMeter(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.Environment)
		if err != nil {
			_ = shutdownTracer(ctx)
			return nil, fmt.Errorf("failed to initialise meter: %w", err)
		}
		return joinShutdown(shutdownTracer, shutdownMeter), nil
	case cfg.TraceStdout:
		shutdownTracer, err := telemetry.SetupStdoutTracer(os.Stdout, cfg.ServiceName, cfg.Environment)
		if err != nil {
			return nil, err
		}
		shutdownMeter, err := telemetry.SetupStdoutMeter(os.Stdout, cfg.ServiceName, cfg.Environment)
		if err != nil {
			_ = shutdownTracer(ctx)
			return nil, err
		}
		return joinShutdown(shutdownTracer, shutdownMeter), nil
	}
	return func(context.Context) error { return nil }, nil
}

func joinShutdown(fns ...telemetry.ShutdownFunc) telemetry.ShutdownFunc {
	return func(ctx context.Context) error {
		var errs []error
		for _, fn := range fns {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}
}

func openStore(ctx context.Context, cfg config.Config) (stores.Store, error) {
	if cfg.StoreDriver == config.StoreMemory {
		slog.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	conf, err := postgres.NewConf(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &conf, nil
}

func newVerifier(cfg config.Config) (payment.Verifier, error) {
	if cfg.PaymentProvider == config.PaymentStripe {
		return payment.NewStripeVerifier(cfg.StripeKey)
	}
	return payment.NewRazorpayVerifier(cfg.RazorpaySecret)
}

// redisAddr prefers the configured address and falls back to a healthy
// "redis" instance in consul. An empty result disables the replay guard.
func redisAddr(cfg config.Config, registry *consulapi.Client) string {
	if cfg.RedisAddr != "" || registry == nil {
		return cfg.RedisAddr
	}
	host, port, err := consul.GetServiceAddress(registry, "redis")
	if err != nil {
		slog.Warn("redis not found in consul", slog.String(logkey.ERROR, err.Error()))
		return ""
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// startNotifications returns the publisher the order services emit to. With
// brokers configured events go through kafka, and this process also consumes
// them unless NOTIFY_CONSUMER is off. Otherwise an in-process queue delivers
// them.
func startNotifications(ctx context.Context, cfg config.Config) (notify.Publisher, func(), error) {
	var sender notify.Sender = notify.LogSender{}
	if cfg.SMTP.Enabled() {
		sender = notify.SMTPSender{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}
	}
	deliverer, err := notify.NewDeliverer(sender, cfg.OperatorEmail)
	if err != nil {
		return nil, nil, err
	}

	if len(cfg.KafkaBrokers) == 0 {
		d := notify.NewDispatcher(deliverer, cfg.NotifyQueue)
		d.Start(context.WithoutCancel(ctx))
		return d, d.Close, nil
	}

	producer, err := kafka.NewConf(cfg.KafkaBrokers)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){producer.Close}
	if cfg.NotifyConsumer {
		consumer, err := kafka.NewConsumerConf(cfg.KafkaBrokers)
		if err != nil {
			producer.Close()
			return nil, nil, err
		}
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := consumer.Consume(ctx, deliverer); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("notification consumer stopped", slog.String(logkey.ERROR, err.Error()))
			}
		}()
		closers = append(closers, func() {
			<-done
			consumer.Close()
		})
	}
	return kafka.NewPublisher(producer), func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func buildServices(store stores.Store, verifier payment.Verifier, opts ...orders.Option) (handlers.Services, error) {
	cartConf, err := cart.NewConf(store)
	if err != nil {
		return handlers.Services{}, err
	}
	orderConf, err := orders.NewConf(store, verifier, opts...)
	if err != nil {
		return handlers.Services{}, err
	}
	historyConf, err := history.NewConf(store)
	if err != nil {
		return handlers.Services{}, err
	}
	invConf, err := inventory.NewConf(store)
	if err != nil {
		return handlers.Services{}, err
	}
	couponConf, err := coupons.NewConf(store)
	if err != nil {
		return handlers.Services{}, err
	}
	custConf, err := customers.NewConf(store)
	if err != nil {
		return handlers.Services{}, err
	}
	return handlers.Services{
		Cart:      &cartConf,
		Orders:    &orderConf,
		History:   &historyConf,
		Inventory: &invConf,
		Coupons:   &couponConf,
		Customers: &custConf,
	}, nil
}
