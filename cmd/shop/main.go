package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dimamanhura/rozetka/internal/cache"
	"github.com/dimamanhura/rozetka/internal/config"
	"github.com/dimamanhura/rozetka/internal/consumer"
	admingrpc "github.com/dimamanhura/rozetka/internal/grpc"
	httpapi "github.com/dimamanhura/rozetka/internal/http"
	"github.com/dimamanhura/rozetka/internal/payment/paypal"
	"github.com/dimamanhura/rozetka/internal/payment/stripe"
	"github.com/dimamanhura/rozetka/internal/publisher"
	"github.com/dimamanhura/rozetka/internal/repository"
	"github.com/dimamanhura/rozetka/internal/service"
	"github.com/dimamanhura/rozetka/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New("rozetka", cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync() //nolint:errcheck
	zap.ReplaceGlobals(lg)

	lg.Info("shop starting", zap.String("http_port", cfg.HTTPPort), zap.String("grpc_port", cfg.GRPCPort))
	var wg sync.WaitGroup

	creds := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsPath,
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		lg.Fatal("failed to connect to database", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		lg.Fatal("failed to run migrations", zap.Error(err))
	}
	lg.Info("database migrations completed")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		lg.Fatal("failed to connect to redis", zap.Error(err))
	}
	redisCache := cache.NewRedisCache(redisClient)

	payPal := paypal.NewClient(paypal.Config{
		BaseURL:  cfg.PayPalAPIURL,
		ClientID: cfg.PayPalClientID,
		Secret:   cfg.PayPalAppSecret,
		Timeout:  cfg.ProviderTimeout,
	})
	stripeClient := stripe.NewClient(stripe.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
	})

	carts := service.NewCartService(repo, redisCache, redisCache, lg)
	orders := service.NewOrderService(repo, redisCache, lg)
	payments := service.NewPaymentService(repo, payPal, stripeClient, redisCache, lg, cfg.ProviderTimeout)
	reviews := service.NewReviewService(repo, redisCache, lg)
	users := service.NewUserService(repo)

	// Outbox poller and receipt consumer
	workersCtx, workersCancel := context.WithCancel(context.Background())

	poller := publisher.NewOutboxPoller(
		repo,
		publisher.NewKafkaWriter(cfg.OrderEventsTopic, cfg.KafkaBrokers...),
		publisher.Options{BatchSize: cfg.OutboxBatchSize, Retention: cfg.OutboxRetention},
		lg,
	)
	receipts := consumer.NewConsumer(
		consumer.NewKafkaReader(cfg.OrderEventsTopic, cfg.ReceiptsGroupID, cfg.KafkaBrokers...),
		consumer.NewLogReceiptSender(lg),
		lg,
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Run(workersCtx)
	}()
	go func() {
		defer wg.Done()
		receipts.Run(workersCtx)
	}()

	// gRPC admin server
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		lg.Fatal("failed to listen", zap.String("port", cfg.GRPCPort), zap.Error(err))
	}
	grpcServer := admingrpc.NewServer(admingrpc.NewAdminHandler(orders, payments, lg), []byte(cfg.JWTSecret), lg)
	go func() {
		lg.Info("admin grpc listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			lg.Fatal("grpc server failed", zap.Error(err))
		}
	}()

	// HTTP server
	router := httpapi.NewRouter(httpapi.Handlers{
		Cart:     httpapi.NewCartHandler(carts, lg, cfg.RequestTimeout),
		Orders:   httpapi.NewOrdersHandler(orders, lg, cfg.RequestTimeout),
		Payments: httpapi.NewPaymentHandler(payments, lg, cfg.RequestTimeout, cfg.MaxRequestBodySize),
		Reviews:  httpapi.NewReviewHandler(reviews, lg, cfg.RequestTimeout),
		Users:    httpapi.NewUserHandler(users, lg, cfg.RequestTimeout),
	}, httpapi.RouterConfig{
		JWTSecret:          []byte(cfg.JWTSecret),
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}, lg)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		lg.Info("http listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("http server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	workersCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		lg.Info("workers stopped cleanly")
	case <-shutdownCtx.Done():
		lg.Warn("workers didn't stop in time")
	}

	if err := poller.Close(); err != nil {
		lg.Warn("failed to close kafka writer", zap.Error(err))
	}
	receipts.Close()
	lg.Info("shop stopped")
}
