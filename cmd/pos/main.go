package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/server"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger("pos-service", cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", logging.Fields{"error": err.Error()})
	}

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Fields{"error": err.Error()})
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	sessionCache := repository.NewRedisSessionCache(rdb, cfg.Redis.SessionTTL, logger)
	idempotency := repository.NewRedisIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)
	saleRepo := repository.NewPostgresSaleRepository(db, logger)

	orderClient := clients.NewHTTPOrderClient(cfg.OrderService, logger)
	customerClient := clients.NewHTTPCustomerClient(cfg.CustomerService, logger)
	notificationClient := clients.NewHTTPNotificationClient(cfg.NotificationService, logger)

	eventPublisher := events.NewKafkaPublisher(cfg.Kafka, logger)
	defer eventPublisher.Close()

	sessionService := service.NewSessionService(
		orderClient,
		customerClient,
		sessionCache,
		idempotency,
		saleRepo,
		eventPublisher,
		notificationClient,
		metrics.Prometheus{},
		cfg,
		logger,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go sessionService.RunJanitor(ctx, cfg.Redis.SessionTTL/12, cfg.Redis.SessionTTL)

	checks := map[string]handlers.ReadinessCheck{
		"postgres": saleRepo.Ping,
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}
	h := handlers.NewHandlers(sessionService, orderClient, checks, cfg, logger)
	srv := server.New(h, cfg, logger)

	go func() {
		logger.Info("Server starting", logging.Fields{
			"port":         cfg.Server.Port,
			"merge_policy": cfg.POS.MergePolicy,
			"sale_events":  cfg.Features.EnableSaleEvents,
		})
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", logging.Fields{"error": err.Error()})
		}
	}()

	var consumer *events.KafkaConsumer
	if cfg.Features.EnableDirectoryConsumer {
		consumer = events.NewKafkaConsumer(cfg.Kafka, sessionService, logger)
		go func() {
			if err := consumer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("Event consumer failed", logging.Fields{"error": err.Error()})
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if consumer != nil {
		consumer.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}
	stop()
	sessionService.Close()

	logger.Info("Server exited")
}

func initDatabase(cfg *config.Config, logger *logging.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := repository.RunMigrations(db, cfg.Database.MigrationsDir); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database connected", logging.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	})
	return db, nil
}
