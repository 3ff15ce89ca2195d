package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/trikooo/storefront/internal/address"
	"github.com/trikooo/storefront/internal/cache"
	"github.com/trikooo/storefront/internal/cart"
	"github.com/trikooo/storefront/internal/consumer"
	"github.com/trikooo/storefront/internal/gueststore"
	h "github.com/trikooo/storefront/internal/http"
	"github.com/trikooo/storefront/internal/orders"
	"github.com/trikooo/storefront/internal/publisher"
	"github.com/trikooo/storefront/internal/repository"
	"github.com/trikooo/storefront/internal/shipment"
)

type Config struct {
	HTTPPort          string
	MongoURI          string
	MongoDBName       string
	RedisAddr         string
	RedisPassword     string
	PostgresHost      string
	PostgresPort      int
	PostgresUser      string
	PostgresPassword  string
	PostgresDB        string
	MigrationsDirPath string
	KafkaBrokers      string
	ProviderBaseURL   string
	ProviderToken     string
	ProviderGUID      string
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:       getEnv("MONGO_DB_NAME", "storefront"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		PostgresHost:      getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:      getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:      getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:  getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:        getEnv("POSTGRES_DB", "storefront"),
		MigrationsDirPath: getEnv("MIGRATIONS_DIR", "internal/orders/migrations"),
		KafkaBrokers:      getEnv("KAFKA_BROKERS", "localhost:9092"),
		ProviderBaseURL:   getEnv("NOEST_BASE_URL", "https://app.noest-dz.com"),
		ProviderToken:     getEnv("NOEST_API_TOKEN", ""),
		ProviderGUID:      getEnv("NOEST_USER_GUID", ""),
		RequestTimeout:    30 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// MongoDB: account carts and addresses
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongoDB.Client().Disconnect(ctx)

	repo := repository.NewMongoRepository(mongoDB)
	if err := repo.CreateIndexes(ctx); err != nil {
		logger.Fatal("failed to create indexes", zap.Error(err))
	}
	logger.Info("connected to MongoDB", zap.String("uri", cfg.MongoURI))

	// Redis: guest store and cart cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

	// Postgres: orders and outbox
	creds := &orders.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsDirPath,
	}
	orderRepo, err := orders.NewRepository(creds)
	if err != nil {
		logger.Fatal("failed to connect to Postgres", zap.Error(err))
	}
	defer orderRepo.Close()
	if err := orderRepo.RunMigrations(creds); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("connected to Postgres", zap.String("host", cfg.PostgresHost))

	guests := gueststore.NewStore(gueststore.NewRedisKV(redisClient), logger)
	cartCache := cache.NewRedisCache(redisClient)
	cartService := cart.NewService(repo, cartCache, guests, logger)
	selector := address.NewSelector(guests, logger)
	provider := shipment.NewClient(cfg.ProviderBaseURL, cfg.ProviderToken, cfg.ProviderGUID)

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	outbox := publisher.NewOutboxPoller(orderRepo, logger, cfg.KafkaBrokers)
	defer outbox.Close()
	go outbox.Run(workerCtx)

	cartClear := consumer.NewCartClearConsumer(repo, cartCache, logger, cfg.KafkaBrokers)
	defer cartClear.Close()
	go cartClear.Run(workerCtx)

	dispatcher := consumer.NewDispatchConsumer(orderRepo, provider, logger, cfg.KafkaBrokers)
	defer dispatcher.Close()
	go dispatcher.Run(workerCtx)

	// HTTP handlers
	cartHandler := h.NewCartHandler(cartService, cfg.RequestTimeout)
	addressHandler := h.NewAddressHandler(repo, guests, selector, cfg.RequestTimeout)
	orderHandler := h.NewOrderHandler(orderRepo, cartService, selector, cfg.RequestTimeout)
	shipmentHandler := h.NewShipmentHandler(orderRepo, provider, cfg.RequestTimeout)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(h.MockAuthMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Post("/reconcile", cartHandler.Reconcile)
		})
		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", addressHandler.List)
			r.Post("/", addressHandler.Create)
			r.Get("/selected", addressHandler.Selected)
			r.Put("/selected", addressHandler.Select)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderHandler.List)
			r.Post("/", orderHandler.Create)
			r.Get("/{order_id}", orderHandler.Get)
			r.Post("/{order_id}/shipments", shipmentHandler.Dispatch)
		})
		r.Route("/shipments", func(r chi.Router) {
			r.Get("/{tracking}/label", shipmentHandler.Label)
			r.Delete("/{tracking}", shipmentHandler.Cancel)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("storefront server starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
