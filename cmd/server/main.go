package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yzy0806/saleor/internal/api"
	"github.com/yzy0806/saleor/internal/clock"
	"github.com/yzy0806/saleor/internal/config"
	redisCache "github.com/yzy0806/saleor/internal/redis"
	"github.com/yzy0806/saleor/internal/repository"
	"github.com/yzy0806/saleor/internal/service"
)

// setupLogging configures structured logging.
func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// initializeDatabase sets up and tests the database connection.
func initializeDatabase(cfg *config.Config) *sqlx.DB {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}

	log.Info().Msg("Database connection established")
	return db
}

// initializeCache sets up the Redis variant-catalog cache.
func initializeCache(cfg *config.Config) *redisCache.CacheClient {
	cache := redisCache.NewCacheClient(
		cfg.RedisAddrs,
		cfg.RedisPassword,
		cfg.RedisClusterMode,
		cfg.RedisTTL,
		cfg.RedisKeyPrefix,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	return cache
}

// startHTTPServer starts the HTTP server.
func startHTTPServer(cfg *config.Config, router http.Handler) *http.Server {
	serverAddr := fmt.Sprintf("%s:%s", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("address", serverAddr).Msg("Stock service HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	return server
}

// gracefulShutdown blocks until a signal arrives, then drains the server.
func gracefulShutdown(server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down stock service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Stock service stopped")
}

func main() {
	cfg := config.LoadConfig()
	setupLogging(cfg)
	log.Info().Str("environment", cfg.Environment).Msg("Starting stock service...")

	db := initializeDatabase(cfg)
	defer db.Close()

	cache := initializeCache(cfg)
	defer cache.Close()

	stockRepo := repository.NewStockRepository(db)
	variantRepo := repository.NewVariantRepository(db)
	clk := clock.NewSystem()

	availabilityService := service.NewAvailabilityService(stockRepo, variantRepo, cache, clk)
	reservationService, err := service.NewReservationService(stockRepo, variantRepo, clk, cfg.ReservationTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create reservation service")
	}

	log.Info().
		Dur("reservation_ttl", cfg.ReservationTTL).
		Msg("Service configuration loaded")

	router := api.SetupRouter(
		api.NewAvailabilityHandler(availabilityService),
		api.NewReservationHandler(reservationService),
	)

	server := startHTTPServer(cfg, router)
	gracefulShutdown(server)
}
