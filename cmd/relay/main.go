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
	"github.com/yzy0806/saleor/internal/config"
	"github.com/yzy0806/saleor/internal/kafka"
	"github.com/yzy0806/saleor/internal/repository"
)

// The relay is the other half of the outbox pattern: reservation commits
// record events in the outbox table inside their own transaction, and this
// binary drains the table and publishes to Kafka. It holds an advisory lock
// so only one instance publishes at a time.

func main() {
	cfg := config.LoadConfig()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().Str("environment", cfg.Environment).Msg("Starting stock relay...")

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	log.Info().Strs("kafka_brokers", cfg.KafkaBrokers).Msg("Initializing Kafka publisher")
	publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopicName)
	defer publisher.Close()

	outboxRepo := repository.NewOutboxRepository(db)

	relayCtx, relayCancel := context.WithCancel(context.Background())
	go kafka.RunOutboxRelay(relayCtx, publisher, outboxRepo, kafka.RelayConfig{
		LockKey:      cfg.OutboxLockKey,
		BatchSize:    cfg.OutboxBatchSize,
		PollInterval: cfg.OutboxPollInterval,
	})

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", cfg.ServerAddr, cfg.ServerPort),
		Handler:     api.SetupRelayRouter(),
		ReadTimeout: 30 * time.Second,
	}
	go func() {
		log.Info().Str("address", server.Addr).Msg("Relay health server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start health server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down stock relay...")
	relayCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Health server forced to shutdown")
	}

	log.Info().Msg("Stock relay stopped")
}
