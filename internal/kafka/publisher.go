package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/yzy0806/saleor/internal/interfaces"
	"github.com/yzy0806/saleor/internal/repository"
)

// Publisher publishes stock events to Kafka. Events are keyed by country code
// with a hash balancer so all movement for one country lands on one partition
// in order. Implements interfaces.MessagePublisher.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a new Kafka publisher.
func NewPublisher(brokers []string, topic string) *Publisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: true,

		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    1,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
	}

	return &Publisher{writer: writer}
}

// PublishEvent publishes one serialized stock event.
func (p *Publisher) PublishEvent(ctx context.Context, key, eventType string, payload []byte) error {
	message := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		log.Error().Err(err).
			Str("event_type", eventType).
			Str("key", key).
			Msg("Failed to publish stock event")
		return fmt.Errorf("failed to publish stock event: %w", err)
	}

	log.Debug().
		Str("event_type", eventType).
		Str("key", key).
		Msg("Published stock event")

	return nil
}

// Close closes the Kafka writer.
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// OutboxSource is the slice of the outbox the relay drains.
type OutboxSource interface {
	TryAcquireLock(ctx context.Context, lockKey int64) (bool, error)
	ReleaseLock(ctx context.Context, lockKey int64) error
	FetchBatch(ctx context.Context, limit int) ([]repository.OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []int64) error
	IncrementPublishAttempts(ctx context.Context, id int64, lastError string) error
}

// RelayConfig controls the outbox relay loop.
type RelayConfig struct {
	LockKey      int64
	BatchSize    int
	PollInterval time.Duration
}

// RunOutboxRelay drains the outbox on a ticker until the context ends. An
// advisory lock keeps multiple relay instances from publishing the same rows.
func RunOutboxRelay(ctx context.Context, publisher interfaces.MessagePublisher, outbox OutboxSource, cfg RelayConfig) {
	log.Info().
		Int64("lock_key", cfg.LockKey).
		Int("batch_size", cfg.BatchSize).
		Dur("poll_interval", cfg.PollInterval).
		Msg("Starting outbox relay")

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping outbox relay")
			return
		case <-ticker.C:
			if err := relayBatch(ctx, publisher, outbox, cfg); err != nil {
				log.Error().Err(err).Msg("Failed to relay outbox batch")
			}
		}
	}
}

// relayBatch publishes one batch of unpublished outbox events. A failed
// publish bumps the row's attempt counter and leaves it for the next batch;
// the rows that made it are marked published.
func relayBatch(ctx context.Context, publisher interfaces.MessagePublisher, outbox OutboxSource, cfg RelayConfig) error {
	acquired, err := outbox.TryAcquireLock(ctx, cfg.LockKey)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		log.Debug().Msg("Lock held by another relay, skipping batch")
		return nil
	}
	defer func() {
		if err := outbox.ReleaseLock(ctx, cfg.LockKey); err != nil {
			log.Error().Err(err).Msg("Failed to release outbox lock")
		}
	}()

	events, err := outbox.FetchBatch(ctx, cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch outbox batch: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	var publishedIDs []int64
	for _, event := range events {
		if err := publisher.PublishEvent(ctx, event.Key, event.EventType, []byte(event.Payload)); err != nil {
			log.Error().Err(err).
				Int64("outbox_id", event.ID).
				Str("event_type", event.EventType).
				Msg("Failed to publish outbox event")

			if incErr := outbox.IncrementPublishAttempts(ctx, event.ID, err.Error()); incErr != nil {
				log.Error().Err(incErr).Int64("outbox_id", event.ID).Msg("Failed to increment publish attempts")
			}
			continue
		}

		publishedIDs = append(publishedIDs, event.ID)
	}

	if len(publishedIDs) > 0 {
		if err := outbox.MarkPublished(ctx, publishedIDs); err != nil {
			return fmt.Errorf("failed to mark events as published: %w", err)
		}
		log.Info().
			Int("published_count", len(publishedIDs)).
			Int("total_count", len(events)).
			Msg("Outbox batch relayed")
	}

	return nil
}
