// Package kafka announces freshly built indexes on the index-complete topic.
// Each build writes one JSON message keyed by the index path, so every
// rebuild of the same file lands on the same partition in order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/invindex/pkg/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes build notifications to cfg.Topics.IndexComplete.
type Producer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewProducer returns a producer for the index-complete topic. No connection
// is made until the first Publish.
func NewProducer(cfg config.KafkaConfig, l *slog.Logger) *Producer {
	topic := cfg.Topics.IndexComplete
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		// A build emits a single message; do not wait for a batch to fill.
		BatchSize:    1,
		WriteTimeout: 10 * time.Second,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{
		writer: w,
		logger: logger.WithComponent(l, "kafka-producer").With("topic", topic),
	}
}

// Publish JSON-encodes value and writes it under key, waiting for every
// in-sync replica to acknowledge.
func (p *Producer) Publish(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding notification for %s: %w", key, err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("index notification failed", "key", key, "error", err)
		return fmt.Errorf("publishing notification for %s: %w", key, err)
	}
	p.logger.Debug("index notification sent", "key", key, "bytes", len(data))
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
