// Package kafka publishes security events to a Kafka topic for downstream
// consumers (SIEM pipelines, moderation dashboards). Delivery is best effort;
// the security core never blocks on the bus.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/KynuxDev/DiscordLite/internal/config"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
)

type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewProducer(cfg config.KafkaConfig, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	logger.Info("kafka producer ready",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))
	return &Producer{writer: writer, logger: logger}
}

// Publish sends one event keyed by origin when present, otherwise by account,
// so per-subject ordering survives partitioning.
func (p *Producer) Publish(ctx context.Context, event *models.SecurityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	key := event.Origin
	if key == "" {
		key = event.AccountID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  event.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
