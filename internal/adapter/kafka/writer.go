package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/coastwatch/hazard-monitor/internal/config"
	"github.com/coastwatch/hazard-monitor/internal/domain"
)

// Writer produces emergency alerts to the alert topic.
// It implements pipeline.AlertPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured alert topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishAlert serializes and publishes a single alert post.
func (w *Writer) PublishAlert(ctx context.Context, post domain.SocialMediaPost) error {
	msg, err := serializeToMessage(post)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a classified post into a Kafka message.
func serializeToMessage(post domain.SocialMediaPost) (kafkago.Message, error) {
	data, err := json.Marshal(post)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize post: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(post.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "hazard_type", Value: []byte(post.HazardType)},
			{Key: "severity", Value: []byte(post.Severity)},
			{Key: "processed_at", Value: []byte(post.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
