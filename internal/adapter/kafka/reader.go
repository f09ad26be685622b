// Package kafka adapts the segmentio/kafka-go client to the pipeline's
// extractor and alert publisher contracts.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/coastwatch/hazard-monitor/internal/config"
	"github.com/coastwatch/hazard-monitor/internal/domain"
)

// Reader consumes raw post messages from the source topic as part of a
// consumer group. It implements pipeline.BatchExtractor.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaSourceTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // explicit commits only, after a successful load
	})
	return &Reader{reader: r, logger: logger}
}

// ExtractBatch fetches up to batchSize messages, waiting briefly for the first
// one and draining whatever else is immediately available. A short poll window
// keeps latency low on a quiet topic without starving batch formation on a
// busy one.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	batch := make([]domain.RawEvent, 0, batchSize)

	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch = append(batch, r.mapMessage(msg))

	for len(batch) < batchSize {
		fetchCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		msg, err := r.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			if ctx.Err() != nil {
				// Return what we have; the caller sees the cancellation
				// on its next extract.
				break
			}
			return nil, err
		}
		batch = append(batch, r.mapMessage(msg))
	}

	return batch, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessage converts a Kafka message to a RawEvent, binding the offset
// commit to this reader's consumer group.
func (r *Reader) mapMessage(msg kafkago.Message) domain.RawEvent {
	raw := mapMessageToRawEvent(msg)
	raw.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return raw
}

func mapMessageToRawEvent(msg kafkago.Message) domain.RawEvent {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
