// Package pipeline orchestrates the ingest loop: pull raw social posts from
// the source topic in batches, classify them, persist the results, and raise
// alerts for posts that demand immediate attention.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/coastwatch/hazard-monitor/internal/domain"
	"github.com/coastwatch/hazard-monitor/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw event into a classified post.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.SocialMediaPost, error)
}

// BatchLoader writes multiple classified posts to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, posts []domain.SocialMediaPost) error
}

// Alerter is notified of persisted posts that require immediate attention.
// Implementations fan the alert out (websocket broadcast, alert topic) and
// must not fail the pipeline: errors are logged, not returned.
type Alerter interface {
	RaiseAlert(ctx context.Context, post domain.SocialMediaPost) error
}

// Pipeline orchestrates the extract-classify-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	alerter     Alerter
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability. A nil
// alerter disables alerting.
func New(e BatchExtractor, t Transformer, l BatchLoader, a Alerter, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		alerter:     a,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has processed at least one post,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any posts yet")
	}
	return nil
}

// Run executes the batch ingest loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during Kafka outages.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-classify-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.PostsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	loaded, ok := p.transformAndLoad(ctx, rawBatch, backoff, maxBackoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// transformAndLoad classifies each post in the batch, loads the successes,
// commits offsets, and raises alerts for the posts that need them. Returns
// the number of successfully loaded posts and false if the pipeline should stop.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawEvent, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	posts := make([]domain.SocialMediaPost, 0, len(rawBatch))
	successfulRaws := make([]domain.RawEvent, 0, len(rawBatch))

	for _, raw := range rawBatch {
		post, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("transform failed, skipping post",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		p.recordClassification(post)
		posts = append(posts, post)
		successfulRaws = append(successfulRaws, raw)
	}

	if len(posts) == 0 {
		return 0, true
	}

	if err := p.loader.LoadBatch(ctx, posts); err != nil {
		p.logger.Error("load batch failed", "error", err, "batch_size", len(posts))
		return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	p.metrics.PostsStored.Add(float64(len(posts)))

	for _, raw := range successfulRaws {
		p.commitOffset(ctx, raw)
	}

	p.raiseAlerts(ctx, posts)

	return len(posts), true
}

func (p *Pipeline) recordClassification(post domain.SocialMediaPost) {
	hazard := post.HazardType
	if hazard == "" {
		hazard = "none"
	}
	p.metrics.Classifications.WithLabelValues(hazard).Inc()
	if post.IsRelevant {
		p.metrics.PostsRelevant.Inc()
	}
}

// raiseAlerts runs after a successful load, so an alert never references a
// post that was not persisted.
func (p *Pipeline) raiseAlerts(ctx context.Context, posts []domain.SocialMediaPost) {
	if p.alerter == nil {
		return
	}
	for _, post := range posts {
		if !post.IsRelevant || !domain.RequiresImmediateAttention(post.Assess()) {
			continue
		}
		p.metrics.AlertsRaised.Inc()
		if err := p.alerter.RaiseAlert(ctx, post); err != nil {
			p.logger.Error("raise alert failed", "error", err, "post_id", post.ID)
		}
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
