package pipeline

import (
	"context"
	"log/slog"

	"github.com/coastwatch/hazard-monitor/internal/domain"
	"github.com/coastwatch/hazard-monitor/internal/realtime"
)

// AlertPublisher writes an alert to the downstream alert topic.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, post domain.SocialMediaPost) error
}

// AlertRelay fans an alert out to the realtime hub and, when a publisher is
// configured, to the alert topic. The broadcast is best-effort and cannot
// fail; a publish failure is returned so the pipeline can log it.
type AlertRelay struct {
	broadcaster realtime.Broadcaster
	publisher   AlertPublisher
	logger      *slog.Logger
}

// NewAlertRelay creates an AlertRelay. Pass a nil publisher to broadcast only.
func NewAlertRelay(broadcaster realtime.Broadcaster, publisher AlertPublisher, logger *slog.Logger) *AlertRelay {
	return &AlertRelay{
		broadcaster: broadcaster,
		publisher:   publisher,
		logger:      logger,
	}
}

// RaiseAlert broadcasts an emergency alert to every authenticated connection
// and forwards it to the alert topic.
func (r *AlertRelay) RaiseAlert(ctx context.Context, post domain.SocialMediaPost) error {
	r.logger.Warn("emergency alert raised",
		"post_id", post.ID,
		"hazard_type", post.HazardType,
		"severity", post.Severity,
		"location", post.Location,
	)

	r.broadcaster.Broadcast(realtime.Envelope{
		Type: "emergency_alert",
		Data: map[string]any{
			"post_id":     post.ID,
			"platform":    post.Platform,
			"content":     post.Content,
			"hazard_type": post.HazardType,
			"severity":    post.Severity,
			"confidence":  post.Confidence,
			"location":    post.Location,
		},
		Timestamp: domain.Now().UnixMilli(),
	}, "")

	if r.publisher == nil {
		return nil
	}
	return r.publisher.PublishAlert(ctx, post)
}
