package realtime

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/coastwatch/hazard-monitor/internal/config"
	"github.com/coastwatch/hazard-monitor/internal/domain"
	"github.com/coastwatch/hazard-monitor/internal/observability"
)

// Storage is the read-side contract the pusher needs from the storage layer.
type Storage interface {
	GetSystemStats(ctx context.Context) (domain.SystemStats, error)
	GetRecentActivity(ctx context.Context, limit int) ([]domain.Activity, error)
}

// Broadcaster fans a message out to subscribed connections. Satisfied by *Hub.
type Broadcaster interface {
	Broadcast(msg Envelope, channel string)
}

// Pusher runs the broadcast schedule: stats and activity snapshots to their
// channels every push interval, a heartbeat to everyone every heartbeat
// interval. Both stop when the context is cancelled.
type Pusher struct {
	storage     Storage
	broadcaster Broadcaster
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock

	pushInterval      time.Duration
	heartbeatInterval time.Duration
	activityLimit     int

	// Guards against overlapping snapshot cycles when storage is slower
	// than the push interval.
	inFlight atomic.Bool
}

// NewPusher creates a Pusher on the given schedule. Pass a fake clock in tests
// to drive the timers deterministically.
func NewPusher(storage Storage, broadcaster Broadcaster, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pusher {
	return &Pusher{
		storage:           storage,
		broadcaster:       broadcaster,
		logger:            logger,
		metrics:           metrics,
		clock:             clock,
		pushInterval:      cfg.PushInterval,
		heartbeatInterval: cfg.HeartbeatInterval,
		activityLimit:     cfg.ActivityLimit,
	}
}

// Run blocks until ctx is cancelled, firing snapshot and heartbeat pushes on
// their intervals. A storage failure skips that cycle; nothing here is fatal.
func (p *Pusher) Run(ctx context.Context) {
	p.logger.Info("pusher started",
		"push_interval", p.pushInterval,
		"heartbeat_interval", p.heartbeatInterval,
	)

	pushTicker := p.clock.NewTicker(p.pushInterval)
	defer pushTicker.Stop()
	heartbeatTicker := p.clock.NewTicker(p.heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pusher stopping", "reason", ctx.Err())
			return

		case <-pushTicker.Chan():
			if !p.inFlight.CompareAndSwap(false, true) {
				p.metrics.PushCycles.WithLabelValues("skipped").Inc()
				p.logger.Warn("previous snapshot push still running, skipping cycle")
				continue
			}
			go func() {
				defer p.inFlight.Store(false)
				p.pushSnapshots(ctx)
			}()

		case <-heartbeatTicker.Chan():
			p.broadcaster.Broadcast(Envelope{
				Type:      "heartbeat",
				Timestamp: p.clock.Now().UnixMilli(),
			}, "")
		}
	}
}

// pushSnapshots fetches the stats and activity snapshots concurrently and
// broadcasts each to its channel. Latency is bounded by the slower of the two
// queries rather than their sum.
func (p *Pusher) pushSnapshots(ctx context.Context) {
	var (
		stats    domain.SystemStats
		activity []domain.Activity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = p.storage.GetSystemStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		activity, err = p.storage.GetRecentActivity(gctx, p.activityLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		p.metrics.PushCycles.WithLabelValues("error").Inc()
		p.logger.Error("snapshot fetch failed, skipping cycle", "error", err)
		return
	}

	p.broadcaster.Broadcast(Envelope{Type: "stats_update", Data: stats}, "dashboard")
	p.broadcaster.Broadcast(Envelope{Type: "activity_update", Data: activity}, "activity")
	p.metrics.PushCycles.WithLabelValues("success").Inc()
}
