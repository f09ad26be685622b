package realtime_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastwatch/hazard-monitor/internal/config"
	"github.com/coastwatch/hazard-monitor/internal/domain"
	"github.com/coastwatch/hazard-monitor/internal/observability"
	"github.com/coastwatch/hazard-monitor/internal/realtime"
)

// --- fakes ---

type stubStorage struct {
	mu            sync.Mutex
	stats         domain.SystemStats
	activity      []domain.Activity
	statsErr      error
	statsCalls    int
	activityCalls int
	block         chan struct{} // when set, GetSystemStats blocks until closed
}

func (s *stubStorage) GetSystemStats(ctx context.Context) (domain.SystemStats, error) {
	s.mu.Lock()
	s.statsCalls++
	block := s.block
	stats, err := s.stats, s.statsErr
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.SystemStats{}, ctx.Err()
		}
	}
	return stats, err
}

func (s *stubStorage) GetRecentActivity(_ context.Context, _ int) ([]domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activityCalls++
	return s.activity, nil
}

func (s *stubStorage) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsCalls
}

func (s *stubStorage) setStats(stats domain.SystemStats, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats, s.statsErr = stats, err
}

type broadcastCall struct {
	Msg     realtime.Envelope
	Channel string
}

type recordingBroadcaster struct {
	calls chan broadcastCall
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{calls: make(chan broadcastCall, 16)}
}

func (r *recordingBroadcaster) Broadcast(msg realtime.Envelope, channel string) {
	r.calls <- broadcastCall{Msg: msg, Channel: channel}
}

func (r *recordingBroadcaster) next(t *testing.T) broadcastCall {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return broadcastCall{}
	}
}

func (r *recordingBroadcaster) expectNone(t *testing.T) {
	t.Helper()
	select {
	case c := <-r.calls:
		t.Fatalf("unexpected broadcast: %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func pusherConfig(push, heartbeat time.Duration) *config.Config {
	return &config.Config{
		PushInterval:      push,
		HeartbeatInterval: heartbeat,
		ActivityLimit:     5,
	}
}

// startPusher runs the pusher against a fake clock and returns once both
// timers are armed, so Advance calls are race-free.
func startPusher(t *testing.T, storage realtime.Storage, b realtime.Broadcaster, cfg *config.Config, metrics *observability.Metrics) (*clockwork.FakeClock, context.CancelFunc, chan struct{}) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	p := realtime.NewPusher(storage, b, cfg, slog.Default(), metrics, fc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	fc.BlockUntil(2)
	return fc, cancel, done
}

// --- tests ---

func TestPusher_PushesSnapshotsOnInterval(t *testing.T) {
	storage := &stubStorage{
		stats: domain.SystemStats{ActiveIncidents: 3, TodayReports: 12},
		activity: []domain.Activity{
			{ID: "a1", Type: domain.ActivityIncident, Title: "High waves at Juhu", Severity: domain.SeverityHigh},
		},
	}
	b := newRecordingBroadcaster()

	fc, _, _ := startPusher(t, storage, b, pusherConfig(10*time.Second, time.Hour), observability.NewMetricsForTesting())
	fc.Advance(10 * time.Second)

	first := b.next(t)
	assert.Equal(t, "stats_update", first.Msg.Type)
	assert.Equal(t, "dashboard", first.Channel)
	assert.Equal(t, storage.stats, first.Msg.Data)

	second := b.next(t)
	assert.Equal(t, "activity_update", second.Msg.Type)
	assert.Equal(t, "activity", second.Channel)
}

func TestPusher_HeartbeatGoesToEveryone(t *testing.T) {
	b := newRecordingBroadcaster()

	fc, _, _ := startPusher(t, &stubStorage{}, b, pusherConfig(time.Hour, 30*time.Second), observability.NewMetricsForTesting())
	fc.Advance(30 * time.Second)

	call := b.next(t)
	assert.Equal(t, "heartbeat", call.Msg.Type)
	assert.Empty(t, call.Channel, "heartbeat is not scoped to a channel")
	assert.NotZero(t, call.Msg.Timestamp)
}

func TestPusher_StorageFailureSkipsCycle(t *testing.T) {
	storage := &stubStorage{statsErr: errors.New("connection refused")}
	b := newRecordingBroadcaster()
	metrics := observability.NewMetricsForTesting()

	fc, _, _ := startPusher(t, storage, b, pusherConfig(10*time.Second, time.Hour), metrics)

	fc.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return storage.calls() == 1 }, 2*time.Second, 10*time.Millisecond)
	b.expectNone(t)

	// Next cycle recovers.
	storage.setStats(domain.SystemStats{ActiveIncidents: 7}, nil)
	fc.Advance(10 * time.Second)

	first := b.next(t)
	assert.Equal(t, "stats_update", first.Msg.Type)
	assert.Equal(t, domain.SystemStats{ActiveIncidents: 7}, first.Msg.Data)
	assert.Equal(t, "activity_update", b.next(t).Msg.Type)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PushCycles.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PushCycles.WithLabelValues("success")))
}

func TestPusher_OverlappingCycleSkipped(t *testing.T) {
	release := make(chan struct{})
	storage := &stubStorage{block: release}
	b := newRecordingBroadcaster()
	metrics := observability.NewMetricsForTesting()

	fc, _, _ := startPusher(t, storage, b, pusherConfig(10*time.Second, time.Hour), metrics)

	fc.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return storage.calls() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Second tick while the first fetch is still in flight.
	fc.Advance(10 * time.Second)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.PushCycles.WithLabelValues("skipped")) == 1.0
	}, 2*time.Second, 10*time.Millisecond)

	close(release)
	assert.Equal(t, "stats_update", b.next(t).Msg.Type)
	assert.Equal(t, "activity_update", b.next(t).Msg.Type)
	assert.Equal(t, 1, storage.calls(), "skipped cycle must not hit storage")
}

func TestPusher_StopsOnCancel(t *testing.T) {
	b := newRecordingBroadcaster()
	_, cancel, done := startPusher(t, &stubStorage{}, b, pusherConfig(time.Hour, time.Hour), observability.NewMetricsForTesting())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pusher did not stop after cancellation")
	}
}
