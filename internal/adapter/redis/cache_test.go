package redis

import (
	"context"
	"log/slog"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastwatch/hazard-monitor/internal/domain"
)

// countingStorage records how often each read hits the inner storage.
type countingStorage struct {
	statsCalls    int
	activityCalls int
	stats         domain.SystemStats
	activity      []domain.Activity
}

func (s *countingStorage) GetSystemStats(context.Context) (domain.SystemStats, error) {
	s.statsCalls++
	return s.stats, nil
}

func (s *countingStorage) GetRecentActivity(_ context.Context, _ int) ([]domain.Activity, error) {
	s.activityCalls++
	return s.activity, nil
}

// unreachableClient points at a port nothing listens on, so every cache
// operation fails fast.
func unreachableClient() *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestCachedStorage_FallsThroughWhenRedisUnavailable(t *testing.T) {
	inner := &countingStorage{
		stats:    domain.SystemStats{ActiveIncidents: 4},
		activity: []domain.Activity{{ID: "a1", Type: domain.ActivityIncident}},
	}
	cached := newCachedStorage(inner, unreachableClient(), time.Minute, slog.Default())
	t.Cleanup(func() { cached.Close() })

	stats, err := cached.GetSystemStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.ActiveIncidents)

	feed, err := cached.GetRecentActivity(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "a1", feed[0].ID)
}

func TestCachedStorage_EveryMissHitsInner(t *testing.T) {
	inner := &countingStorage{}
	cached := newCachedStorage(inner, unreachableClient(), time.Minute, slog.Default())
	t.Cleanup(func() { cached.Close() })

	for i := 0; i < 3; i++ {
		_, err := cached.GetSystemStats(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.statsCalls, "an unavailable cache must not swallow reads")
}
