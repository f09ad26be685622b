package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRawPost(t *testing.T) {
	baseDate := time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC)

	t.Run("twitter record", func(t *testing.T) {
		data := []byte(`{"platform":"Twitter","post_id":"1801","username":"coastal_watcher","content":"Huge waves at Juhu beach right now","posted_at":"2025-06-12T07:45:00Z","engagement":{"likes":12,"retweets":4}}`)
		raw := RawEvent{Value: data, Timestamp: baseDate}

		post, err := ParseRawPost(raw)

		require.NoError(t, err)
		assert.Equal(t, "twitter", post.Platform)
		assert.Equal(t, "1801", post.PostID)
		assert.Equal(t, "coastal_watcher", post.Username)
		assert.Equal(t, "Huge waves at Juhu beach right now", post.Content)
		require.NotNil(t, post.Engagement)
		assert.Equal(t, 12, post.Engagement.Likes)
		assert.Equal(t, 4, post.Engagement.Retweets)
		assert.Equal(t, time.Date(2025, 6, 12, 7, 45, 0, 0, time.UTC), post.PostedAt)
		assert.True(t, strings.HasPrefix(post.ID, "twitter-"))
		assert.Equal(t, data, post.RawPayload)
	})

	t.Run("missing posted_at falls back to message timestamp", func(t *testing.T) {
		data := []byte(`{"platform":"facebook","post_id":"99","username":"x","content":"calm sea today"}`)
		raw := RawEvent{Value: data, Timestamp: baseDate}

		post, err := ParseRawPost(raw)

		require.NoError(t, err)
		assert.Equal(t, baseDate, post.PostedAt)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseRawPost(RawEvent{Value: []byte("{invalid json")})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse raw post")
	})

	t.Run("empty content rejected", func(t *testing.T) {
		_, err := ParseRawPost(RawEvent{Value: []byte(`{"platform":"twitter","post_id":"1"}`)})

		require.Error(t, err)
	})

	t.Run("deterministic ID", func(t *testing.T) {
		data := []byte(`{"platform":"twitter","post_id":"42","username":"a","content":"rip current at baga"}`)
		raw := RawEvent{Value: data, Timestamp: baseDate}

		first, err := ParseRawPost(raw)
		require.NoError(t, err)
		second, err := ParseRawPost(raw)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
	})
}

func TestEnrichPost(t *testing.T) {
	frozen := time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	post := SocialMediaPost{
		ID:       "twitter-abc",
		Platform: "twitter",
		Content:  "Storm surge warning near Marina Beach, stay safe everyone",
	}

	enriched := EnrichPost(post)

	assert.Equal(t, HazardStormSurge, enriched.HazardType)
	assert.Equal(t, SeverityHigh, enriched.Severity) // "warning"
	assert.Equal(t, "chennai", enriched.Location)
	assert.True(t, enriched.IsRelevant)
	require.NotNil(t, enriched.Geo)
	assert.InDelta(t, 13.0827, enriched.Geo.Lat, 1e-6)
	assert.InDelta(t, 80.2707, enriched.Geo.Lon, 1e-6)
	assert.Equal(t, frozen, enriched.ProcessedAt)
}

func TestEnrichPost_NoLocationLeavesGeoNil(t *testing.T) {
	post := SocialMediaPost{Content: "dangerous rip current at the beach"}

	enriched := EnrichPost(post)

	assert.True(t, enriched.IsRelevant)
	assert.Nil(t, enriched.Geo)
}

func TestAssessRoundTrip(t *testing.T) {
	post := EnrichPost(SocialMediaPost{Content: "Tsunami emergency in Mumbai"})
	a := post.Assess()

	assert.Equal(t, post.IsRelevant, a.IsRelevant)
	assert.Equal(t, post.HazardType, a.HazardType)
	assert.Equal(t, post.Severity, a.Severity)
	assert.Equal(t, post.Confidence, a.Confidence)
	assert.True(t, RequiresImmediateAttention(a))
}
