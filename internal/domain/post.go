package domain

import (
	"context"
	"time"
)

// Hazard type categories, in classifier priority order.
const (
	HazardTsunami         = "tsunami"
	HazardStormSurge      = "storm_surge"
	HazardHighWaves       = "high_waves"
	HazardUnusualTides    = "unusual_tides"
	HazardCoastalFlooding = "coastal_flooding"
	HazardSwellSurge      = "swell_surge"
	HazardCoastalCurrent  = "coastal_current"
	HazardOther           = "other"
)

// Severity levels, most severe first.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityModerate = "moderate"
	SeverityLow      = "low"
)

// Sentiment labels detected in post text.
const (
	SentimentUrgent    = "urgent"
	SentimentConcerned = "concerned"
	SentimentNeutral   = "neutral"
	SentimentPositive  = "positive"
)

// RawPostRecord represents the flat JSON structure produced by the social
// media collector. Engagement counts may be absent depending on platform.
type RawPostRecord struct {
	Platform   string      `json:"platform"`
	PostID     string      `json:"post_id"`
	Username   string      `json:"username"`
	Content    string      `json:"content"`
	PostedAt   string      `json:"posted_at,omitempty"` // RFC 3339, from platform API
	Engagement *Engagement `json:"engagement,omitempty"`
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Engagement holds per-platform interaction counts. Missing counts are zero.
type Engagement struct {
	Likes    int `json:"likes,omitempty"`
	Shares   int `json:"shares,omitempty"`
	Comments int `json:"comments,omitempty"`
	Retweets int `json:"retweets,omitempty"`
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`
}

// Assessment is the classifier's verdict on a single piece of post text.
// It is computed once at ingestion time and immutable afterwards;
// re-classification means re-running Classify on the stored content.
type Assessment struct {
	IsRelevant bool     `json:"is_relevant"`
	HazardType string   `json:"hazard_type,omitempty"` // empty when no category matched
	Severity   string   `json:"severity"`              // defaults to low
	Sentiment  string   `json:"sentiment"`             // defaults to neutral
	Confidence float64  `json:"confidence"`            // additive score in [0,1]
	Location   string   `json:"location,omitempty"`
	Keywords   []string `json:"keywords,omitempty"` // matched keywords/hashtags in discovery order
}

// SocialMediaPost is the domain-rich representation after classification,
// ready for persistence: the raw post fields with the assessment merged in.
type SocialMediaPost struct {
	ID         string      `json:"id"`
	Platform   string      `json:"platform"`
	PostID     string      `json:"post_id"`
	Username   string      `json:"username"`
	Content    string      `json:"content"`
	Sentiment  string      `json:"sentiment,omitempty"`
	HazardType string      `json:"hazard_type,omitempty"`
	Severity   string      `json:"severity,omitempty"`
	Confidence float64     `json:"confidence"`
	Geo        *Geo        `json:"geo,omitempty"`
	Location   string      `json:"location,omitempty"`
	Engagement *Engagement `json:"engagement,omitempty"`
	Keywords   []string    `json:"keywords,omitempty"`
	IsRelevant bool        `json:"is_relevant"`
	PostedAt   time.Time   `json:"posted_at,omitempty"`
	ProcessedAt time.Time  `json:"processed_at"`

	RawPayload []byte `json:"-"`
}
