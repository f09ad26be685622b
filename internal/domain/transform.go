package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ParseRawPost deserializes a RawEvent's value into a SocialMediaPost.
// It expects the flat JSON produced by the social media collector service.
func ParseRawPost(raw RawEvent) (SocialMediaPost, error) {
	var rec RawPostRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return SocialMediaPost{}, fmt.Errorf("parse raw post: %w", err)
	}
	if rec.Content == "" {
		return SocialMediaPost{}, fmt.Errorf("parse raw post: empty content")
	}

	return SocialMediaPost{
		ID:         generateID(rec.Platform, rec.PostID, rec.Username, rec.Content),
		Platform:   normalizePlatform(rec.Platform),
		PostID:     rec.PostID,
		Username:   rec.Username,
		Content:    rec.Content,
		Engagement: rec.Engagement,
		PostedAt:   parsePostedAt(rec.PostedAt, raw.Timestamp),
		RawPayload: raw.Value,
	}, nil
}

// EnrichPost classifies the post content and merges the assessment into the
// record: hazard type, severity, sentiment, confidence, location (with fixed
// coordinates when the location is recognized) and matched keywords.
func EnrichPost(post SocialMediaPost) SocialMediaPost {
	a := Classify(post.Content)

	post.IsRelevant = a.IsRelevant
	post.HazardType = a.HazardType
	post.Severity = a.Severity
	post.Sentiment = a.Sentiment
	post.Confidence = a.Confidence
	post.Location = a.Location
	post.Keywords = a.Keywords

	if geo, ok := ExtractCoordinates(a.Location); ok {
		post.Geo = &geo
	}

	post.ProcessedAt = clock.Now()
	return post
}

// Assess reconstructs the Assessment view of an enriched post, used when the
// escalation check runs downstream of enrichment.
func (p SocialMediaPost) Assess() Assessment {
	return Assessment{
		IsRelevant: p.IsRelevant,
		HazardType: p.HazardType,
		Severity:   p.Severity,
		Sentiment:  p.Sentiment,
		Confidence: p.Confidence,
		Location:   p.Location,
		Keywords:   p.Keywords,
	}
}

// normalizePlatform lowercases known platform names, keeping unknown ones
// as-is so the feed still shows where a post came from.
func normalizePlatform(platform string) string {
	switch p := strings.ToLower(strings.TrimSpace(platform)); p {
	case "twitter", "facebook", "instagram", "youtube":
		return p
	default:
		return strings.TrimSpace(platform)
	}
}

// parsePostedAt parses the collector's RFC 3339 timestamp, falling back to the
// message timestamp when absent or malformed.
func parsePostedAt(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fallback
	}
	return t
}

// generateID produces a deterministic ID from the post's key fields.
// Reprocessing the same raw post produces the same ID, so upserts stay
// idempotent across replays.
func generateID(platform, postID, username, content string) string {
	input := fmt.Sprintf("%s|%s|%s|%s", platform, postID, username, content)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if platform == "" {
		return short
	}
	return strings.ToLower(platform) + "-" + short
}
