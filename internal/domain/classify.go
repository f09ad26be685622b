package domain

import (
	"math"
	"regexp"
	"strings"
)

// Confidence contributions per matched dimension. Hand-tuned operational
// constants; the relative ordering of keyword groups below carries the
// tie-break behavior, so neither should change without re-validating triage
// outcomes against the analyst workflow.
const (
	hazardWeight       = 0.3
	severityWeight     = 0.2
	sentimentWeight    = 0.1
	locationWeight     = 0.2
	oceanContextWeight = 0.2
	hashtagWeight      = 0.1

	relevanceThreshold = 0.3
)

// hashtagRe extracts #word tokens for hashtag scoring.
var hashtagRe = regexp.MustCompile(`#\w+`)

// keywordGroup pairs a category label with the keywords that select it.
// Groups are scanned in declared order and the first match wins.
type keywordGroup struct {
	label    string
	keywords []string
}

var hazardKeywords = []keywordGroup{
	{HazardTsunami, []string{"tsunami", "tidal wave", "giant wave", "seismic wave", "massive wave"}},
	{HazardStormSurge, []string{"storm surge", "surge", "cyclone surge", "hurricane surge", "coastal flooding"}},
	{HazardHighWaves, []string{"high waves", "big waves", "huge waves", "rough seas", "choppy waters"}},
	{HazardUnusualTides, []string{"unusual tide", "abnormal tide", "strange tide", "weird tide"}},
	{HazardCoastalFlooding, []string{"coastal flood", "beach flood", "shore flood", "waterlogging"}},
	{HazardSwellSurge, []string{"swell surge", "ground swell", "ocean swell"}},
	{HazardCoastalCurrent, []string{"strong current", "dangerous current", "rip current", "undertow"}},
}

var severityKeywords = []keywordGroup{
	{SeverityCritical, []string{"emergency", "urgent", "critical", "dangerous", "life-threatening", "evacuation"}},
	{SeverityHigh, []string{"severe", "serious", "major", "significant", "warning"}},
	{SeverityModerate, []string{"moderate", "noticeable", "concerning", "unusual"}},
	{SeverityLow, []string{"minor", "slight", "small", "normal"}},
}

var sentimentKeywords = []keywordGroup{
	{SentimentUrgent, []string{"help", "emergency", "urgent", "now", "immediately", "rescue"}},
	{SentimentConcerned, []string{"worried", "scared", "concerned", "anxious", "afraid"}},
	{SentimentNeutral, []string{"observed", "noticed", "seen", "happening"}},
	{SentimentPositive, []string{"safe", "calm", "beautiful", "peaceful", "clear"}},
}

// locationKeywords maps major Indian coastal cities to aliases and landmarks
// commonly used for them in posts.
var locationKeywords = []keywordGroup{
	{"mumbai", []string{"mumbai", "bombay", "marine drive", "juhu", "versova"}},
	{"chennai", []string{"chennai", "madras", "marina beach", "besant nagar"}},
	{"kolkata", []string{"kolkata", "calcutta", "howrah", "diamond harbour"}},
	{"kochi", []string{"kochi", "cochin", "ernakulam", "fort kochi"}},
	{"visakhapatnam", []string{"visakhapatnam", "vizag", "vishakhapatnam"}},
	{"goa", []string{"goa", "panaji", "margao", "calangute", "baga"}},
}

// oceanContextWords mark a post as ocean-adjacent even without a specific
// hazard keyword. They add confidence but are not recorded as matches.
var oceanContextWords = []string{"ocean", "sea", "beach", "coast", "shore", "wave", "water", "tide"}

// relevantHashtagTerms filter extracted hashtags down to hazard-related ones.
var relevantHashtagTerms = []string{"tsunami", "flood", "wave", "storm"}

// Classify scores raw post text for hazard relevance, severity, sentiment and
// location. It is a pure function: no I/O, no hidden state, and identical
// input always yields an identical Assessment. Every input produces a result;
// the worst case is an all-defaults, zero-confidence, not-relevant assessment.
func Classify(content string) Assessment {
	lower := strings.ToLower(content)
	var a Assessment
	var confidence float64

	if label, keyword := matchFirst(lower, hazardKeywords); label != "" {
		a.HazardType = label
		a.Keywords = append(a.Keywords, keyword)
		confidence += hazardWeight
	}

	if label, keyword := matchFirst(lower, severityKeywords); label != "" {
		a.Severity = label
		a.Keywords = append(a.Keywords, keyword)
		confidence += severityWeight
	}

	if label, keyword := matchFirst(lower, sentimentKeywords); label != "" {
		a.Sentiment = label
		a.Keywords = append(a.Keywords, keyword)
		confidence += sentimentWeight
	}

	if label, keyword := matchFirst(lower, locationKeywords); label != "" {
		a.Location = label
		a.Keywords = append(a.Keywords, keyword)
		confidence += locationWeight
	}

	hasOceanContext := containsAny(lower, oceanContextWords)
	if hasOceanContext {
		confidence += oceanContextWeight
	}

	for _, tag := range hashtagRe.FindAllString(content, -1) {
		if containsAny(strings.ToLower(tag), relevantHashtagTerms) {
			a.Keywords = append(a.Keywords, tag)
			confidence += hashtagWeight
		}
	}

	confidence = math.Min(confidence, 1.0)

	if a.Severity == "" {
		a.Severity = SeverityLow
	}
	if a.Sentiment == "" {
		a.Sentiment = SentimentNeutral
	}

	// Round to two decimals for a stable, presentable score.
	a.Confidence = math.Round(confidence*100) / 100
	a.IsRelevant = a.Confidence >= relevanceThreshold && (a.HazardType != "" || hasOceanContext)

	return a
}

// matchFirst scans groups in order and returns the first group whose keyword
// appears as a substring, along with the keyword that matched.
func matchFirst(lower string, groups []keywordGroup) (label, keyword string) {
	for _, g := range groups {
		for _, kw := range g.keywords {
			if strings.Contains(lower, kw) {
				return g.label, kw
			}
		}
	}
	return "", ""
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

// EngagementScore computes a weighted interaction score for feed ranking.
// Shares weigh the most since they spread a hazard signal furthest.
func EngagementScore(e *Engagement) int {
	if e == nil {
		return 0
	}
	return e.Likes + e.Shares*3 + e.Comments*2 + e.Retweets*2
}

// RequiresImmediateAttention reports whether an assessment should bypass the
// normal review queue: critical severity, urgent sentiment, or a
// high-confidence tsunami signal.
func RequiresImmediateAttention(a Assessment) bool {
	return a.Severity == SeverityCritical ||
		a.Sentiment == SentimentUrgent ||
		(a.Confidence >= 0.8 && a.HazardType == HazardTsunami)
}
