// Package domain models citizen-reported ocean hazard data and implements the
// keyword classifier for social media monitoring.
//
// # Data Sources
//
// Three kinds of records flow through the platform: incidents (verified hazard
// events managed by analysts), citizen reports (submitted through the public
// dashboard), and social media posts (collected from platform APIs by an
// upstream ingestion service and published as JSON to the Kafka source topic).
//
// # Classification
//
// Social posts are scored by a rule-based keyword engine rather than a
// statistical model. Each classification dimension (hazard type, severity,
// sentiment, location) has an ordered table of keyword groups; the first group
// with a matching keyword wins, so table order is part of the contract:
//
//	hazard:    tsunami, storm_surge, high_waves, unusual_tides,
//	           coastal_flooding, swell_surge, coastal_current
//	severity:  critical, high, moderate, low
//	sentiment: urgent, concerned, neutral, positive
//	location:  mumbai, chennai, kolkata, kochi, visakhapatnam, goa
//
// Confidence is an additive heuristic, not a probability: +0.3 for a hazard
// match, +0.2 severity, +0.1 sentiment, +0.2 location, +0.2 for generic ocean
// context (ocean, sea, beach, ...), +0.1 per relevant hashtag, clamped to
// [0, 1]. A post is relevant when confidence reaches 0.3 and either a hazard
// type matched or ocean context was present. The threshold and weights are
// hand-tuned operational constants; changing them changes triage outcomes, so
// they are fixed configuration rather than tunables.
//
// False positives are cheap here (analysts review the feed), false negatives
// on keyword-laden urgent posts are not, which is why the engine leans
// permissive and [RequiresImmediateAttention] exists as a fast escalation
// check.
//
// # Locations
//
// The location table covers major Indian coastal cities and the aliases and
// landmarks commonly used for them in posts ("vizag", "marine drive", ...).
// Matched locations resolve to fixed coordinates via [ExtractCoordinates];
// there is no geocoding call on the classification path.
package domain
