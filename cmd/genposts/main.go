// Command genposts generates deterministic social post fixtures for test
// suites and demos. It runs the actual classification pipeline over a set of
// template posts so fixtures always match real ingest behavior.
//
// Usage:
//
//	go run ./cmd/genposts \
//	  -raw-out data/mock/raw_posts.json \
//	  -classified-out data/mock/classified_posts.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/coastwatch/hazard-monitor/internal/domain"
)

var baseDate = time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)

type postTemplate struct {
	platform string
	username string
	content  string
	likes    int
	shares   int
}

var templates = []postTemplate{
	{"twitter", "chennai_alerts", "URGENT: tsunami waves approaching marina beach, evacuate immediately #TsunamiAlert", 412, 238},
	{"twitter", "mumbai_coastal", "Storm surge flooding the coast near marine drive, very dangerous conditions", 156, 89},
	{"facebook", "kochi_fisherfolk", "Strong rip current near fort kochi, two swimmers rescued this morning", 67, 12},
	{"twitter", "vizag_weather", "Huge waves and rough seas at the beach in vizag, stay away from the shore", 98, 45},
	{"instagram", "goa_surfer", "Beautiful calm morning at calangute beach, water is clear", 310, 4},
	{"twitter", "kolkata_news", "Unusual tide levels observed near diamond harbour today", 44, 18},
	{"facebook", "local_resident", "Waterlogging on the streets after last night, sea looks rough near besant nagar", 23, 7},
	{"twitter", "daily_commuter", "Traffic jam on the highway again, nothing new", 5, 0},
	{"youtube", "storm_tracker", "Severe coastal flooding warning for mumbai, juhu underwater #FloodWatch", 520, 301},
	{"twitter", "beach_walker", "Noticed some choppy waters at marina beach, seems concerning", 31, 9},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	rawOut := flag.String("raw-out", "", "output path for raw post JSON fixture")
	classifiedOut := flag.String("classified-out", "", "output path for classified post JSON fixture")
	flag.Parse()

	if *rawOut == "" || *classifiedOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -raw-out, -classified-out")
	}

	// Fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rawRecords := make([]domain.RawPostRecord, 0, len(templates))
	classified := make([]domain.SocialMediaPost, 0, len(templates))

	for i, tmpl := range templates {
		rec := domain.RawPostRecord{
			Platform: tmpl.platform,
			PostID:   fmt.Sprintf("fixture-%03d", i+1),
			Username: tmpl.username,
			Content:  tmpl.content,
			PostedAt: baseDate.Add(time.Duration(i) * 15 * time.Minute).Format(time.RFC3339),
			Engagement: &domain.Engagement{
				Likes:  tmpl.likes,
				Shares: tmpl.shares,
			},
		}
		rawRecords = append(rawRecords, rec)

		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %d: %w", i, err)
		}

		post, err := domain.ParseRawPost(domain.RawEvent{
			Key:       []byte(rec.PostID),
			Value:     payload,
			Timestamp: baseDate,
		})
		if err != nil {
			return fmt.Errorf("parse record %d: %w", i, err)
		}
		classified = append(classified, domain.EnrichPost(post))
	}

	if err := writeJSON(*rawOut, rawRecords); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s", *rawOut)

	if err := writeJSON(*classifiedOut, classified); err != nil {
		return fmt.Errorf("writing classified fixture: %w", err)
	}
	log.Printf("wrote classified fixture: %s", *classifiedOut)

	printStats(classified)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(posts []domain.SocialMediaPost) {
	hazardCounts := map[string]int{}
	severityCounts := map[string]int{}
	locationCounts := map[string]int{}
	var relevant, alerts int

	for _, p := range posts {
		if p.HazardType != "" {
			hazardCounts[p.HazardType]++
		}
		severityCounts[p.Severity]++
		if p.Location != "" {
			locationCounts[p.Location]++
		}
		if p.IsRelevant {
			relevant++
		}
		if p.IsRelevant && domain.RequiresImmediateAttention(p.Assess()) {
			alerts++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d, relevant: %d, alerts: %d\n", len(posts), relevant, alerts)
	fmt.Printf("By hazard: %v\n", hazardCounts)
	fmt.Printf("By severity: %v\n", severityCounts)
	fmt.Printf("By location: %v\n", locationCounts)
}
